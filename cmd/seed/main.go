package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
)

// Posts a small corpus of sample signals to a running server so the
// dashboard has something to review. Covers both payload conventions and
// one deliberately empty item the batch endpoint should skip.
func main() {
	fmt.Println("🌱 Signal Review Service - Seed Harness")
	fmt.Println("=======================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	serverURL := getEnv("SERVER_URL", "http://localhost:3001")
	token := os.Getenv("WEBHOOK_TOKEN")
	if token == "" {
		log.Fatal("WEBHOOK_TOKEN is required")
	}

	client := resty.New().
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-webhook-token", token)

	single := map[string]interface{}{
		"actor":     "marie_p",
		"text":      "I want to cancel my subscription, nothing works anymore",
		"source":    "telegram",
		"followers": "230",
		"classification": map[string]interface{}{
			"intent_stage": "churning",
			"primary_pain": "repeated failures",
			"urgency":      "critical",
			"confidence":   0.92,
			"model":        "claude-3-haiku",
		},
	}

	fmt.Printf("🔸 Posting single signal... ")
	resp, err := client.R().SetBody(single).Post(serverURL + "/webhook/signal")
	if err != nil {
		log.Fatalf("❌ ERROR: %v", err)
	}
	fmt.Printf("%d %s\n", resp.StatusCode(), resp.String())

	batch := map[string]interface{}{
		"items": []map[string]interface{}{
			{
				// legacy field convention
				"user_handle":     "jb_dev",
				"content":         "how do I export my data? can't find the option",
				"source":          "twitter",
				"followers_count": 1874,
				"intent_stage":    "seeking_help",
				"urgency":         "medium",
				"confidence":      0.7,
			},
			{
				"actor": "ghost_user",
				"text":  "", // skipped by the batch endpoint
			},
			{
				"actor":     "happy_cl",
				"text":      "merci pour la mise a jour, vraiment top!",
				"source":    "telegram",
				"followers": "12",
				"classification": map[string]interface{}{
					"intent_stage":  "positive_feedback",
					"urgency":       "low",
					"confidence":    0.88,
					"momentum_flag": true,
				},
			},
		},
	}

	fmt.Printf("🔸 Posting batch of 3 (1 empty)... ")
	resp, err = client.R().SetBody(batch).Post(serverURL + "/webhook/signals/batch")
	if err != nil {
		log.Fatalf("❌ ERROR: %v", err)
	}
	fmt.Printf("%d %s\n", resp.StatusCode(), resp.String())

	fmt.Println("\n✅ Seeding completed!")
	fmt.Println("\n💡 Next steps:")
	fmt.Println("   • Open the dashboard and review the pending queue")
	fmt.Println("   • GET /demo/public shows the unauthenticated recent window")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
