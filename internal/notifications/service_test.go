package notifications

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/grumpy-generator/signal-intel/internal/config"
	"github.com/grumpy-generator/signal-intel/internal/models"
	"github.com/grumpy-generator/signal-intel/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSignal(t *testing.T, st *store.Store, text, urgency string) models.Signal {
	t.Helper()
	sig, err := st.Insert(models.Signal{
		Actor:  "seed",
		Text:   text,
		Source: "webhook",
		Classification: models.Classification{
			IntentStage: "frustration",
			Urgency:     urgency,
			Confidence:  0.8,
		},
	})
	require.NoError(t, err)
	return sig
}

func TestBuildDigestOrdersByUrgency(t *testing.T) {
	st := store.New()
	seedSignal(t, st, "low signal", models.UrgencyLow)
	seedSignal(t, st, "critical signal", models.UrgencyCritical)
	seedSignal(t, st, "medium signal", models.UrgencyMedium)

	digest := BuildDigest(st, "daily")

	assert.Equal(t, "daily", digest.Period)
	assert.Equal(t, 3, digest.Total)
	require.Len(t, digest.Signals, 3)
	assert.Equal(t, "critical signal", digest.Signals[0].Text)
	assert.Equal(t, "medium signal", digest.Signals[1].Text)
	assert.Equal(t, "low signal", digest.Signals[2].Text)
}

func TestBuildDigestExcludesProcessed(t *testing.T) {
	st := store.New()
	seedSignal(t, st, "still pending", models.UrgencyLow)
	done := seedSignal(t, st, "already handled", models.UrgencyCritical)
	_, err := st.SetStatus(done.ID, models.StatusApproved, "", "marie")
	require.NoError(t, err)

	digest := BuildDigest(st, "weekly")

	require.Len(t, digest.Signals, 1)
	assert.Equal(t, "still pending", digest.Signals[0].Text)
	assert.Equal(t, 1, digest.Total)
	// stats still cover the processed signal
	assert.Equal(t, 1, digest.Stats.Processed)
}

func TestBuildDigestCapsSignalCount(t *testing.T) {
	st := store.New()
	for i := 0; i < digestSignalCap+5; i++ {
		seedSignal(t, st, fmt.Sprintf("signal %d", i), models.UrgencyLow)
	}

	digest := BuildDigest(st, "daily")

	assert.Len(t, digest.Signals, digestSignalCap)
	assert.Equal(t, digestSignalCap+5, digest.Total)
	assert.Equal(t, digestSignalCap+5, digest.Stats.Pending)
}

func TestBuildTeamsMessage(t *testing.T) {
	svc := NewService(&config.Config{})
	digest := &models.Digest{
		GeneratedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Period:      "daily",
		Stats:       models.Stats{Pending: 4, Critical: 2, Momentum: 1, Processed: 7},
		Signals: []models.Signal{
			{
				Actor: "marie",
				Text:  strings.Repeat("x", 100),
				Classification: models.Classification{
					IntentStage: "churning",
					Urgency:     models.UrgencyCritical,
				},
			},
		},
	}

	msg := svc.buildTeamsMessage(digest)

	assert.Equal(t, "MessageCard", msg.Type)
	assert.Equal(t, "Signal Review Digest - Daily", msg.Title)
	assert.Equal(t, "4 signals awaiting review", msg.Text)

	require.Len(t, msg.Sections, 2)
	facts := msg.Sections[0].Facts
	assert.Equal(t, TeamsFact{Name: "Pending", Value: "4"}, facts[0])
	assert.Equal(t, TeamsFact{Name: "Critical", Value: "2"}, facts[1])

	// the 100-char text is truncated to 80 plus an ellipsis
	assert.Contains(t, msg.Sections[1].ActivityText, "**marie** (churning/critical)")
	assert.Contains(t, msg.Sections[1].ActivityText, strings.Repeat("x", 80)+"...")
	assert.NotContains(t, msg.Sections[1].ActivityText, strings.Repeat("x", 81))
}

func TestBuildTeamsMessageUrgentTitle(t *testing.T) {
	svc := NewService(&config.Config{})
	msg := svc.buildTeamsMessage(&models.Digest{Period: "urgent"})
	assert.Equal(t, "🚨 Urgent Signals Alert", msg.Title)
}

func TestBuildEmailText(t *testing.T) {
	svc := NewService(&config.Config{})
	digest := &models.Digest{
		GeneratedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Period:      "weekly",
		Stats:       models.Stats{Pending: 2, Critical: 1},
		Signals: []models.Signal{
			{
				Actor:  "marie",
				Source: "telegram",
				Text:   "please cancel my plan",
				Classification: models.Classification{
					IntentStage: "churning",
					Urgency:     models.UrgencyCritical,
					Confidence:  0.9,
				},
			},
		},
	}

	text := svc.buildEmailText(digest)

	assert.Contains(t, text, "Signal Review Digest - Weekly")
	assert.Contains(t, text, "Pending: 2")
	assert.Contains(t, text, "1. marie via telegram")
	assert.Contains(t, text, "Intent: churning | Urgency: critical | Confidence: 0.90")
	assert.Contains(t, text, "please cancel my plan")
}

func TestBuildEmailHTML(t *testing.T) {
	svc := NewService(&config.Config{})
	digest := &models.Digest{
		GeneratedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Period:      "daily",
		Stats:       models.Stats{Pending: 1},
		Signals: []models.Signal{
			{
				Actor:     "marie",
				Source:    "webhook",
				Text:      strings.Repeat("y", 250),
				CreatedAt: time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC),
				Classification: models.Classification{
					IntentStage: "frustration",
					Urgency:     models.UrgencyHigh,
					Confidence:  0.8,
				},
			},
		},
	}

	html, err := svc.buildEmailHTML(digest)
	require.NoError(t, err)

	assert.Contains(t, html, "Daily digest generated on")
	assert.Contains(t, html, `class="signal high"`)
	assert.Contains(t, html, "marie (webhook)")
	assert.Contains(t, html, strings.Repeat("y", 200)+"...")
	assert.NotContains(t, html, strings.Repeat("y", 201))
}

func TestSendToTeams(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, "1")
	}))
	defer server.Close()

	svc := NewService(&config.Config{TeamsWebhookURL: server.URL})
	digest := &models.Digest{Period: "daily", Stats: models.Stats{Pending: 3}}

	require.NoError(t, svc.SendDigest(digest))
	assert.Contains(t, string(gotBody), "3 signals awaiting review")
}

func TestSendToTeamsFailureSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad card", http.StatusBadRequest)
	}))
	defer server.Close()

	svc := NewService(&config.Config{TeamsWebhookURL: server.URL})
	err := svc.SendDigest(&models.Digest{Period: "daily"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Teams")
}

func TestSendDigestWithNoChannelsConfigured(t *testing.T) {
	svc := NewService(&config.Config{})
	err := svc.SendDigest(&models.Digest{Period: "daily"})
	assert.NoError(t, err)
}
