package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/grumpy-generator/signal-intel/internal/models"
	"github.com/sirupsen/logrus"
)

const defaultAnthropicURL = "https://api.anthropic.com/v1/messages"

// Remote classifies text with the Anthropic messages API. Every failure
// mode (transport error, non-200, malformed reply) degrades to the default
// classification so ingestion never blocks on the upstream model.
type Remote struct {
	client  *resty.Client
	apiKey  string
	model   string
	baseURL string
}

// Ensure Remote implements Classifier
var _ Classifier = (*Remote)(nil)

// NewRemote creates an AI-backed classifier. The timeout bounds the whole
// API call; the zero value falls back to 10 seconds.
func NewRemote(apiKey, model string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Remote{
		client:  resty.New().SetTimeout(timeout),
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultAnthropicURL,
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// verdict is the strict-JSON shape the prompt asks the model for.
type verdict struct {
	Intent     string  `json:"intent"`
	Urgency    string  `json:"urgency"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

const promptTemplate = `Classify this user message into exactly ONE category. Reply ONLY with valid JSON, nothing else.

Message: %q

Categories:
- churning: user wants to cancel, leave, get refund
- frustration: user is angry, upset, something not working
- positive_feedback: user is happy, thankful, praising
- seeking_help: user has a question, needs assistance
- feature_request: user suggests improvement or new feature
- general: anything else

Reply format (JSON only):
{"intent": "category_name", "urgency": "critical|high|medium|low", "confidence": 0.0-1.0, "reason": "brief explanation"}`

// Classify calls the remote model and maps its verdict onto a
// classification. On any error it returns the fallback instead.
func (r *Remote) Classify(ctx context.Context, text string) models.Classification {
	req := anthropicRequest{
		Model:     r.model,
		MaxTokens: 200,
		Messages: []anthropicMessage{
			{Role: "user", Content: fmt.Sprintf(promptTemplate, text)},
		},
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", r.apiKey).
		SetHeader("anthropic-version", "2023-06-01").
		SetBody(req).
		Post(r.baseURL)

	if err != nil {
		logrus.Warnf("AI classifier call failed, using fallback: %v", err)
		return r.fallback()
	}

	if resp.StatusCode() != 200 {
		logrus.Warnf("AI classifier returned status %d, using fallback: %s", resp.StatusCode(), string(resp.Body()))
		return r.fallback()
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil || len(apiResp.Content) == 0 {
		logrus.Warnf("AI classifier response unreadable, using fallback: %v", err)
		return r.fallback()
	}

	var v verdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(apiResp.Content[0].Text)), &v); err != nil {
		logrus.Warnf("AI classifier verdict is not valid JSON, using fallback: %v", err)
		return r.fallback()
	}

	if v.Intent == "" || !models.ValidUrgency(v.Urgency) {
		logrus.Warnf("AI classifier verdict malformed (intent=%q urgency=%q), using fallback", v.Intent, v.Urgency)
		return r.fallback()
	}

	c := Default()
	c.IntentStage = v.Intent
	c.Urgency = v.Urgency
	c.Confidence = clamp01(v.Confidence)
	if v.Reason != "" {
		c.PrimaryPain = v.Reason
	}
	c.Model = r.model
	return c
}

// fallback is the classification reported when the remote model is
// unavailable: general/low/0.5, tagged with the model for audit.
func (r *Remote) fallback() models.Classification {
	c := Default()
	c.IntentStage = "general"
	c.Model = r.model
	return c
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
