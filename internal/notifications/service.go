package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/grumpy-generator/signal-intel/internal/config"
	"github.com/grumpy-generator/signal-intel/internal/models"
	"github.com/grumpy-generator/signal-intel/internal/store"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// digestSignalCap limits how many signals a digest carries.
const digestSignalCap = 10

// Service delivers review-queue digests via Teams webhook and email.
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message card
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// BuildDigest snapshots the store into a digest: global stats plus the top
// pending signals in the dashboard's urgency-then-recency order.
func BuildDigest(st *store.Store, period string) *models.Digest {
	page := st.Query("pending", st.Len()+1, 0)
	signals := page.Signals
	models.SortByUrgency(signals)
	if len(signals) > digestSignalCap {
		signals = signals[:digestSignalCap]
	}

	return &models.Digest{
		GeneratedAt: time.Now().UTC(),
		Period:      period,
		Stats:       page.Stats,
		Total:       page.Total,
		Signals:     signals,
	}
}

// SendDigest sends a digest via every configured channel.
func (s *Service) SendDigest(digest *models.Digest) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(digest); err != nil {
			logrus.Errorf("Failed to send Teams digest: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Successfully sent digest to Teams")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(digest); err != nil {
			logrus.Errorf("Failed to send email digest: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent digest via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(digest *models.Digest) error {
	message := s.buildTeamsMessage(digest)

	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsMessage(digest *models.Digest) *TeamsMessage {
	title := fmt.Sprintf("Signal Review Digest - %s", strings.Title(digest.Period))
	if digest.Period == "urgent" {
		title = "🚨 Urgent Signals Alert"
	}

	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   title,
		Text:    fmt.Sprintf("%d signals awaiting review", digest.Stats.Pending),
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Queue",
		Facts: []TeamsFact{
			{Name: "Pending", Value: fmt.Sprintf("%d", digest.Stats.Pending)},
			{Name: "Critical", Value: fmt.Sprintf("%d", digest.Stats.Critical)},
			{Name: "Momentum", Value: fmt.Sprintf("%d", digest.Stats.Momentum)},
			{Name: "Processed", Value: fmt.Sprintf("%d", digest.Stats.Processed)},
			{Name: "Generated", Value: digest.GeneratedAt.Format("2006-01-02 15:04:05 UTC")},
		},
		Markdown: true,
	})

	if len(digest.Signals) > 0 {
		var lines []string
		for _, sig := range digest.Signals {
			lines = append(lines, fmt.Sprintf("**%s** (%s/%s) - %s",
				sig.Actor, sig.Classification.IntentStage, sig.Classification.Urgency,
				truncate(sig.Text, 80)))
		}

		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Top Pending Signals",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) sendEmail(digest *models.Digest) error {
	subject := fmt.Sprintf("Signal Review Digest - %s (%d pending)",
		strings.Title(digest.Period), digest.Stats.Pending)

	htmlBody, err := s.buildEmailHTML(digest)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	textBody := s.buildEmailText(digest)

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func (s *Service) buildEmailHTML(digest *models.Digest) (string, error) {
	tmpl := `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Signal Review Digest</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #1a1a2e; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .signal { border-left: 4px solid #605e5c; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .signal-actor { font-weight: bold; margin-bottom: 5px; }
        .signal-meta { color: #666; font-size: 0.9em; }
        .critical { border-left-color: #d13438; }
        .high { border-left-color: #ff8c00; }
        .medium { border-left-color: #0078d4; }
        .low { border-left-color: #107c10; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Signal Review Digest</h1>
        <p>{{.Period | title}} digest generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Queue</h2>
        <p><strong>Pending:</strong> {{.Stats.Pending}}</p>
        <p><strong>Critical:</strong> {{.Stats.Critical}}</p>
        <p><strong>Momentum:</strong> {{.Stats.Momentum}}</p>
        <p><strong>Processed:</strong> {{.Stats.Processed}}</p>
    </div>

    {{if .Signals}}
    <h2>Top Pending Signals</h2>
    {{range .Signals}}
        <div class="signal {{.Classification.Urgency}}">
            <div class="signal-actor">{{.Actor}} ({{.Source}})</div>
            <div class="signal-meta">
                {{.Classification.IntentStage}} | {{.Classification.Urgency}} | confidence {{printf "%.2f" .Classification.Confidence}} | {{.CreatedAt.Format "Jan 2, 2006 15:04"}}
            </div>
            <p>{{.Text | truncate 200}}</p>
        </div>
    {{end}}
    {{end}}

    <hr>
    <p><small>This digest was generated automatically by the signal review service.</small></p>
</body>
</html>
`

	t := template.New("email").Funcs(template.FuncMap{
		"title": strings.Title,
		"truncate": func(length int, s string) string {
			if len(s) <= length {
				return s
			}
			return s[:length] + "..."
		},
	})

	t, err := t.Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, digest); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *Service) buildEmailText(digest *models.Digest) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Signal Review Digest - %s\n", strings.Title(digest.Period)))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", digest.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("QUEUE\n")
	text.WriteString("=====\n")
	text.WriteString(fmt.Sprintf("Pending: %d\n", digest.Stats.Pending))
	text.WriteString(fmt.Sprintf("Critical: %d\n", digest.Stats.Critical))
	text.WriteString(fmt.Sprintf("Momentum: %d\n", digest.Stats.Momentum))
	text.WriteString(fmt.Sprintf("Processed: %d\n", digest.Stats.Processed))

	if len(digest.Signals) > 0 {
		text.WriteString("\nTOP PENDING SIGNALS\n")
		text.WriteString("===================\n")

		for i, sig := range digest.Signals {
			text.WriteString(fmt.Sprintf("\n%d. %s via %s\n", i+1, sig.Actor, sig.Source))
			text.WriteString(fmt.Sprintf("   Intent: %s | Urgency: %s | Confidence: %.2f\n",
				sig.Classification.IntentStage, sig.Classification.Urgency, sig.Classification.Confidence))
			text.WriteString(fmt.Sprintf("   %s\n", truncate(sig.Text, 200)))
		}
	}

	text.WriteString("\n---\nThis digest was generated automatically by the signal review service.\n")

	return text.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
