package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/grumpy-generator/signal-intel/internal/ingest"
	"github.com/sirupsen/logrus"
)

const defaultTelegramAPI = "https://api.telegram.org"

// Update is one entry from the Telegram getUpdates feed. The same shape
// arrives on the webhook-mode ingress.
type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message"`
	EditedMessage *Message `json:"edited_message"`
	ChannelPost   *Message `json:"channel_post"`
}

// Message is a direct/group message or a channel post.
type Message struct {
	Text       string `json:"text"`
	From       *User  `json:"from"`
	SenderChat *Chat  `json:"sender_chat"`
	Chat       Chat   `json:"chat"`
}

// User is the sending account, absent for channel posts.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// Chat identifies the conversation or channel.
type Chat struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Content resolves the message/channel_post tagged union into a single
// message, or nil when the update carries no text payload.
func (u *Update) Content() *Message {
	switch {
	case u.Message != nil:
		return u.Message
	case u.EditedMessage != nil:
		return u.EditedMessage
	case u.ChannelPost != nil:
		return u.ChannelPost
	default:
		return nil
	}
}

// ResolveActor picks a display handle for the sender: username, then first
// name, then a synthesized id; channel posts use the channel title.
func ResolveActor(m *Message) string {
	if m.From != nil {
		if m.From.Username != "" {
			return m.From.Username
		}
		if m.From.FirstName != "" {
			return m.From.FirstName
		}
		return fmt.Sprintf("user_%d", m.From.ID)
	}
	if m.SenderChat != nil {
		if m.SenderChat.Title != "" {
			return m.SenderChat.Title
		}
		return fmt.Sprintf("channel_%d", m.SenderChat.ID)
	}
	return "unknown"
}

// TelegramRelay long-polls the Telegram bot API and ingests every text
// message it sees. Bot commands (lines starting with "/") are skipped.
type TelegramRelay struct {
	token   string
	gateway *ingest.Gateway
	client  *resty.Client
	baseURL string
	offset  int64
}

// NewTelegramRelay creates the poller. An empty token disables it.
func NewTelegramRelay(token string, gateway *ingest.Gateway) *TelegramRelay {
	return &TelegramRelay{
		token:   token,
		gateway: gateway,
		client:  resty.New().SetTimeout(45 * time.Second),
		baseURL: defaultTelegramAPI,
	}
}

// Ensure TelegramRelay implements Relay
var _ Relay = (*TelegramRelay)(nil)

func (t *TelegramRelay) GetName() string {
	return "telegram"
}

func (t *TelegramRelay) IsEnabled() bool {
	return t.token != ""
}

// Run polls until the context is cancelled. Webhook mode is cleared first
// because Telegram refuses getUpdates while a webhook is registered.
func (t *TelegramRelay) Run(ctx context.Context) {
	if !t.IsEnabled() {
		return
	}

	if err := t.deleteWebhook(ctx); err != nil {
		logrus.Warnf("Failed to clear Telegram webhook before polling: %v", err)
	}

	logrus.Info("Telegram relay polling started (silent mode, no replies)")

	for {
		if ctx.Err() != nil {
			logrus.Info("Telegram relay stopped")
			return
		}

		if err := t.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logrus.Errorf("Telegram poll failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}
}

func (t *TelegramRelay) deleteWebhook(ctx context.Context) error {
	resp, err := t.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/bot%s/deleteWebhook", t.baseURL, t.token))
	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("telegram deleteWebhook returned status %d", resp.StatusCode())
	}
	return nil
}

type getUpdatesResponse struct {
	OK     bool     `json:"ok"`
	Result []Update `json:"result"`
}

// pollOnce issues one long-poll getUpdates call and ingests every usable
// update, advancing the offset past everything seen.
func (t *TelegramRelay) pollOnce(ctx context.Context) error {
	url := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d&timeout=30", t.baseURL, t.token, t.offset+1)

	resp, err := t.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("telegram getUpdates returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var updates getUpdatesResponse
	if err := json.Unmarshal(resp.Body(), &updates); err != nil {
		return fmt.Errorf("failed to parse Telegram response: %w", err)
	}
	if !updates.OK {
		return fmt.Errorf("telegram getUpdates reported not ok")
	}

	for i := range updates.Result {
		update := &updates.Result[i]
		t.offset = update.UpdateID

		msg := update.Content()
		if msg == nil || msg.Text == "" {
			continue
		}
		if strings.HasPrefix(msg.Text, "/") {
			continue
		}

		actor := ResolveActor(msg)
		logrus.Debugf("Telegram message from %s: %q", actor, msg.Text)

		if _, err := t.gateway.IngestMessage(ctx, actor, msg.Text, "telegram", "", ""); err != nil {
			logrus.Errorf("Failed to ingest Telegram message from %s: %v", actor, err)
		}
	}

	return nil
}
