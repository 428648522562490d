// Package ingest normalizes loosely-shaped inbound payloads into canonical
// signals and inserts them into the store. The ambiguity of the two
// historical field conventions stops at this boundary.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/grumpy-generator/signal-intel/internal/classifier"
	"github.com/grumpy-generator/signal-intel/internal/models"
	"github.com/grumpy-generator/signal-intel/internal/store"
	"github.com/sirupsen/logrus"
)

// ErrEmptyText is returned when a payload resolves to an empty message body.
var ErrEmptyText = errors.New("missing required fields: text/content")

const defaultAvatar = "👤"

// ClassificationPayload mirrors models.Classification with optional numeric
// fields so absent values can be told apart from zeroes.
type ClassificationPayload struct {
	IntentStage       string   `json:"intent_stage"`
	PrimaryPain       string   `json:"primary_pain"`
	Urgency           string   `json:"urgency"`
	Confidence        *float64 `json:"confidence"`
	MomentumFlag      bool     `json:"momentum_flag"`
	MomentumCount     *int     `json:"momentum_count"`
	RecommendedAction string   `json:"recommended_action"`
	SuggestedReply    string   `json:"suggested_reply"`
	Model             string   `json:"model"`
}

// Payload accepts both webhook conventions: the current actor/text fields
// and the legacy user_handle/content ones. When both are present the current
// convention wins. Classification may arrive as a substructure or as
// flattened top-level fields.
type Payload struct {
	Actor      string `json:"actor"`
	UserHandle string `json:"user_handle"`
	Text       string `json:"text"`
	Content    string `json:"content"`
	Avatar     string `json:"avatar"`
	Source     string `json:"source"`

	// followers arrives as a string from some agents and a number from others
	Followers      interface{} `json:"followers"`
	FollowersCount interface{} `json:"followers_count"`

	ExternalRefID  string `json:"externalRefId"`
	ExternalRefURL string `json:"externalRefUrl"`

	Classification *ClassificationPayload `json:"classification"`

	// flattened classification fields, used when no substructure is supplied
	IntentStage       string   `json:"intent_stage"`
	PrimaryPain       string   `json:"primary_pain"`
	Urgency           string   `json:"urgency"`
	Confidence        *float64 `json:"confidence"`
	MomentumFlag      bool     `json:"momentum_flag"`
	RecommendedAction string   `json:"recommended_action"`
	SuggestedReply    string   `json:"suggested_reply"`
}

// Gateway is the only component that creates signals.
type Gateway struct {
	store      *store.Store
	classifier classifier.Classifier
}

// New creates a gateway writing to the given store and using the given
// classifier for the raw-text relay path.
func New(st *store.Store, c classifier.Classifier) *Gateway {
	return &Gateway{store: st, classifier: c}
}

// IngestOne normalizes and stores a single webhook payload. Classification
// is assumed pre-computed upstream; the classifier is not consulted here.
func (g *Gateway) IngestOne(ctx context.Context, p Payload) (models.Signal, error) {
	sig, err := normalize(p)
	if err != nil {
		return models.Signal{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Signal{}, err
	}

	stored, err := g.store.Insert(sig)
	if err != nil {
		return models.Signal{}, err
	}

	logrus.Infof("New signal from %s: %s", stored.Actor, truncate(stored.Text, 50))
	return stored, nil
}

// IngestBatch applies the same normalization per item. Items with empty text
// are skipped; one malformed item never aborts the batch. It returns the
// stored signals in input order.
func (g *Gateway) IngestBatch(ctx context.Context, items []Payload) ([]models.Signal, error) {
	inserted := []models.Signal{}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}

		sig, err := normalize(item)
		if err != nil {
			logrus.Debugf("Skipping batch item without text (actor=%q)", item.Actor)
			continue
		}

		stored, err := g.store.Insert(sig)
		if err != nil {
			continue
		}
		inserted = append(inserted, stored)
	}

	logrus.Infof("Batch import: %d/%d signals stored", len(inserted), len(items))
	return inserted, nil
}

// IngestMessage is the raw-text relay path: no pre-computed classification,
// so the classifier runs synchronously before the insert. The classifier
// call completes (or falls back) before the store is touched.
func (g *Gateway) IngestMessage(ctx context.Context, actor, text, source, refID, refURL string) (models.Signal, error) {
	if strings.TrimSpace(text) == "" {
		return models.Signal{}, ErrEmptyText
	}
	if actor == "" {
		actor = "unknown"
	}

	classification := g.classifier.Classify(ctx, text)

	// nothing may be inserted once the request is cancelled
	if err := ctx.Err(); err != nil {
		return models.Signal{}, err
	}

	sig := models.Signal{
		Actor:          actor,
		Avatar:         defaultAvatar,
		Text:           text,
		Source:         source,
		Followers:      "0",
		ExternalRefID:  refID,
		ExternalRefURL: refURL,
		Classification: classification,
	}

	stored, err := g.store.Insert(sig)
	if err != nil {
		return models.Signal{}, err
	}

	logrus.Infof("Relay signal from %s via %s: %s (%s)", actor, source,
		classification.IntentStage, classification.Urgency)
	return stored, nil
}

// normalize resolves the dual field conventions into a canonical signal.
func normalize(p Payload) (models.Signal, error) {
	text := firstNonEmpty(p.Text, p.Content)
	if strings.TrimSpace(text) == "" {
		return models.Signal{}, ErrEmptyText
	}

	followers := p.Followers
	if followers == nil {
		followers = p.FollowersCount
	}

	return models.Signal{
		Actor:          firstNonEmpty(p.Actor, p.UserHandle, "unknown"),
		Avatar:         firstNonEmpty(p.Avatar, defaultAvatar),
		Text:           text,
		Source:         firstNonEmpty(p.Source, "webhook"),
		Followers:      followersString(followers),
		ExternalRefID:  p.ExternalRefID,
		ExternalRefURL: p.ExternalRefURL,
		Classification: p.resolveClassification(),
	}, nil
}

// resolveClassification prefers the substructure and otherwise synthesizes
// one from the flattened fields, defaulting anything missing to the
// classifier defaults. Upstream values are clamped into range here so
// nothing out of range reaches the store.
func (p Payload) resolveClassification() models.Classification {
	c := classifier.Default()

	if p.Classification != nil {
		in := p.Classification
		setIfPresent(&c.IntentStage, in.IntentStage)
		setIfPresent(&c.PrimaryPain, in.PrimaryPain)
		if models.ValidUrgency(in.Urgency) {
			c.Urgency = in.Urgency
		}
		if in.Confidence != nil {
			c.Confidence = clamp01(*in.Confidence)
		}
		c.MomentumFlag = in.MomentumFlag
		if in.MomentumCount != nil && *in.MomentumCount > 0 {
			c.MomentumCount = *in.MomentumCount
		}
		setIfPresent(&c.RecommendedAction, in.RecommendedAction)
		c.SuggestedReply = in.SuggestedReply
		c.Model = in.Model
		return c
	}

	setIfPresent(&c.IntentStage, p.IntentStage)
	setIfPresent(&c.PrimaryPain, p.PrimaryPain)
	if models.ValidUrgency(p.Urgency) {
		c.Urgency = p.Urgency
	}
	if p.Confidence != nil {
		c.Confidence = clamp01(*p.Confidence)
	}
	c.MomentumFlag = p.MomentumFlag
	setIfPresent(&c.RecommendedAction, p.RecommendedAction)
	c.SuggestedReply = p.SuggestedReply
	return c
}

func setIfPresent(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// followersString renders the loosely-typed followers value as the canonical
// numeric-as-string form, defaulting to "0".
func followersString(v interface{}) string {
	switch f := v.(type) {
	case nil:
		return "0"
	case string:
		if f == "" {
			return "0"
		}
		return f
	case float64:
		return fmt.Sprintf("%.0f", f)
	case int:
		return fmt.Sprintf("%d", f)
	default:
		return "0"
	}
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

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
