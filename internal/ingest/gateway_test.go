package ingest

import (
	"context"
	"testing"

	"github.com/grumpy-generator/signal-intel/internal/classifier"
	"github.com/grumpy-generator/signal-intel/internal/models"
	"github.com/grumpy-generator/signal-intel/internal/store"
	"github.com/stretchr/testify/assert"
)

// countingClassifier records whether the classifier was consulted.
type countingClassifier struct {
	calls  int
	result models.Classification
}

func (c *countingClassifier) Classify(_ context.Context, _ string) models.Classification {
	c.calls++
	return c.result
}

func newTestGateway() (*Gateway, *store.Store, *countingClassifier) {
	st := store.New()
	cl := &countingClassifier{result: models.Classification{
		IntentStage: "frustration",
		Urgency:     models.UrgencyHigh,
		Confidence:  0.8,
		Model:       "test-classifier",
	}}
	return New(st, cl), st, cl
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestIngestOneCurrentConvention(t *testing.T) {
	g, st, cl := newTestGateway()

	sig, err := g.IngestOne(context.Background(), Payload{
		Actor:     "marie",
		Text:      "hello there",
		Avatar:    "🦊",
		Source:    "telegram",
		Followers: "230",
		Classification: &ClassificationPayload{
			IntentStage:   "churning",
			PrimaryPain:   "billing",
			Urgency:       "critical",
			Confidence:    floatPtr(0.92),
			MomentumFlag:  true,
			MomentumCount: intPtr(4),
			Model:         "claude-3-haiku",
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, "marie", sig.Actor)
	assert.Equal(t, "🦊", sig.Avatar)
	assert.Equal(t, "telegram", sig.Source)
	assert.Equal(t, "230", sig.Followers)
	assert.Equal(t, "churning", sig.Classification.IntentStage)
	assert.Equal(t, "billing", sig.Classification.PrimaryPain)
	assert.Equal(t, 0.92, sig.Classification.Confidence)
	assert.True(t, sig.Classification.MomentumFlag)
	assert.Equal(t, 4, sig.Classification.MomentumCount)
	assert.Equal(t, "claude-3-haiku", sig.Classification.Model)

	// pre-classified path never consults the classifier
	assert.Equal(t, 0, cl.calls)

	stored, err := st.Get(sig.ID)
	assert.NoError(t, err)
	assert.Equal(t, sig, stored)
}

func TestIngestOneLegacyConvention(t *testing.T) {
	g, _, _ := newTestGateway()

	sig, err := g.IngestOne(context.Background(), Payload{
		UserHandle:     "jb_dev",
		Content:        "legacy shaped message",
		FollowersCount: float64(1874), // numbers decode as float64
	})

	assert.NoError(t, err)
	assert.Equal(t, "jb_dev", sig.Actor)
	assert.Equal(t, "legacy shaped message", sig.Text)
	assert.Equal(t, "1874", sig.Followers)
	assert.Equal(t, "webhook", sig.Source)
	assert.Equal(t, "👤", sig.Avatar)
}

func TestIngestOnePrefersCurrentConvention(t *testing.T) {
	g, _, _ := newTestGateway()

	sig, err := g.IngestOne(context.Background(), Payload{
		Actor:      "current",
		UserHandle: "legacy",
		Text:       "current text",
		Content:    "legacy text",
		Followers:  "10",
	})

	assert.NoError(t, err)
	assert.Equal(t, "current", sig.Actor)
	assert.Equal(t, "current text", sig.Text)
}

func TestIngestOneSynthesizesClassificationFromFlattenedFields(t *testing.T) {
	g, _, _ := newTestGateway()

	sig, err := g.IngestOne(context.Background(), Payload{
		Actor:       "marie",
		Text:        "partial classification",
		IntentStage: "seeking_help",
		Confidence:  floatPtr(0.7),
	})

	assert.NoError(t, err)
	assert.Equal(t, "seeking_help", sig.Classification.IntentStage)
	assert.Equal(t, 0.7, sig.Classification.Confidence)
	// missing sub-fields fall back to the classifier defaults
	assert.Equal(t, models.UrgencyLow, sig.Classification.Urgency)
	assert.Equal(t, "unknown", sig.Classification.PrimaryPain)
	assert.Equal(t, "review", sig.Classification.RecommendedAction)
}

func TestIngestOneDefaultsWithNoClassificationAtAll(t *testing.T) {
	g, _, cl := newTestGateway()

	sig, err := g.IngestOne(context.Background(), Payload{Actor: "x", Text: "bare"})
	assert.NoError(t, err)
	assert.Equal(t, classifier.Default(), sig.Classification)
	assert.Equal(t, 0, cl.calls)
}

func TestIngestOneClampsUpstreamValues(t *testing.T) {
	g, _, _ := newTestGateway()

	sig, err := g.IngestOne(context.Background(), Payload{
		Actor: "x",
		Text:  "out of range",
		Classification: &ClassificationPayload{
			Confidence:    floatPtr(7.3),
			MomentumCount: intPtr(-5),
			Urgency:       "apocalyptic",
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, 1.0, sig.Classification.Confidence)
	assert.Equal(t, 0, sig.Classification.MomentumCount)
	assert.Equal(t, models.UrgencyLow, sig.Classification.Urgency)
}

func TestIngestOneEmptyText(t *testing.T) {
	g, st, _ := newTestGateway()

	_, err := g.IngestOne(context.Background(), Payload{Actor: "ghost"})
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = g.IngestOne(context.Background(), Payload{Actor: "ghost", Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Equal(t, 0, st.Len())
}

func TestIngestBatchSkipsEmptyItems(t *testing.T) {
	g, st, _ := newTestGateway()

	inserted, err := g.IngestBatch(context.Background(), []Payload{
		{Actor: "a", Text: "first"},
		{Actor: "ghost", Text: ""},
		{UserHandle: "b", Content: "third"},
	})

	assert.NoError(t, err)
	assert.Len(t, inserted, 2)
	assert.Equal(t, 2, st.Len())
	assert.Equal(t, "first", inserted[0].Text)
	assert.Equal(t, "third", inserted[1].Text)
}

func TestIngestBatchEmptyInput(t *testing.T) {
	g, _, _ := newTestGateway()

	inserted, err := g.IngestBatch(context.Background(), []Payload{})
	assert.NoError(t, err)
	assert.Empty(t, inserted)
}

func TestIngestMessageInvokesClassifier(t *testing.T) {
	g, st, cl := newTestGateway()

	sig, err := g.IngestMessage(context.Background(), "marie", "nothing works", "telegram", "", "")
	assert.NoError(t, err)
	assert.Equal(t, 1, cl.calls)
	assert.Equal(t, "frustration", sig.Classification.IntentStage)
	assert.Equal(t, "test-classifier", sig.Classification.Model)
	assert.Equal(t, "telegram", sig.Source)
	assert.Equal(t, "0", sig.Followers)

	stored, err := st.Get(sig.ID)
	assert.NoError(t, err)
	assert.Equal(t, sig, stored)
}

func TestIngestMessageExternalRef(t *testing.T) {
	g, _, _ := newTestGateway()

	sig, err := g.IngestMessage(context.Background(), "tw_user", "a tweet", "twitter",
		"123456", "https://twitter.com/i/status/123456")
	assert.NoError(t, err)
	assert.Equal(t, "123456", sig.ExternalRefID)
	assert.Equal(t, "https://twitter.com/i/status/123456", sig.ExternalRefURL)
}

func TestIngestMessageEmptyText(t *testing.T) {
	g, _, cl := newTestGateway()

	_, err := g.IngestMessage(context.Background(), "marie", "", "telegram", "", "")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Equal(t, 0, cl.calls)
}

func TestIngestMessageCancelledContextInsertsNothing(t *testing.T) {
	g, st, _ := newTestGateway()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.IngestMessage(ctx, "marie", "too late", "telegram", "", "")
	assert.Error(t, err)
	assert.Equal(t, 0, st.Len())
}

func TestFollowersString(t *testing.T) {
	testCases := []struct {
		name  string
		input interface{}
		want  string
	}{
		{"nil", nil, "0"},
		{"empty string", "", "0"},
		{"string", "1874", "1874"},
		{"json number", float64(42), "42"},
		{"int", 7, "7"},
		{"unexpected type", []string{"x"}, "0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, followersString(tc.input))
		})
	}
}
