// Package classifier assigns an intent/urgency classification to raw message
// text. The keyword classifier is the default; a remote AI-backed classifier
// implements the same interface and can be swapped in via configuration.
package classifier

import (
	"context"

	"github.com/grumpy-generator/signal-intel/internal/models"
)

// Classifier turns message text into a classification. Implementations are
// total: they always return a usable value and never surface an error to the
// caller (remote failures fall back to the default classification).
type Classifier interface {
	Classify(ctx context.Context, text string) models.Classification
}

// Default returns the classification used when no rule matches and when a
// remote classifier fails.
func Default() models.Classification {
	return models.Classification{
		IntentStage:       "general_inquiry",
		PrimaryPain:       "unknown",
		Urgency:           models.UrgencyLow,
		Confidence:        0.5,
		RecommendedAction: "review",
	}
}
