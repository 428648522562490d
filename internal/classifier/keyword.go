package classifier

import (
	"context"
	"strings"

	"github.com/grumpy-generator/signal-intel/internal/models"
)

// KeywordModel identifies keyword-classifier results in the model field.
const KeywordModel = "keyword-classifier-v1"

// rule associates one intent category with its trigger phrases and the fixed
// urgency/confidence pair reported for that category.
type rule struct {
	intent     string
	urgency    string
	confidence float64
	keywords   []string
}

// rules is scanned in order and the first matching keyword wins, so the
// position of a category in this slice is part of the classification
// contract. It must stay a slice, never a map. Keyword lists are bilingual
// (French/English) to cover both user communities.
var rules = []rule{
	{
		intent:     "frustration",
		urgency:    models.UrgencyHigh,
		confidence: 0.8,
		keywords: []string{
			"marche pas", "ne marche pas", "bug", "probleme", "erreur", "nul", "horrible",
			"does not work", "not working", "broken", "upset", "angry", "furieux", "enerve",
			"impossible",
		},
	},
	{
		intent:     "churning",
		urgency:    models.UrgencyCritical,
		confidence: 0.9,
		keywords: []string{
			"annuler", "resilier", "quitter", "partir", "cancel", "unsubscribe", "leaving",
			"je pars", "je quitte", "remboursement", "refund", "arreter", "stop using",
		},
	},
	{
		intent:     "positive_feedback",
		urgency:    models.UrgencyLow,
		confidence: 0.85,
		keywords: []string{
			"merci", "super", "genial", "excellent", "parfait", "bravo", "thanks",
			"great", "awesome", "love it", "jadore", "incroyable", "top", "bien joue",
		},
	},
	{
		intent:     "seeking_help",
		urgency:    models.UrgencyMedium,
		confidence: 0.7,
		keywords: []string{
			"comment", "aide", "help", "how to", "how do", "question", "besoin aide",
			"je comprends pas", "expliquer", "explain", "pourquoi", "why",
		},
	},
	{
		intent:     "feature_request",
		urgency:    models.UrgencyMedium,
		confidence: 0.75,
		keywords: []string{
			"ce serait bien", "il faudrait", "suggestion", "ameliorer", "ajouter",
			"would be nice", "feature", "request", "idee", "idea", "pourriez-vous",
		},
	},
}

// Keyword is the rule-table classifier. It is pure and deterministic: same
// text, same result.
type Keyword struct{}

// NewKeyword creates the keyword classifier.
func NewKeyword() *Keyword {
	return &Keyword{}
}

// Ensure Keyword implements Classifier
var _ Classifier = (*Keyword)(nil)

// Classify scans the rule table in order and returns the category of the
// first keyword found as a substring of the lowercased text. Unmatched text
// gets the default classification.
func (k *Keyword) Classify(_ context.Context, text string) models.Classification {
	lower := strings.ToLower(text)

	for _, r := range rules {
		for _, keyword := range r.keywords {
			if strings.Contains(lower, keyword) {
				c := Default()
				c.IntentStage = r.intent
				c.Urgency = r.urgency
				c.Confidence = r.confidence
				c.Model = KeywordModel
				return c
			}
		}
	}

	c := Default()
	c.Model = KeywordModel
	return c
}
