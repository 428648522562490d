package models

import (
	"sort"
	"time"
)

// Signal statuses. Pending is the zero value; the dashboard shows those
// signals in the review queue. A stored "new" (written by older relay
// versions) is treated as pending too.
const (
	StatusPending  = ""
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Urgency levels, most severe first.
const (
	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyMedium   = "medium"
	UrgencyLow      = "low"
)

// Classification is the intent/urgency analysis attached to a signal.
// JSON keys are snake_case to stay wire-compatible with the existing
// dashboard and agents.
type Classification struct {
	IntentStage       string  `json:"intent_stage"`
	PrimaryPain       string  `json:"primary_pain"`
	Urgency           string  `json:"urgency"`
	Confidence        float64 `json:"confidence"`
	MomentumFlag      bool    `json:"momentum_flag"`
	MomentumCount     int     `json:"momentum_count"`
	RecommendedAction string  `json:"recommended_action"`
	SuggestedReply    string  `json:"suggested_reply"`
	Model             string  `json:"model,omitempty"`
}

// Signal represents a single classified inbound message awaiting or having
// received reviewer disposition.
type Signal struct {
	ID             string         `json:"id"`
	Actor          string         `json:"actor"`
	Avatar         string         `json:"avatar"`
	Text           string         `json:"text"`
	Source         string         `json:"source"` // "telegram", "twitter", "webhook", ...
	Followers      string         `json:"followers"`
	ExternalRefID  string         `json:"externalRefId,omitempty"`
	ExternalRefURL string         `json:"externalRefUrl,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	Classification Classification `json:"classification"`
	Status         string         `json:"status,omitempty"`
	ProcessedBy    string         `json:"processedBy,omitempty"`
	ProcessedAt    *time.Time     `json:"processedAt,omitempty"`
	Note           string         `json:"note,omitempty"`
}

// IsPending reports whether the signal is still awaiting reviewer action.
func (s *Signal) IsPending() bool {
	return s.Status == StatusPending || s.Status == "new"
}

// IsCritical reports whether the signal's urgency puts it on the "critical"
// review tab (critical or high).
func (s *Signal) IsCritical() bool {
	u := s.Classification.Urgency
	return u == UrgencyCritical || u == UrgencyHigh
}

// Stats holds the aggregate counts shown as dashboard tab badges. They are
// always computed over the whole store, never the filtered page.
type Stats struct {
	Pending   int `json:"pending"`
	Momentum  int `json:"momentum"`
	Critical  int `json:"critical"`
	Processed int `json:"processed"`
}

// Page is one filtered, paginated slice of the store plus the global stats.
type Page struct {
	Signals []Signal `json:"signals"`
	Total   int      `json:"total"`
	Stats   Stats    `json:"stats"`
}

// Digest is a periodic summary of the review queue sent to reviewers.
type Digest struct {
	GeneratedAt time.Time `json:"generated_at"`
	Period      string    `json:"period"` // "daily", "weekly", or "urgent"
	Stats       Stats     `json:"stats"`
	Total       int       `json:"total"`
	Signals     []Signal  `json:"signals"`
}

var urgencyRank = map[string]int{
	UrgencyCritical: 0,
	UrgencyHigh:     1,
	UrgencyMedium:   2,
	UrgencyLow:      3,
}

// ValidUrgency reports whether the label is one of the four known levels.
func ValidUrgency(urgency string) bool {
	_, ok := urgencyRank[urgency]
	return ok
}

// UrgencyRank maps an urgency label to its sort rank (critical first).
// Unknown labels sort last.
func UrgencyRank(urgency string) int {
	if rank, ok := urgencyRank[urgency]; ok {
		return rank
	}
	return len(urgencyRank)
}

// SortByUrgency orders signals by urgency rank, ties broken by recency
// (newest first). This reproduces the dashboard's pending-queue ordering.
func SortByUrgency(signals []Signal) {
	sort.SliceStable(signals, func(i, j int) bool {
		ri, rj := UrgencyRank(signals[i].Classification.Urgency), UrgencyRank(signals[j].Classification.Urgency)
		if ri != rj {
			return ri < rj
		}
		return signals[i].CreatedAt.After(signals[j].CreatedAt)
	})
}
