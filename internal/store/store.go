package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grumpy-generator/signal-intel/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when an id does not resolve to a signal.
	ErrNotFound = errors.New("signal not found")
	// ErrInvalidStatus is returned for a status outside {approved, rejected, pending}.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrEmptyText is returned when inserting a signal without a message body.
	ErrEmptyText = errors.New("signal text is required")
)

// DefaultLimit is the page size applied when a query supplies none.
const DefaultLimit = 50

// Store is the in-memory signal collection shared by the ingestion gateway
// and the review API. All access goes through the mutex; no method holds the
// lock across external calls.
type Store struct {
	mu      sync.RWMutex
	signals map[string]*models.Signal
}

// New creates an empty store.
func New() *Store {
	return &Store{
		signals: make(map[string]*models.Signal),
	}
}

// newID generates a store-unique signal id, e.g. "sig_3fa85f64".
func newID() string {
	return "sig_" + uuid.NewString()[:8]
}

// Insert adds a new signal, assigning its id and creation time. The caller's
// id and timestamps are ignored; status starts pending.
func (s *Store) Insert(sig models.Signal) (models.Signal, error) {
	if strings.TrimSpace(sig.Text) == "" {
		return models.Signal{}, ErrEmptyText
	}

	sig.ID = newID()
	sig.CreatedAt = time.Now().UTC()
	sig.Status = models.StatusPending
	sig.ProcessedBy = ""
	sig.ProcessedAt = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	// uuid collisions on 8 hex chars are unlikely but not impossible
	for {
		if _, exists := s.signals[sig.ID]; !exists {
			break
		}
		sig.ID = newID()
	}

	stored := sig
	s.signals[sig.ID] = &stored

	logrus.Debugf("Stored signal %s from %s (%s)", sig.ID, sig.Actor, sig.Source)
	return sig, nil
}

// Get returns the signal with the given id, or ErrNotFound.
func (s *Store) Get(id string) (models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.signals[id]
	if !ok {
		return models.Signal{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *sig, nil
}

// normalizeStatus validates a reviewer-supplied status and maps the literal
// "pending" back to the internal zero value.
func normalizeStatus(status string) (string, error) {
	switch status {
	case models.StatusApproved, models.StatusRejected:
		return status, nil
	case "pending":
		return models.StatusPending, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
}

// SetStatus applies a reviewer decision to one signal. The actor and the
// decision time are stamped on every call, including a return to pending.
func (s *Store) SetStatus(id, status, note, actor string) (models.Signal, error) {
	normalized, err := normalizeStatus(status)
	if err != nil {
		return models.Signal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.signals[id]
	if !ok {
		return models.Signal{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	now := time.Now().UTC()
	sig.Status = normalized
	sig.ProcessedBy = actor
	sig.ProcessedAt = &now
	if note != "" {
		sig.Note = note
	}

	logrus.Infof("Signal %s set to %q by %s", id, status, actor)
	return *sig, nil
}

// BulkSetStatus applies the same decision to every id that resolves. Unknown
// ids are skipped, not errors; the returned slice lists the ids actually
// updated, in request order.
func (s *Store) BulkSetStatus(ids []string, status, actor string) ([]string, error) {
	normalized, err := normalizeStatus(status)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := []string{}
	now := time.Now().UTC()
	for _, id := range ids {
		sig, ok := s.signals[id]
		if !ok {
			continue
		}
		stamp := now
		sig.Status = normalized
		sig.ProcessedBy = actor
		sig.ProcessedAt = &stamp
		updated = append(updated, id)
	}

	logrus.Infof("Bulk action %q by %s: %d/%d signals updated", status, actor, len(updated), len(ids))
	return updated, nil
}

// matchesFilter reports whether a signal belongs to the named review tab.
// An empty or unknown filter matches everything.
func matchesFilter(sig *models.Signal, filter string) bool {
	switch filter {
	case "pending":
		return sig.IsPending()
	case "momentum":
		return sig.Classification.MomentumFlag && sig.IsPending()
	case "critical":
		return sig.IsCritical() && sig.IsPending()
	case "processed":
		return !sig.IsPending()
	default:
		return true
	}
}

// Query returns one filtered page ordered by creation time descending, plus
// the unfiltered stats so the dashboard can render tab badges regardless of
// the active filter.
func (s *Store) Query(filter string, limit, offset int) models.Page {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []models.Signal
	var stats models.Stats
	for _, sig := range s.signals {
		if sig.IsPending() {
			stats.Pending++
			if sig.Classification.MomentumFlag {
				stats.Momentum++
			}
			if sig.IsCritical() {
				stats.Critical++
			}
		} else {
			stats.Processed++
		}

		if matchesFilter(sig, filter) {
			filtered = append(filtered, *sig)
		}
	}

	sortByRecency(filtered)

	total := len(filtered)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := make([]models.Signal, end-offset)
	copy(page, filtered[offset:end])

	return models.Page{
		Signals: page,
		Total:   total,
		Stats:   stats,
	}
}

// Recent returns up to n signals, newest first, for the public demo view.
func (s *Store) Recent(n int) []models.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]models.Signal, 0, len(s.signals))
	for _, sig := range s.signals {
		all = append(all, *sig)
	}
	sortByRecency(all)

	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// Len returns the number of stored signals.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.signals)
}

// Stats recomputes the tab badge counts over the whole store.
func (s *Store) Stats() models.Stats {
	return s.Query("", 1, 0).Stats
}

// sortByRecency orders newest first; equal timestamps fall back to id so the
// order stays deterministic across calls.
func sortByRecency(signals []models.Signal) {
	sort.Slice(signals, func(i, j int) bool {
		if !signals[i].CreatedAt.Equal(signals[j].CreatedAt) {
			return signals[i].CreatedAt.After(signals[j].CreatedAt)
		}
		return signals[i].ID > signals[j].ID
	})
}
