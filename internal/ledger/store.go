package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"resale-ledger-go/internal/models"
)

// FlushFunc persists a snapshot of the collection. It is invoked after every
// successful mutation; a failure is logged but never fails the mutation.
type FlushFunc func([]models.Record) error

// Store owns the ordered collection of records. It is the single source of
// truth: every mutation goes through one of its methods, holds the write
// lock for the whole read-compute-install cycle, and flushes afterwards.
type Store struct {
	mu      sync.RWMutex
	records []models.Record
	flush   FlushFunc
	logger  *zap.Logger
}

// NewStore creates a store seeded with the given records. A nil flush
// function disables persistence, which is how tests run.
func NewStore(records []models.Record, flush FlushFunc, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	copied := make([]models.Record, len(records))
	copy(copied, records)
	return &Store{records: copied, flush: flush, logger: logger}
}

// flushLocked persists the current collection. Callers hold the write lock.
func (s *Store) flushLocked() {
	if s.flush == nil {
		return
	}
	snapshot := make([]models.Record, len(s.records))
	copy(snapshot, s.records)
	if err := s.flush(snapshot); err != nil {
		s.logger.Error("Failed to flush collection snapshot", zap.Error(err))
	}
}

// indexLocked returns the position of a record id, or -1.
func (s *Store) indexLocked(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

// All returns a copy of the collection ordered most-recent-first by
// acquisition date, ties kept in insertion order.
func (s *Store) All() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Record, len(s.records))
	copy(out, s.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AcquiredTime().After(out[j].AcquiredTime())
	})
	return out
}

// Len returns the number of records in the collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Get looks up a record by id.
func (s *Store) Get(id string) (models.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexLocked(id); i >= 0 {
		return s.records[i], true
	}
	return models.Record{}, false
}

// Add sanitizes and appends a new record, assigning an id when absent, and
// returns the stored value.
func (s *Store) Add(r models.Record) models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Sanitize()
	s.records = append(s.records, r)
	s.logger.Info("Record added",
		zap.String("id", r.ID),
		zap.String("name", r.Name),
		zap.String("state", string(r.State())),
	)
	s.flushLocked()
	return r
}

// Update replaces the record with the same id (direct edit). The incoming
// value is sanitized; the id itself is immutable. An unknown id returns
// ErrNotFound and leaves the collection untouched.
func (s *Store) Update(r models.Record) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(r.ID)
	if i < 0 {
		return models.Record{}, fmt.Errorf("update %q: %w", r.ID, ErrNotFound)
	}
	r.Sanitize()
	s.records[i] = r
	s.flushLocked()
	return r, nil
}

// MarkSold is the quick-update path: it records the sale leg of an inventory
// record in one step. The sale date defaults to today and shipping defaults
// apply when the caller supplies none.
func (s *Store) MarkSold(id string, sellPrice float64, sellDate string, method models.ShippingMethod) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return models.Record{}, fmt.Errorf("mark sold %q: %w", id, ErrNotFound)
	}
	if sellPrice < 0 {
		sellPrice = 0
	}

	r := s.records[i]
	r.SellPrice = sellPrice
	r.IsSold = true
	if normalized, ok := models.NormalizeDate(sellDate); ok {
		r.SellDate = normalized
	} else {
		r.SellDate = models.Today()
	}
	r.ShippingMethod = method
	r.ShippingCost = 0
	r.NormalizeShipping()

	s.records[i] = r
	s.logger.Info("Record marked sold",
		zap.String("id", r.ID),
		zap.Float64("sellPrice", r.SellPrice),
	)
	s.flushLocked()
	return r, nil
}

// Delete permanently removes a record. Closed-loop records hold merged
// history, so removing one requires the explicit confirmation flag; the
// reversible alternative is Split. An unknown id is a no-op with ErrNotFound.
func (s *Store) Delete(id string, confirmed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("delete %q: %w", id, ErrNotFound)
	}
	if s.records[i].State() == models.StateClosedLoop && !confirmed {
		return fmt.Errorf("delete closed-loop %q: %w", id, ErrConfirmRequired)
	}

	s.logger.Info("Record deleted",
		zap.String("id", id),
		zap.String("name", s.records[i].Name),
	)
	s.records = append(s.records[:i], s.records[i+1:]...)
	s.flushLocked()
	return nil
}

// ApplySmartTag attaches a classifier tag to a record, but only when the id
// still resolves and the name still matches what was submitted. Anything
// else is a silent no-op: by the time a background classification returns,
// the record may have been edited, merged away, or deleted.
func (s *Store) ApplySmartTag(id, name, tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 || s.records[i].Name != name {
		s.logger.Debug("Dropping stale smart tag",
			zap.String("id", id),
			zap.String("name", name),
		)
		return
	}
	s.records[i].SmartTag = tag
	s.flushLocked()
}

// FilterByState returns the records in the requested lifecycle state, in the
// same most-recent-first order as All.
func (s *Store) FilterByState(state models.State) []models.Record {
	all := s.All()
	out := make([]models.Record, 0, len(all))
	for _, r := range all {
		if r.State() == state {
			out = append(out, r)
		}
	}
	return out
}

// ExportJSON renders the whole collection pretty-printed for backup. Field
// order is the fixed struct order, so repeated exports diff cleanly.
func (s *Store) ExportJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to export collection: %w", err)
	}
	return out, nil
}
