package ledger

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Categorizer maps item names to fine-category tags. The production
// implementation is the assist gateway client; tests supply a mock.
type Categorizer interface {
	CategorizeNames(ctx context.Context, names []string) (map[string]string, error)
}

// TagRequest asks for one record to be classified. The id and name are
// captured at submit time so a later rename drops the stale result.
type TagRequest struct {
	ID   string
	Name string
}

// Tagger runs classification in the background after a record is saved.
// Submissions are fire-and-forget: a failed or slow call abandons only that
// batch, and results land through the store's patch-if-still-present path.
type Tagger struct {
	categorizer Categorizer
	store       *Store
	logger      *zap.Logger
	wg          sync.WaitGroup
}

// NewTagger creates a tagger bound to a store.
func NewTagger(categorizer Categorizer, store *Store, logger *zap.Logger) *Tagger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tagger{categorizer: categorizer, store: store, logger: logger}
}

// Submit queues a batch for classification and returns immediately. The
// caller's mutation has already been applied; whatever happens here is a
// second, independent mutation.
func (t *Tagger) Submit(ctx context.Context, requests []TagRequest) {
	if t.categorizer == nil || len(requests) == 0 {
		return
	}
	// The submitting request finishes before the classification does; its
	// cancellation must not take the background call down with it.
	ctx = context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.run(ctx, requests)
	}()
}

func (t *Tagger) run(ctx context.Context, requests []TagRequest) {
	names := make([]string, len(requests))
	for i, req := range requests {
		names[i] = req.Name
	}

	tags, err := t.categorizer.CategorizeNames(ctx, names)
	if err != nil {
		// Transient collaborator failure; the collection stays as it was.
		t.logger.Warn("Background categorization failed", zap.Error(err))
		return
	}

	applied := 0
	for _, req := range requests {
		tag, ok := tags[req.Name]
		if !ok || tag == "" {
			continue
		}
		t.store.ApplySmartTag(req.ID, req.Name, tag)
		applied++
	}
	t.logger.Debug("Applied smart tags", zap.Int("requested", len(requests)), zap.Int("returned", applied))
}

// Wait blocks until every submitted batch has finished. Tests use it; the
// server never needs to.
func (t *Tagger) Wait() {
	t.wg.Wait()
}
