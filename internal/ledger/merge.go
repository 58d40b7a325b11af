package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"resale-ledger-go/internal/models"
)

// MatchSeparator joins a purchase record's own notes to the human-readable
// merge marker. The structured provenance field is the split source of truth;
// this suffix exists for display and as a legacy fallback for collections
// imported from older backups.
const MatchSeparator = " | Sold Match: "

// Merge fuses a purchase record and an orphan sale into one closed-loop
// record. The purchase absorbs the sale leg, keeps both identities in its
// provenance, and the sale record disappears from the collection. This is
// the only transition into the closed-loop state.
func (s *Store) Merge(purchaseID, saleID string) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pi := s.indexLocked(purchaseID)
	si := s.indexLocked(saleID)
	if pi < 0 || si < 0 {
		return models.Record{}, fmt.Errorf("merge %q + %q: %w", purchaseID, saleID, ErrNotFound)
	}
	if purchaseID == saleID {
		return models.Record{}, fmt.Errorf("merge %q with itself: %w", purchaseID, ErrState)
	}

	purchase := s.records[pi]
	sale := s.records[si]
	if purchase.State() == models.StateClosedLoop || purchase.BuyPrice <= 0 {
		return models.Record{}, fmt.Errorf("merge: %q is not an open purchase: %w", purchaseID, ErrState)
	}
	if sale.State() != models.StateOrphanSale {
		return models.Record{}, fmt.Errorf("merge: %q is not an orphan sale: %w", saleID, ErrState)
	}

	purchase.SellPrice = sale.SellPrice
	purchase.IsSold = true
	if sale.SellDate != "" {
		purchase.SellDate = sale.SellDate
	} else if sale.Date != "" {
		purchase.SellDate = sale.Date
	} else {
		purchase.SellDate = models.Today()
	}
	purchase.ShippingMethod = sale.ShippingMethod
	purchase.ShippingCost = sale.ShippingCost
	purchase.NormalizeShipping()
	purchase.Notes = purchase.Notes + MatchSeparator + sale.Name
	purchase.Provenance = &models.MergeProvenance{
		SaleID:   sale.ID,
		SaleName: sale.Name,
		SaleDate: purchase.SellDate,
		MergedAt: time.Now().Format(models.DateLayout),
	}

	s.records[pi] = purchase
	s.records = append(s.records[:si], s.records[si+1:]...)

	s.logger.Info("Merged sale into purchase",
		zap.String("purchaseId", purchase.ID),
		zap.String("saleName", sale.Name),
		zap.Float64("sellPrice", purchase.SellPrice),
	)
	s.flushLocked()
	return purchase, nil
}

// SplitResult reports the two records a split produced. Degraded is true when
// the original sale name could not be recovered and the purchase name stood
// in for it; callers must surface that loss, not hide it.
type SplitResult struct {
	Purchase models.Record `json:"purchase"`
	Sale     models.Record `json:"sale"`
	Degraded bool          `json:"degraded"`
}

// recoverSaleHalf works out the sale name and the purchase's own notes from a
// closed-loop record: the structured provenance first, the legacy notes
// suffix second, and the record's own name as the degraded last resort.
func recoverSaleHalf(r models.Record) (saleName, buyNotes string, degraded bool) {
	if r.Provenance != nil && r.Provenance.SaleName != "" {
		buyNotes = r.Notes
		if i := strings.LastIndex(buyNotes, MatchSeparator); i >= 0 {
			buyNotes = buyNotes[:i]
		}
		return r.Provenance.SaleName, buyNotes, false
	}
	if i := strings.LastIndex(r.Notes, MatchSeparator); i >= 0 {
		return r.Notes[i+len(MatchSeparator):], r.Notes[:i], false
	}
	// Manual edits destroyed the audit trail; the sale keeps the current name.
	return r.Name, r.Notes, true
}

// Split is the inverse of Merge: it reconstructs the purchase and the sale
// from one closed-loop record. The purchase keeps the original id with its
// sale leg cleared; the sale gets a fresh id. The collection grows by exactly
// one record. Only closed-loop records can be split, and the caller must have
// confirmed the intent first.
func (s *Store) Split(id string, confirmed bool) (SplitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return SplitResult{}, fmt.Errorf("split %q: %w", id, ErrNotFound)
	}
	original := s.records[i]
	if original.State() != models.StateClosedLoop {
		return SplitResult{}, fmt.Errorf("split %q: only closed-loop records split: %w", id, ErrState)
	}
	if !confirmed {
		return SplitResult{}, fmt.Errorf("split %q: %w", id, ErrConfirmRequired)
	}

	saleName, buyNotes, degraded := recoverSaleHalf(original)

	saleDate := original.SellDate
	if saleDate == "" {
		saleDate = original.Date
	}

	purchase := original
	purchase.SellPrice = 0
	purchase.IsSold = false
	purchase.SellDate = ""
	purchase.ShippingCost = 0
	purchase.ShippingMethod = ""
	purchase.Notes = buyNotes
	purchase.Provenance = nil

	sale := models.Record{
		ID:             uuid.NewString(),
		Name:           saleName,
		Category:       original.Category,
		SellPrice:      original.SellPrice,
		IsSold:         true,
		Date:           saleDate,
		SellDate:       saleDate,
		ShippingCost:   original.ShippingCost,
		ShippingMethod: original.ShippingMethod,
		Notes:          fmt.Sprintf("Unmerged from: %s", original.Name),
	}

	s.records[i] = purchase
	s.records = append(s.records, models.Record{})
	copy(s.records[i+2:], s.records[i+1:])
	s.records[i+1] = sale

	s.logger.Info("Split closed-loop record",
		zap.String("purchaseId", purchase.ID),
		zap.String("saleId", sale.ID),
		zap.Bool("degraded", degraded),
	)
	s.flushLocked()
	return SplitResult{Purchase: purchase, Sale: sale, Degraded: degraded}, nil
}
