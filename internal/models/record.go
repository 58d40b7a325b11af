package models

import (
	"strings"
	"time"
)

// DateLayout is the wire format for every date carried by a record.
// The UI and the import/export format both speak plain calendar days.
const DateLayout = "2006-01-02"

// PlatformFeeRate is the flat marketplace fee charged on the sale proceeds
// plus shipping when a transaction closes.
const PlatformFeeRate = 0.006

// State is the derived lifecycle position of a record. It is never stored:
// it is a pure function of the two price fields.
type State string

const (
	// StateInventory marks a purchase with no recorded sale yet.
	StateInventory State = "inventory"
	// StateOrphanSale marks a sale with no associated purchase cost recorded.
	StateOrphanSale State = "orphan_sale"
	// StateClosedLoop marks a record with both legs recorded, the only unit
	// eligible for profit and ROI.
	StateClosedLoop State = "closed_loop"
	// StateUnclassified marks the degenerate both-zero case. It surfaces in
	// its own bucket instead of being dropped.
	StateUnclassified State = "unclassified"
)

// States lists every lifecycle state in display order.
func States() []State {
	return []State{StateInventory, StateOrphanSale, StateClosedLoop, StateUnclassified}
}

// MergeProvenance records the sale half absorbed into a closed-loop record.
// It is the source of truth for Split; the human-readable notes suffix is
// display only and safe to edit.
type MergeProvenance struct {
	SaleID   string `json:"saleId"`
	SaleName string `json:"saleName"`
	SaleDate string `json:"saleDate,omitempty"`
	MergedAt string `json:"mergedAt,omitempty"`
}

// Record is a single resale transaction: a purchase leg, a sale leg, or both.
type Record struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Category       Category         `json:"category"`
	SmartTag       string           `json:"smartTag,omitempty"`
	BuyPrice       float64          `json:"buyPrice"`
	SellPrice      float64          `json:"sellPrice"`
	IsSold         bool             `json:"isSold"`
	Date           string           `json:"date"`
	SellDate       string           `json:"sellDate,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	ShippingCost   float64          `json:"shippingCost,omitempty"`
	ShippingMethod ShippingMethod   `json:"shippingMethod,omitempty"`
	Provenance     *MergeProvenance `json:"mergeProvenance,omitempty"`
}

// State derives the lifecycle state from the two price fields.
func (r Record) State() State {
	switch {
	case r.BuyPrice > 0 && r.SellPrice > 0:
		return StateClosedLoop
	case r.BuyPrice > 0:
		return StateInventory
	case r.SellPrice > 0:
		return StateOrphanSale
	default:
		return StateUnclassified
	}
}

// PlatformFee returns the marketplace fee on (sellPrice + shippingCost).
// The fee only applies once both legs exist.
func (r Record) PlatformFee() float64 {
	if r.BuyPrice <= 0 || r.SellPrice <= 0 {
		return 0
	}
	return (r.SellPrice + r.ShippingCost) * PlatformFeeRate
}

// NetProfit returns sellPrice - buyPrice - shippingCost - platform fee.
// Profit is only defined for closed-loop records; the second return value
// reports whether the record contributes to profit aggregates.
func (r Record) NetProfit() (float64, bool) {
	if r.State() != StateClosedLoop {
		return 0, false
	}
	return r.SellPrice - r.BuyPrice - r.ShippingCost - r.PlatformFee(), true
}

// SaleTime returns the best timestamp for ordering a record by its sale leg:
// the sale date when present, the acquisition date otherwise.
func (r Record) SaleTime() time.Time {
	if t, ok := ParseDate(r.SellDate); ok {
		return t
	}
	if t, ok := ParseDate(r.Date); ok {
		return t
	}
	return time.Time{}
}

// AcquiredTime returns the acquisition date as a timestamp, zero when unset
// or unparseable.
func (r Record) AcquiredTime() time.Time {
	if t, ok := ParseDate(r.Date); ok {
		return t
	}
	return time.Time{}
}

// Sanitize repairs a record in place at an input boundary. Monetary fields
// are clamped to non-negative, the sold flag is reconciled with the sale
// price, a sold record without a sale date inherits the acquisition date,
// and blank name/category/date fall back to their defaults.
func (r *Record) Sanitize() {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		r.Name = DefaultName
	}
	if r.Category == "" {
		r.Category = CategoryOther
	}
	if r.BuyPrice < 0 {
		r.BuyPrice = 0
	}
	if r.SellPrice < 0 {
		r.SellPrice = 0
	}
	if r.ShippingCost < 0 {
		r.ShippingCost = 0
	}
	if r.SellPrice > 0 {
		r.IsSold = true
	}
	if r.Date == "" {
		r.Date = Today()
	}
	if r.IsSold && r.SellDate == "" {
		r.SellDate = r.Date
	}
	if r.IsSold {
		r.NormalizeShipping()
	}
}

// DefaultName labels records imported or extracted without a usable name.
const DefaultName = "未命名物品"

// ParseDate parses a wire-format date. It tolerates a couple of common
// variants seen in pasted backups; ok is false for anything unparseable.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{DateLayout, "2006/01/02", "2006.01.02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	// RFC3339 timestamps show up in exports from other tools; keep the day.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// NormalizeDate rewrites any parseable date into the wire format and reports
// whether it succeeded.
func NormalizeDate(s string) (string, bool) {
	t, ok := ParseDate(s)
	if !ok {
		return "", false
	}
	return t.Format(DateLayout), true
}

// Today returns the current day in wire format.
func Today() string {
	return time.Now().Format(DateLayout)
}
