package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"resale-ledger-go/internal/models"
)

// ImportMode selects how an imported batch meets the existing collection.
type ImportMode string

const (
	// ImportMerge appends imported records, skipping ids already present.
	// Existing data is never overwritten.
	ImportMerge ImportMode = "MERGE"
	// ImportReplace swaps the whole collection for the imported batch.
	// Destructive, so it requires confirmation.
	ImportReplace ImportMode = "REPLACE"
)

// ImportSummary reports what an import did, for the after-the-fact summary
// the UI shows.
type ImportSummary struct {
	Parsed     int                  `json:"parsed"`
	Added      int                  `json:"added"`
	Skipped    int                  `json:"skipped"`
	Mode       ImportMode           `json:"mode"`
	StateCount map[models.State]int `json:"stateCount"`
}

// rawRecord is the untrusted wire shape of one imported element. Every field
// is loose on purpose: prices arrive as numbers or strings, flags as bools or
// numbers, and anything may be missing. Repair happens after parsing, never
// during.
type rawRecord struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	SmartTag       string          `json:"smartTag"`
	BuyPrice       json.RawMessage `json:"buyPrice"`
	SellPrice      json.RawMessage `json:"sellPrice"`
	IsSold         json.RawMessage `json:"isSold"`
	Date           string          `json:"date"`
	SellDate       string          `json:"sellDate"`
	Notes          string          `json:"notes"`
	ShippingCost   json.RawMessage `json:"shippingCost"`
	ShippingMethod string          `json:"shippingMethod"`

	Provenance *models.MergeProvenance `json:"mergeProvenance"`
}

// looseNumber coerces a raw JSON value to a non-negative float. Strings
// containing a number are accepted; anything else becomes zero with ok false.
func looseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f < 0 {
			return 0, true
		}
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &f); err == nil && f >= 0 {
			return f, true
		}
	}
	return 0, false
}

// looseBool coerces a raw JSON value to a bool, accepting true/false, the
// strings "true"/"false", and numbers (non-zero is true).
func looseBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f != 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.EqualFold(strings.TrimSpace(s), "true")
	}
	return false
}

// extractArray locates the record array inside an arbitrary text blob.
// Upstream tools wrap exports in prose, so the first-'['-to-last-']' span is
// tried before the verbatim input.
func extractArray(payload string) ([]rawRecord, error) {
	candidates := make([]string, 0, 2)
	if start, end := strings.Index(payload, "["), strings.LastIndex(payload, "]"); start >= 0 && end > start {
		candidates = append(candidates, payload[start:end+1])
	}
	candidates = append(candidates, payload)

	var lastErr error
	for _, candidate := range candidates {
		var raw []rawRecord
		if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &raw); err != nil {
			lastErr = err
			continue
		}
		return raw, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: expected a JSON array of record objects: %v", ErrInvalidPayload, lastErr)
	}
	return nil, fmt.Errorf("%w: expected a JSON array of record objects", ErrInvalidPayload)
}

// repair turns one untrusted element into a valid record: fresh id and
// default name when missing, prices clamped, today's date when absent, the
// sale date inferred from the purchase date for sold items, and the shipping
// defaulting rule applied to sold items.
func repair(raw rawRecord) models.Record {
	r := models.Record{
		ID:             strings.TrimSpace(raw.ID),
		Name:           raw.Name,
		Category:       models.Category(raw.Category),
		SmartTag:       raw.SmartTag,
		Notes:          raw.Notes,
		ShippingMethod: models.ShippingMethod(raw.ShippingMethod),
		Provenance:     raw.Provenance,
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	r.BuyPrice, _ = looseNumber(raw.BuyPrice)
	r.SellPrice, _ = looseNumber(raw.SellPrice)
	r.IsSold = looseBool(raw.IsSold)

	if normalized, ok := models.NormalizeDate(raw.Date); ok {
		r.Date = normalized
	} else {
		r.Date = models.Today()
	}
	if normalized, ok := models.NormalizeDate(raw.SellDate); ok {
		r.SellDate = normalized
	}

	sold := r.IsSold || r.SellPrice > 0
	cost, costValid := looseNumber(raw.ShippingCost)
	if sold {
		// A method whose cost did not parse gets that method's table cost,
		// not the default method's.
		if costValid {
			r.ShippingCost = cost
		} else if r.ShippingMethod != "" {
			r.ShippingCost = models.ShippingCostFor(r.ShippingMethod)
		}
	}

	r.Sanitize()

	// Sanitize treats a zero cost as unset and re-costs it from the table.
	// Here presence is knowable: a supplied method with a valid number keeps
	// that number, an explicit free shipment included. A record with no
	// method still gets the default method and its cost.
	if sold && costValid && raw.ShippingMethod != "" {
		r.ShippingCost = cost
	}
	return r
}

// Import parses an untrusted text blob into records, repairs them, and
// merges or replaces the collection. Replace mode is destructive and needs
// the confirmation flag. Every failure path returns a structured error; the
// collection is untouched unless the import fully succeeds.
func (s *Store) Import(payload string, mode ImportMode, confirmed bool) (ImportSummary, error) {
	raw, err := extractArray(payload)
	if err != nil {
		return ImportSummary{}, err
	}

	summary := ImportSummary{
		Parsed:     len(raw),
		Mode:       mode,
		StateCount: make(map[models.State]int),
	}

	repaired := make([]models.Record, 0, len(raw))
	for _, element := range raw {
		r := repair(element)
		summary.StateCount[r.State()]++
		repaired = append(repaired, r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch mode {
	case ImportReplace:
		if !confirmed {
			return ImportSummary{}, fmt.Errorf("replace import: %w", ErrConfirmRequired)
		}
		// Batch-internal duplicates collapse first-write-wins too.
		seen := make(map[string]struct{}, len(repaired))
		next := make([]models.Record, 0, len(repaired))
		for _, r := range repaired {
			if _, dup := seen[r.ID]; dup {
				summary.Skipped++
				continue
			}
			seen[r.ID] = struct{}{}
			next = append(next, r)
		}
		s.records = next
		summary.Added = len(next)

	case ImportMerge:
		existing := make(map[string]struct{}, len(s.records))
		for _, r := range s.records {
			existing[r.ID] = struct{}{}
		}
		for _, r := range repaired {
			if _, dup := existing[r.ID]; dup {
				summary.Skipped++
				continue
			}
			existing[r.ID] = struct{}{}
			s.records = append(s.records, r)
			summary.Added++
		}

	default:
		return ImportSummary{}, fmt.Errorf("%w: unknown import mode %q", ErrInvalidPayload, mode)
	}

	s.logger.Info("Import applied",
		zap.String("mode", string(mode)),
		zap.Int("parsed", summary.Parsed),
		zap.Int("added", summary.Added),
		zap.Int("skipped", summary.Skipped),
	)
	s.flushLocked()
	return summary, nil
}
