package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resale-ledger-go/internal/models"
)

// newTestStore builds a store with no persistence and a silent logger.
func newTestStore(records ...models.Record) *Store {
	return NewStore(records, nil, nil)
}

func TestAddAssignsIDAndSanitizes(t *testing.T) {
	s := newTestStore()
	r := s.Add(models.Record{Name: "  Switch OLED ", BuyPrice: -50, Date: "2025-01-10"})

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "Switch OLED", r.Name)
	assert.Zero(t, r.BuyPrice, "negative prices are clamped at the boundary")
	assert.Equal(t, 1, s.Len())
}

func TestAllOrdersMostRecentFirst(t *testing.T) {
	s := newTestStore(
		models.Record{ID: "old", BuyPrice: 1, Date: "2025-01-01"},
		models.Record{ID: "new", BuyPrice: 1, Date: "2025-06-01"},
		models.Record{ID: "mid", BuyPrice: 1, Date: "2025-03-01"},
	)

	var ids []string
	for _, r := range s.All() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)
}

func TestUpdateUnknownIDIsNoOp(t *testing.T) {
	s := newTestStore(models.Record{ID: "a", Name: "X", BuyPrice: 10, Date: "2025-01-01"})

	_, err := s.Update(models.Record{ID: "ghost", Name: "Y"})
	assert.ErrorIs(t, err, ErrNotFound)

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "X", got.Name)
}

func TestMarkSold(t *testing.T) {
	s := newTestStore(models.Record{ID: "a", Name: "Lens", BuyPrice: 800, Date: "2025-02-01"})

	r, err := s.MarkSold("a", 1200, "", models.ShippingSF)
	require.NoError(t, err)
	assert.True(t, r.IsSold)
	assert.Equal(t, 1200.0, r.SellPrice)
	assert.NotEmpty(t, r.SellDate, "sale date defaults to today")
	assert.Equal(t, models.ShippingSF, r.ShippingMethod)
	assert.Equal(t, models.ShippingCostFor(models.ShippingSF), r.ShippingCost)
	assert.Equal(t, models.StateClosedLoop, r.State())

	_, err = s.MarkSold("ghost", 10, "", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteByLifecycleState(t *testing.T) {
	inventory := models.Record{ID: "inv", Name: "A", BuyPrice: 10, Date: "2025-01-01"}
	closed := models.Record{ID: "closed", Name: "B", BuyPrice: 10, SellPrice: 20, IsSold: true, Date: "2025-01-01", SellDate: "2025-02-01"}

	t.Run("inventory deletes without extra confirmation", func(t *testing.T) {
		s := newTestStore(inventory, closed)
		require.NoError(t, s.Delete("inv", false))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("closed-loop refuses without confirmation", func(t *testing.T) {
		s := newTestStore(inventory, closed)
		err := s.Delete("closed", false)
		assert.ErrorIs(t, err, ErrConfirmRequired)
		assert.Equal(t, 2, s.Len(), "collection untouched on refusal")

		require.NoError(t, s.Delete("closed", true))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		s := newTestStore(inventory)
		assert.ErrorIs(t, s.Delete("ghost", true), ErrNotFound)
		assert.Equal(t, 1, s.Len())
	})
}

func TestApplySmartTag(t *testing.T) {
	s := newTestStore(models.Record{ID: "a", Name: "iPhone 13", BuyPrice: 2000, Date: "2025-01-01"})

	t.Run("applies when id and name still match", func(t *testing.T) {
		s.ApplySmartTag("a", "iPhone 13", models.TagConsoles)
		got, _ := s.Get("a")
		assert.Equal(t, models.TagConsoles, got.SmartTag)
	})

	t.Run("dropped when the name changed since submit", func(t *testing.T) {
		_, err := s.Update(models.Record{ID: "a", Name: "iPhone 13 Pro", BuyPrice: 2000, Date: "2025-01-01"})
		require.NoError(t, err)

		s.ApplySmartTag("a", "iPhone 13", models.TagApparel)
		got, _ := s.Get("a")
		assert.NotEqual(t, models.TagApparel, got.SmartTag)
	})

	t.Run("dropped when the record is gone", func(t *testing.T) {
		assert.NotPanics(t, func() { s.ApplySmartTag("ghost", "whatever", models.TagMedia) })
	})
}

func TestFlushRunsAfterEveryMutation(t *testing.T) {
	var flushes [][]models.Record
	flush := func(records []models.Record) error {
		flushes = append(flushes, records)
		return nil
	}
	s := NewStore(nil, flush, nil)

	r := s.Add(models.Record{Name: "X", BuyPrice: 10, Date: "2025-01-01"})
	_, err := s.Update(models.Record{ID: r.ID, Name: "X2", BuyPrice: 10, Date: "2025-01-01"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(r.ID, false))

	require.Len(t, flushes, 3)
	assert.Len(t, flushes[0], 1)
	assert.Equal(t, "X2", flushes[1][0].Name)
	assert.Empty(t, flushes[2])
}

func TestFilterByState(t *testing.T) {
	s := newTestStore(
		models.Record{ID: "i1", BuyPrice: 10, Date: "2025-03-01"},
		models.Record{ID: "s1", SellPrice: 20, IsSold: true, Date: "2025-02-01"},
		models.Record{ID: "c1", BuyPrice: 10, SellPrice: 20, IsSold: true, Date: "2025-01-01"},
		models.Record{ID: "empty", Date: "2025-01-01"},
	)

	assert.Len(t, s.FilterByState(models.StateInventory), 1)
	assert.Len(t, s.FilterByState(models.StateOrphanSale), 1)
	assert.Len(t, s.FilterByState(models.StateClosedLoop), 1)
	// The degenerate bucket stays visible instead of being dropped.
	assert.Len(t, s.FilterByState(models.StateUnclassified), 1)
}

func TestExportJSONIsStable(t *testing.T) {
	s := newTestStore(models.Record{ID: "a", Name: "X", BuyPrice: 10, Date: "2025-01-01"})

	first, err := s.ExportJSON()
	require.NoError(t, err)
	second, err := s.ExportJSON()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, string(first), "\n  ", "export is pretty-printed")
}
