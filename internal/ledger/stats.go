package ledger

import (
	"sort"
	"strings"

	"resale-ledger-go/internal/models"
)

// Stats are the aggregate portfolio figures, derived in one pass over the
// collection. They are never cached: every caller gets numbers consistent
// with the snapshot it observes.
type Stats struct {
	TotalInvested    float64 `json:"totalInvested"`
	TotalRevenue     float64 `json:"totalRevenue"`
	ClosedLoopProfit float64 `json:"closedLoopProfit"`
	ClosedLoopCost   float64 `json:"closedLoopCost"`
	ClosedLoopROI    float64 `json:"closedLoopRoi"`
	TotalCount       int     `json:"totalCount"`
	SoldCount        int     `json:"soldCount"`
	ClosedLoopCount  int     `json:"closedLoopCount"`

	StateCount map[models.State]int `json:"stateCount"`
}

// ComputeStats derives aggregates from a collection snapshot. ROI uses the
// closed-loop cost basis only: unsold inventory is money at risk, not money
// already returned, and mixing it in understates the realized margin.
func ComputeStats(records []models.Record) Stats {
	stats := Stats{
		TotalCount: len(records),
		StateCount: make(map[models.State]int),
	}
	for _, r := range records {
		stats.TotalInvested += r.BuyPrice
		stats.StateCount[r.State()]++
		if r.IsSold || r.SellPrice > 0 {
			stats.TotalRevenue += r.SellPrice
			stats.SoldCount++
		}
		if profit, ok := r.NetProfit(); ok {
			stats.ClosedLoopProfit += profit
			stats.ClosedLoopCost += r.BuyPrice
			stats.ClosedLoopCount++
		}
	}
	if stats.ClosedLoopCost > 0 {
		stats.ClosedLoopROI = stats.ClosedLoopProfit / stats.ClosedLoopCost * 100
	}
	return stats
}

// Stats derives aggregates from the current collection.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ComputeStats(s.records)
}

// MonthlyStat is one month's bucket for the trend chart: money put in by
// acquisition month, money and profit realized by sale month.
type MonthlyStat struct {
	Month    string  `json:"month"` // YYYY-MM
	Invested float64 `json:"invested"`
	Revenue  float64 `json:"revenue"`
	Profit   float64 `json:"profit"`
}

// MonthlyStats buckets the collection by calendar month, oldest first.
// Purchases land in their acquisition month, realized revenue and profit in
// the sale month. Records with unparseable dates are skipped for the axis
// they cannot be placed on.
func (s *Store) MonthlyStats() []MonthlyStat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets := make(map[string]*MonthlyStat)
	bucket := func(date string) *MonthlyStat {
		if len(date) < 7 || !strings.Contains(date, "-") {
			return nil
		}
		month := date[:7]
		b, ok := buckets[month]
		if !ok {
			b = &MonthlyStat{Month: month}
			buckets[month] = b
		}
		return b
	}

	for _, r := range s.records {
		if r.BuyPrice > 0 {
			if b := bucket(r.Date); b != nil {
				b.Invested += r.BuyPrice
			}
		}
		if r.SellPrice > 0 {
			saleDate := r.SellDate
			if saleDate == "" {
				saleDate = r.Date
			}
			if b := bucket(saleDate); b != nil {
				b.Revenue += r.SellPrice
				if profit, ok := r.NetProfit(); ok {
					b.Profit += profit
				}
			}
		}
	}

	out := make([]MonthlyStat, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
