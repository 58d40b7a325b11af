package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"resale-ledger-go/internal/assist"
	"resale-ledger-go/internal/ledger"
	"resale-ledger-go/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	toJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	toJSON(w, http.StatusOK, map[string]any{
		"records": s.store.Len(),
		"uptime":  time.Since(s.started).String(),
		"assist":  s.assist != nil,
	})
}

// handleListRecords returns the collection most-recent-first, optionally
// filtered to one lifecycle state via ?state=.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if state := r.URL.Query().Get("state"); state != "" {
		toJSON(w, http.StatusOK, s.store.FilterByState(models.State(state)))
		return
	}
	toJSON(w, http.StatusOK, s.store.All())
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var record models.Record
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error(), Code: "invalid_payload"})
		return
	}
	record.ID = "" // ids are assigned here, never by the client
	stored := s.store.Add(record)

	// Classification runs after the save and lands whenever it lands.
	s.tagger.Submit(r.Context(), []ledger.TagRequest{{ID: stored.ID, Name: stored.Name}})

	toJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var record models.Record
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error(), Code: "invalid_payload"})
		return
	}
	record.ID = chi.URLParam(r, "id")

	updated, err := s.store.Update(record)
	if err != nil {
		respondError(w, err)
		return
	}
	toJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	confirmed := r.URL.Query().Get("confirm") == "permanent"

	if err := s.store.Delete(id, confirmed); err != nil {
		respondError(w, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) handleMarkSold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SellPrice      float64               `json:"sellPrice"`
		SellDate       string                `json:"sellDate"`
		ShippingMethod models.ShippingMethod `json:"shippingMethod"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error(), Code: "invalid_payload"})
		return
	}

	record, err := s.store.MarkSold(chi.URLParam(r, "id"), req.SellPrice, req.SellDate, req.ShippingMethod)
	if err != nil {
		respondError(w, err)
		return
	}
	toJSON(w, http.StatusOK, record)
}

// handleMatches ranks orphan sales against the anchor record. Without an
// anchor ({id} route not taken and no ?anchor=) the candidates come back in
// recency order.
func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	anchorID := chi.URLParam(r, "id")
	if anchorID == "" {
		anchorID = r.URL.Query().Get("anchor")
	}

	ranked, err := s.store.Matches(anchorID)
	if err != nil {
		respondError(w, err)
		return
	}
	toJSON(w, http.StatusOK, ranked)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PurchaseID string `json:"purchaseId"`
		SaleID     string `json:"saleId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error(), Code: "invalid_payload"})
		return
	}

	merged, err := s.store.Merge(req.PurchaseID, req.SaleID)
	if err != nil {
		respondError(w, err)
		return
	}
	toJSON(w, http.StatusOK, merged)
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID        string `json:"id"`
		Confirmed bool   `json:"confirmed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error(), Code: "invalid_payload"})
		return
	}

	result, err := s.store.Split(req.ID, req.Confirmed)
	if err != nil {
		respondError(w, err)
		return
	}
	toJSON(w, http.StatusOK, result)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Payload   string `json:"payload"`
		Mode      string `json:"mode"`
		Confirmed bool   `json:"confirmed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error(), Code: "invalid_payload"})
		return
	}

	summary, err := s.store.Import(req.Payload, ledger.ImportMode(req.Mode), req.Confirmed)
	if err != nil {
		respondError(w, err)
		return
	}
	toJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.ExportJSON()
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="resale-ledger-export.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	toJSON(w, http.StatusOK, s.store.Stats())
}

func (s *Server) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	toJSON(w, http.StatusOK, s.store.MonthlyStats())
}

// handleExtractScreenshots wraps gateway-extracted items into records and
// adds them to the collection, then queues them for classification.
func (s *Server) handleExtractScreenshots(w http.ResponseWriter, r *http.Request) {
	if s.assist == nil {
		respondTransient(w, fmt.Errorf("no assist gateway configured"))
		return
	}

	var req struct {
		Images []string `json:"images"`
		Leg    string   `json:"leg"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error(), Code: "invalid_payload"})
		return
	}
	if req.Leg != assist.LegBuy && req.Leg != assist.LegSell {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: "leg must be BUY or SELL", Code: "invalid_payload"})
		return
	}

	items, err := s.assist.ExtractItems(r.Context(), req.Images, req.Leg)
	if err != nil {
		s.logger.Warn("Screenshot extraction failed", zap.Error(err))
		respondTransient(w, err)
		return
	}

	added := make([]models.Record, 0, len(items))
	requests := make([]ledger.TagRequest, 0, len(items))
	for _, record := range assist.WrapCandidates(items, req.Leg) {
		stored := s.store.Add(record)
		added = append(added, stored)
		requests = append(requests, ledger.TagRequest{ID: stored.ID, Name: stored.Name})
	}
	s.tagger.Submit(r.Context(), requests)

	toJSON(w, http.StatusCreated, added)
}

// handleExtractText pre-fills a record form from free text. Nothing is
// stored; the guess goes back to the caller.
func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	if s.assist == nil {
		respondTransient(w, fmt.Errorf("no assist gateway configured"))
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error(), Code: "invalid_payload"})
		return
	}

	guess, err := s.assist.ExtractFields(r.Context(), req.Text)
	if err != nil {
		s.logger.Warn("Field extraction failed", zap.Error(err))
		respondTransient(w, err)
		return
	}
	toJSON(w, http.StatusOK, guess)
}

// handleReport returns the narrative portfolio analysis. Responses are cached
// by a fingerprint of the current collection, so an unchanged portfolio never
// pays for a second gateway call inside the TTL.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.assist == nil {
		respondTransient(w, fmt.Errorf("no assist gateway configured"))
		return
	}

	records := s.store.All()
	stats := s.store.Stats()

	key := collectionFingerprint(records)
	if cached, ok := s.reports.Get(key); ok {
		toJSON(w, http.StatusOK, map[string]any{"report": cached, "cached": true})
		return
	}

	report, err := s.assist.NarrativeReport(r.Context(), records, stats)
	if err != nil {
		s.logger.Warn("Narrative report failed", zap.Error(err))
		respondTransient(w, err)
		return
	}

	s.reports.SetDefault(key, report)
	toJSON(w, http.StatusOK, map[string]any{"report": report, "cached": false})
}

// collectionFingerprint hashes the records so the report cache invalidates
// itself whenever the collection changes.
func collectionFingerprint(records []models.Record) string {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Sprintf("len-%d", len(records))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
