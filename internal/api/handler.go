package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fraudshield/fraudshield/internal/analytics"
	"github.com/fraudshield/fraudshield/internal/domain"
	"github.com/fraudshield/fraudshield/internal/engine"
	"github.com/fraudshield/fraudshield/internal/history"
	"github.com/fraudshield/fraudshield/internal/kyc"
	"github.com/fraudshield/fraudshield/internal/worker"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	engine  *engine.Engine
	kyc     *kyc.Registry
	store   domain.Store
	bus     domain.EventBus
	version string
}

// NewHandler creates a new API handler.
func NewHandler(eng *engine.Engine, registry *kyc.Registry, store domain.Store, bus domain.EventBus, version string) *Handler {
	return &Handler{
		engine:  eng,
		kyc:     registry,
		store:   store,
		bus:     bus,
		version: version,
	}
}

// Predict handles POST /predict. The body is a single loosely-typed
// transaction row; missing or malformed fields coerce to defaults.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	tx := h.engine.Normalize(raw)

	result, err := h.engine.Predict(ctx, tx)
	if err != nil {
		slog.Error("prediction failed", "transaction_id", tx.TransactionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "prediction failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// BatchRowsRequest is the request body for POST /batch and POST /predict/batch.
type BatchRowsRequest struct {
	Rows []map[string]any `json:"rows"`

	// Async routes the upload through the ingestion worker instead of
	// scoring inline. Requires a running worker.
	Async bool `json:"async,omitempty"`
}

// PredictBatch handles POST /predict/batch. Rows from the body are scored
// in order; with an empty body the previously uploaded batch is scored.
func (h *Handler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BatchRowsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	var rows []domain.Transaction
	if len(req.Rows) > 0 {
		rows = make([]domain.Transaction, 0, len(req.Rows))
		for _, raw := range req.Rows {
			rows = append(rows, h.engine.Normalize(raw))
		}
	} else {
		rows = h.engine.Batch().Rows()
	}

	if len(rows) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "no rows to predict; upload a batch or include rows in the body",
		})
		return
	}

	result, err := h.engine.PredictBatch(ctx, rows)
	if err != nil {
		slog.Error("batch prediction failed", "rows", len(rows), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "batch prediction failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// UploadBatch handles POST /batch. Rows are normalized and stored as the
// current batch; async uploads are handed to the ingestion worker over the
// event bus instead.
func (h *Handler) UploadBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BatchRowsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Rows) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rows are required",
		})
		return
	}

	if req.Async {
		if h.bus == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "event bus not available",
			})
			return
		}
		msg := worker.RowsMessage{
			TraceID: GetTraceID(ctx),
			Rows:    req.Rows,
		}
		data, err := json.Marshal(msg)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to encode rows",
			})
			return
		}
		if err := h.bus.Publish(ctx, domain.TopicRowsIngested, data); err != nil {
			slog.Error("failed to publish rows", "rows", len(req.Rows), "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to enqueue rows",
			})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"accepted": len(req.Rows),
		})
		return
	}

	rows, err := h.engine.IngestRows(ctx, req.Rows)
	if err != nil {
		if errors.Is(err, history.ErrBatchNotPersisted) {
			slog.Warn("batch rows not persisted", "rows", len(rows), "error", err)
		} else {
			slog.Error("batch upload failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "batch upload failed",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rows":  rows,
		"count": len(rows),
	})
}

// GetBatch handles GET /batch.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	rows := h.engine.Batch().Rows()
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":  rows,
		"count": len(rows),
	})
}

// ClearBatch handles DELETE /batch.
func (h *Handler) ClearBatch(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Batch().Clear(r.Context()); err != nil {
		if !errors.Is(err, history.ErrBatchNotPersisted) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to clear batch",
			})
			return
		}
		slog.Warn("batch clear not persisted", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "batch cleared",
	})
}

// HistoryStats summarises the full retained history for the listing page.
type HistoryStats struct {
	Fraud       int     `json:"fraud"`
	Legit       int     `json:"legit"`
	TotalAmount float64 `json:"totalAmount"`
	AvgRisk     float64 `json:"avgRisk"`
}

// ListHistory handles GET /history. Optional query filters: prediction,
// customer, channel, max_risk, limit. Entries are newest first.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	entries := h.engine.History().Entries()

	stats := HistoryStats{}
	var riskSum float64
	for _, e := range entries {
		if e.Prediction == domain.LabelFraud {
			stats.Fraud++
		} else {
			stats.Legit++
		}
		stats.TotalAmount += e.TransactionAmount
		riskSum += e.Risk
	}
	if len(entries) > 0 {
		stats.AvgRisk = riskSum / float64(len(entries))
	}

	q := r.URL.Query()
	filtered := entries
	if p := q.Get("prediction"); p != "" {
		filtered = filterEntries(filtered, func(e domain.HistoryEntry) bool {
			return e.Prediction == p
		})
	}
	if c := q.Get("customer"); c != "" {
		filtered = filterEntries(filtered, func(e domain.HistoryEntry) bool {
			return e.CustomerID == c
		})
	}
	if ch := q.Get("channel"); ch != "" {
		filtered = filterEntries(filtered, func(e domain.HistoryEntry) bool {
			return strings.EqualFold(e.Channel, ch)
		})
	}
	if mr := q.Get("max_risk"); mr != "" {
		limit, err := strconv.ParseFloat(mr, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "max_risk must be a number",
			})
			return
		}
		filtered = filterEntries(filtered, func(e domain.HistoryEntry) bool {
			return e.Risk <= limit
		})
	}
	if ls := q.Get("limit"); ls != "" {
		n, err := strconv.Atoi(ls)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		if n < len(filtered) {
			filtered = filtered[:n]
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": filtered,
		"count":   len(filtered),
		"total":   len(entries),
		"stats":   stats,
	})
}

func filterEntries(in []domain.HistoryEntry, keep func(domain.HistoryEntry) bool) []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, 0, len(in))
	for _, e := range in {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// ExportHistory handles GET /history/export, streaming the history table
// as CSV, newest first.
func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	entries := h.engine.History().Entries()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="prediction_history.csv"`)

	cw := csv.NewWriter(w)
	header := []string{
		"transaction_id", "customer_id", "transaction_amount",
		"account_age_days", "kyc_verified", "channel", "timestamp",
		"prediction", "risk", "reason", "time",
	}
	if err := cw.Write(header); err != nil {
		slog.Error("csv export failed", "error", err)
		return
	}
	for _, e := range entries {
		record := []string{
			e.TransactionID,
			e.CustomerID,
			strconv.FormatFloat(e.TransactionAmount, 'f', -1, 64),
			strconv.FormatFloat(e.AccountAgeDays, 'f', -1, 64),
			strconv.FormatBool(e.KYCVerified),
			e.Channel,
			e.Timestamp,
			e.Prediction,
			strconv.FormatFloat(e.Risk, 'f', -1, 64),
			e.Reason,
			e.Time,
		}
		if err := cw.Write(record); err != nil {
			slog.Error("csv export failed", "error", err)
			return
		}
	}
	cw.Flush()
}

// DeleteHistoryEntry handles DELETE /history/{index}. Index 0 is the most
// recent entry.
func (h *Handler) DeleteHistoryEntry(w http.ResponseWriter, r *http.Request) {
	idxParam := chi.URLParam(r, "index")
	idx, err := strconv.Atoi(idxParam)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "index must be an integer",
		})
		return
	}

	if err := h.engine.RemoveHistoryEntry(r.Context(), idx); err != nil {
		switch {
		case errors.Is(err, history.ErrIndexOutOfRange):
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": fmt.Sprintf("no history entry at index %d", idx),
			})
		case errors.Is(err, history.ErrNotPersisted):
			slog.Warn("history delete not persisted", "index", idx, "error", err)
			writeJSON(w, http.StatusOK, map[string]any{
				"message":   "entry removed",
				"persisted": false,
			})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to remove entry",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "entry removed",
		"persisted": true,
	})
}

// ClearHistory handles DELETE /history.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ClearHistory(r.Context()); err != nil {
		if !errors.Is(err, history.ErrNotPersisted) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to clear history",
			})
			return
		}
		slog.Warn("history clear not persisted", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "history cleared",
	})
}

// ListAlerts handles GET /alerts.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.engine.Alerts().Alerts()
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetPatterns handles GET /patterns.
func (h *Handler) GetPatterns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Patterns())
}

// AnalyticsSummary handles GET /analytics/summary. The summary is computed
// over the uploaded batch; with no batch it falls back to the transactions
// recorded in history.
func (h *Handler) AnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	rows := h.engine.Batch().Rows()
	source := "batch"
	if len(rows) == 0 {
		entries := h.engine.History().Entries()
		rows = make([]domain.Transaction, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, e.Transaction)
		}
		source = "history"
	}

	summary := analytics.Summarize(rows)
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": summary,
		"source":  source,
	})
}

// ModelMetrics handles GET /metrics.
func (h *Handler) ModelMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analytics.Metrics())
}

// KYCVerifyRequest is the request body for POST /kyc/verify.
type KYCVerifyRequest struct {
	CustomerID string `json:"customer_id"`
	DocType    string `json:"doc_type"`
	Number     string `json:"number"`
}

// KYCVerify handles POST /kyc/verify.
func (h *Handler) KYCVerify(w http.ResponseWriter, r *http.Request) {
	var req KYCVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	verification, err := h.kyc.Verify(r.Context(), req.CustomerID, req.DocType, req.Number)
	if err != nil {
		if errors.Is(err, kyc.ErrCustomerRequired) || errors.Is(err, kyc.ErrInvalidDocument) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("kyc verification failed", "customer_id", req.CustomerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "verification failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"customer_id":  req.CustomerID,
		"verified":     true,
		"verification": verification,
	})
}

// KYCStatus handles GET /kyc/{customerId}.
func (h *Handler) KYCStatus(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerId")
	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customer id is required",
		})
		return
	}

	verification, ok := h.kyc.Get(customerID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"customer_id": customerID,
			"verified":    false,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"customer_id":  customerID,
		"verified":     true,
		"verification": verification,
	})
}

// GetCustomerProfile handles GET /customers/{customerId}/profile: the
// customer's history summary with trust rating and risk band, plus their
// KYC standing.
func (h *Handler) GetCustomerProfile(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerId")
	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customer id is required",
		})
		return
	}

	profile := h.engine.CustomerProfile(customerID)

	kycInfo := map[string]any{"verified": false}
	if verification, ok := h.kyc.Get(customerID); ok {
		kycInfo["verified"] = true
		kycInfo["type"] = verification.Type
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"profile": profile,
		"kyc":     kycInfo,
	})
}

// ListRules returns all configured custom alert rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	ruleList := h.engine.Rules().Rules()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules":   ruleList,
		"count":   len(ruleList),
		"enabled": h.engine.Rules().RulesCount(),
	})
}

// CreateRuleRequest is the request body for creating or updating a rule.
type CreateRuleRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Message    string `json:"message"`
	Enabled    bool   `json:"enabled"`
}

// CreateRule creates or updates a custom alert rule. A missing ID gets a
// generated one; the CEL expression is compiled before anything is saved.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name and expression are required",
		})
		return
	}

	rule := domain.AlertRule{
		ID:         req.ID,
		Name:       req.Name,
		Expression: req.Expression,
		Message:    req.Message,
		Enabled:    req.Enabled,
	}

	saved, err := h.engine.Rules().Save(r.Context(), rule)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule: " + err.Error(),
		})
		return
	}

	slog.Info("rule saved", "id", saved.ID, "name", saved.Name, "enabled", saved.Enabled)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule": saved,
	})
}

// ValidateRuleCheck handles POST /rules/validate: a dry-run compile of a
// rule expression without saving anything.
func (h *Handler) ValidateRuleCheck(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "expression is required",
		})
		return
	}

	rule := domain.AlertRule{
		ID:         req.ID,
		Name:       req.Name,
		Expression: req.Expression,
		Message:    req.Message,
		Enabled:    req.Enabled,
	}

	if err := h.engine.Rules().ValidateRule(rule); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"valid": false,
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid": true,
	})
}

// ReloadRules re-reads the rule set from the store and recompiles it.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Rules().Load(r.Context()); err != nil {
		slog.Error("failed to reload rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	count := len(h.engine.Rules().Rules())
	slog.Info("rules reloaded", "count", count)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check store health
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check bus health
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
