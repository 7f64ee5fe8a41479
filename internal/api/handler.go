package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prudenterpo/fraudshield/internal/combiner"
	"github.com/prudenterpo/fraudshield/internal/domain"
	"github.com/prudenterpo/fraudshield/internal/repository"
	"github.com/prudenterpo/fraudshield/internal/rules"
	"github.com/prudenterpo/fraudshield/internal/velocity"
)

// assessmentCacheTTL bounds how long a cached assessment may serve
// lookups before falling back to the repository.
const assessmentCacheTTL = 15 * time.Minute

// minObservations is how many assessments must exist before the
// observed fraud ratio is worth reporting against the fixed priors.
const minObservations = 100

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	combiner  *combiner.Combiner
	screening *rules.ScreeningEngine
	velocity  *velocity.Service
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, c *combiner.Combiner, screening *rules.ScreeningEngine, vel *velocity.Service, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		combiner:  c,
		screening: screening,
		velocity:  vel,
		version:   version,
	}
}

// AnalyzeResponse is the response for POST /api/v1/transactions/analyze.
type AnalyzeResponse struct {
	Assessment *domain.FraudAssessment `json:"assessment"`
	Screening  []domain.ScreeningMatch `json:"screening,omitempty"`
	Metadata   struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Analyze handles POST /api/v1/transactions/analyze.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req domain.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	tx := req.ToTransaction(uuid.New().String())

	// History is read before the current transaction is persisted so
	// the transaction is never compared against itself.
	history, err := h.repo.GetCustomerHistory(ctx, tx.CustomerID)
	if err != nil {
		slog.Error("failed to load customer history", "customer_id", tx.CustomerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load customer history",
		})
		return
	}

	if err := h.repo.SaveTransaction(ctx, tx); err != nil {
		slog.Error("failed to save transaction", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save transaction",
		})
		return
	}

	if h.velocity != nil {
		if err := h.velocity.Observe(ctx, tx.CustomerID, time.Minute, time.Hour); err != nil {
			slog.Warn("failed to record velocity", "customer_id", tx.CustomerID, "error", err)
		}
	}

	assessment := h.combiner.Score(tx, history)

	var matches []domain.ScreeningMatch
	if h.screening != nil && h.screening.RulesCount() > 0 {
		matches = h.screening.Screen(ctx, tx)
	}

	if err := h.repo.SaveAssessment(ctx, assessment); err != nil {
		slog.Error("failed to save assessment", "id", assessment.ID, "error", err)
	}

	if h.cache != nil {
		if err := h.cache.SetAssessment(ctx, tx.ID, assessment, assessmentCacheTTL); err != nil {
			slog.Warn("failed to cache assessment", "transaction_id", tx.ID, "error", err)
		}
	}

	h.publish(ctx, domain.TopicAssessment, assessment)

	slog.Info("transaction analyzed",
		"transaction_id", tx.ID,
		"customer_id", tx.CustomerID,
		"status", assessment.Status,
		"risk_score", assessment.RiskScore,
		"screening_matches", len(matches),
	)

	resp := AnalyzeResponse{
		Assessment: assessment,
		Screening:  matches,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// FeedbackRequest is the request body for POST /api/v1/feedback/fraud.
type FeedbackRequest struct {
	TransactionID string `json:"transactionId"`
	WasFraud      bool   `json:"wasFraud"`
}

// Feedback handles POST /api/v1/feedback/fraud. Operator ground truth
// adjusts the combiner weights for future scoring.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.TransactionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactionId is required",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "transaction not found",
			})
			return
		}
		slog.Error("failed to get transaction", "id", req.TransactionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get transaction",
		})
		return
	}

	prior, err := h.repo.GetAssessmentByTransaction(ctx, req.TransactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "no assessment for transaction",
			})
			return
		}
		slog.Error("failed to get assessment", "transaction_id", req.TransactionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get assessment",
		})
		return
	}

	// Rebuild the history as it stood when the transaction was scored:
	// everything before it, excluding the transaction itself.
	history, err := h.repo.GetCustomerHistory(ctx, tx.CustomerID)
	if err != nil {
		slog.Error("failed to load customer history", "customer_id", tx.CustomerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load customer history",
		})
		return
	}
	history = excludeTransaction(history, tx.ID)

	diag := h.combiner.RecordFeedback(tx, prior, history, req.WasFraud)

	h.publish(ctx, domain.TopicFeedback, diag)
	h.observeFraudRatio(ctx)

	writeJSON(w, http.StatusOK, diag)
}

// GetTransaction handles GET /api/v1/transactions/{id}.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	tx, err := h.repo.GetTransaction(ctx, txID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "transaction not found",
			})
			return
		}
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get transaction",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// GetAssessment handles GET /api/v1/assessments/{id}.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	assessment, err := h.repo.GetAssessment(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "assessment not found",
			})
			return
		}
		slog.Error("failed to get assessment", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get assessment",
		})
		return
	}

	writeJSON(w, http.StatusOK, assessment)
}

// GetTransactionAssessment handles GET /api/v1/transactions/{id}/assessment.
// Served from cache when possible.
func (h *Handler) GetTransactionAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	if h.cache != nil {
		if cached, err := h.cache.GetAssessment(ctx, txID); err == nil && cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	assessment, err := h.repo.GetAssessmentByTransaction(ctx, txID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "no assessment for transaction",
			})
			return
		}
		slog.Error("failed to get assessment", "transaction_id", txID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get assessment",
		})
		return
	}

	if h.cache != nil {
		_ = h.cache.SetAssessment(ctx, txID, assessment, assessmentCacheTTL)
	}

	writeJSON(w, http.StatusOK, assessment)
}

// StatsResponse is the response for GET /api/v1/stats/overview.
type StatsResponse struct {
	Counts  domain.StatusCounts `json:"counts"`
	Total   int64               `json:"total"`
	Weights struct {
		Rule       float64 `json:"rule"`
		Similarity float64 `json:"similarity"`
	} `json:"weights"`
}

// Stats handles GET /api/v1/stats/overview.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.repo.CountAssessmentsByStatus(r.Context())
	if err != nil {
		slog.Error("failed to count assessments", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to count assessments",
		})
		return
	}

	weights := h.combiner.CurrentWeights()

	resp := StatsResponse{
		Counts: counts,
		Total:  counts.Total(),
	}
	resp.Weights.Rule = weights.Rule()
	resp.Weights.Similarity = weights.Similarity()

	writeJSON(w, http.StatusOK, resp)
}

// ListScreeningRules returns the rules currently loaded in the engine.
func (h *Handler) ListScreeningRules(w http.ResponseWriter, r *http.Request) {
	if h.screening == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "screening engine not available",
		})
		return
	}

	loaded := h.screening.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":  loaded,
		"count":  len(loaded),
		"source": "database",
	})
}

// GetScreeningRule retrieves a screening rule by ID.
func (h *Handler) GetScreeningRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	rule, err := h.repo.GetScreeningRule(ctx, ruleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}
		slog.Error("failed to get screening rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get rule",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// CreateScreeningRule creates a screening rule and saves it to the
// database. Call POST /api/v1/screening-rules/reload to apply it.
func (h *Handler) CreateScreeningRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.screening == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "screening engine not available",
		})
		return
	}

	var rule domain.ScreeningRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if rule.ID == "" || rule.Name == "" || rule.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	// Validate CEL expression by attempting to load
	if err := h.screening.LoadRule(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveScreeningRule(ctx, &rule); err != nil {
		slog.Error("failed to save screening rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("screening rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    rule,
		"message": "Rule created. Call POST /api/v1/screening-rules/reload to apply changes.",
	})
}

// ReloadScreeningRules reloads all screening rules from the database
// into the engine. Enables hot-reloading without server restart.
func (h *Handler) ReloadScreeningRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.screening == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "screening engine not available",
		})
		return
	}

	dbRules, err := h.repo.ListScreeningRules(ctx)
	if err != nil {
		slog.Error("failed to list screening rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.screening.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload screening rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("screening rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   h.screening.RulesCount(),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

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

// observeFraudRatio logs the observed fraud ratio against the fixed
// priors once enough assessments exist. The priors themselves stay
// fixed; this only surfaces the drift.
func (h *Handler) observeFraudRatio(ctx context.Context) {
	counts, err := h.repo.CountAssessmentsByStatus(ctx)
	if err != nil {
		slog.Warn("failed to count assessments for prior observation", "error", err)
		return
	}

	total := counts.Total()
	if total < minObservations {
		return
	}

	slog.Info("observed fraud ratio",
		"rejected", counts.Rejected,
		"total", total,
		"ratio", float64(counts.Rejected)/float64(total),
	)
}

func (h *Handler) publish(ctx context.Context, topic string, v any) {
	if h.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Warn("failed to encode event payload", "topic", topic, "error", err)
		return
	}
	if err := h.bus.Publish(ctx, topic, payload); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

func excludeTransaction(history []*domain.Transaction, txID string) []*domain.Transaction {
	filtered := history[:0]
	for _, tx := range history {
		if tx.ID != txID {
			filtered = append(filtered, tx)
		}
	}
	return filtered
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
