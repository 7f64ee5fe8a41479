// Package worker provides async transaction scoring off the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudenterpo/fraudshield/internal/combiner"
	"github.com/prudenterpo/fraudshield/internal/domain"
	"github.com/prudenterpo/fraudshield/internal/rules"
	"github.com/prudenterpo/fraudshield/internal/velocity"
)

// Worker scores transactions published to the ingestion topic, as an
// alternative to the synchronous HTTP path.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	cache     domain.Cache
	combiner  *combiner.Combiner
	screening *rules.ScreeningEngine
	velocity  *velocity.Service

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, c *combiner.Combiner, screening *rules.ScreeningEngine, vel *velocity.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		cache:     cache,
		combiner:  c,
		screening: screening,
		velocity:  vel,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the transaction-ingested topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicTransactionIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started", "topic", domain.TopicTransactionIngested)
	return nil
}

// IngestMessage is the payload published to the ingestion topic. The
// transaction ID is optional; one is generated when absent.
type IngestMessage struct {
	TransactionID string  `json:"transactionId,omitempty"`
	CustomerID    string  `json:"customerId"`
	Amount        float64 `json:"amount"`
	Merchant      string  `json:"merchant"`
	Timestamp     string  `json:"timestamp"`
	Location      *string `json:"location,omitempty"`
	DeviceID      *string `json:"deviceId,omitempty"`
	PaymentMethod string  `json:"paymentMethod"`
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var ingest IngestMessage
	if err := json.Unmarshal(msg.Payload, &ingest); err != nil {
		slog.Error("failed to parse ingest message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	ts, err := time.Parse(time.RFC3339, ingest.Timestamp)
	if err != nil {
		slog.Error("invalid timestamp in ingest message",
			"message_id", msg.ID,
			"timestamp", ingest.Timestamp,
			"error", err,
		)
		return err
	}

	req := domain.AnalyzeRequest{
		CustomerID:    ingest.CustomerID,
		Amount:        ingest.Amount,
		Merchant:      ingest.Merchant,
		Timestamp:     ts,
		Location:      ingest.Location,
		DeviceID:      ingest.DeviceID,
		PaymentMethod: ingest.PaymentMethod,
	}
	if err := req.Validate(); err != nil {
		slog.Error("invalid ingest message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	txID := ingest.TransactionID
	if txID == "" {
		txID = uuid.New().String()
	}
	tx := req.ToTransaction(txID)

	// History before persisting, same contract as the HTTP path.
	history, err := w.repo.GetCustomerHistory(ctx, tx.CustomerID)
	if err != nil {
		slog.Error("failed to load customer history",
			"tx_id", tx.ID,
			"error", err,
		)
		return err
	}

	if err := w.repo.SaveTransaction(ctx, tx); err != nil {
		slog.Error("failed to save transaction",
			"tx_id", tx.ID,
			"error", err,
		)
		return err
	}

	if w.velocity != nil {
		if err := w.velocity.Observe(ctx, tx.CustomerID, time.Minute, time.Hour); err != nil {
			slog.Warn("failed to record velocity",
				"tx_id", tx.ID,
				"error", err,
			)
		}
	}

	assessment := w.combiner.Score(tx, history)

	var matches []domain.ScreeningMatch
	if w.screening != nil && w.screening.RulesCount() > 0 {
		matches = w.screening.Screen(ctx, tx)
	}

	if err := w.repo.SaveAssessment(ctx, assessment); err != nil {
		slog.Error("failed to save assessment",
			"tx_id", tx.ID,
			"error", err,
		)
	}

	if w.cache != nil {
		if err := w.cache.SetAssessment(ctx, tx.ID, assessment, 15*time.Minute); err != nil {
			slog.Warn("failed to cache assessment",
				"tx_id", tx.ID,
				"error", err,
			)
		}
	}

	payload, _ := json.Marshal(assessment)
	if err := w.bus.Publish(ctx, domain.TopicAssessment, payload); err != nil {
		slog.Error("failed to publish assessment",
			"tx_id", tx.ID,
			"error", err,
		)
	}

	slog.Info("transaction processed",
		"tx_id", tx.ID,
		"customer_id", tx.CustomerID,
		"status", assessment.Status,
		"risk_score", assessment.RiskScore,
		"screening_matches", len(matches),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
