// Package velocity tracks per-customer transaction counts over sliding
// windows, feeding the screening rule variable velocity_count.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/prudenterpo/fraudshield/internal/domain"
)

// Service counts a customer's recent transactions. Counts come from a
// cache counter when one is configured; the repository is the source
// of truth and the fallback.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a velocity service. cache may be nil, in which
// case every count hits the repository.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Observe records one transaction against the customer's windowed
// counters. Call once per ingested transaction.
func (s *Service) Observe(ctx context.Context, customerID string, windows ...time.Duration) error {
	if s.cache == nil {
		return nil
	}
	for _, w := range windows {
		if _, err := s.cache.IncrementCounter(ctx, counterKey(customerID, w), w); err != nil {
			return fmt.Errorf("increment velocity counter: %w", err)
		}
	}
	return nil
}

// Count returns the number of transactions the customer made in the
// trailing window.
func (s *Service) Count(ctx context.Context, customerID string, windowSecs int) (int64, error) {
	if customerID == "" {
		return 0, fmt.Errorf("customerID is required")
	}
	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)
	count, err := s.repo.CountCustomerTransactionsSince(ctx, customerID, since)
	if err != nil {
		return 0, fmt.Errorf("count customer transactions: %w", err)
	}
	return count, nil
}

// Getter returns the count function in the shape the screening engine
// expects.
func (s *Service) Getter() func(ctx context.Context, customerID string, windowSecs int) (int64, error) {
	return s.Count
}

func counterKey(customerID string, window time.Duration) string {
	return fmt.Sprintf("velocity:%s:%d", customerID, int(window.Seconds()))
}
