// Package domain defines the core types and interfaces for FraudShield.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)

	// GetCustomerHistory returns a customer's prior transactions
	// ordered oldest to newest. May be empty.
	GetCustomerHistory(ctx context.Context, customerID string) ([]*Transaction, error)

	// CountCustomerTransactionsSince counts a customer's transactions
	// with timestamp >= since. Used by the velocity service.
	CountCustomerTransactionsSince(ctx context.Context, customerID string, since time.Time) (int64, error)

	// Assessment operations
	SaveAssessment(ctx context.Context, a *FraudAssessment) error
	GetAssessment(ctx context.Context, id string) (*FraudAssessment, error)
	GetAssessmentByTransaction(ctx context.Context, txID string) (*FraudAssessment, error)
	CountAssessmentsByStatus(ctx context.Context) (StatusCounts, error)

	// Screening rule operations
	SaveScreeningRule(ctx context.Context, rule *ScreeningRule) error
	GetScreeningRule(ctx context.Context, ruleID string) (*ScreeningRule, error)
	ListScreeningRules(ctx context.Context) ([]*ScreeningRule, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
