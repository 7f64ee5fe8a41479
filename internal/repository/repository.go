// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prudenterpo/fraudshield/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a transaction.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: transaction with ID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, customer_id, amount, merchant, timestamp,
			location, device_id, payment_method, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.CustomerID, tx.Amount, tx.Merchant, tx.Timestamp,
		tx.Location, tx.DeviceID, string(tx.PaymentMethod),
		time.Now().UTC(),
	)
	return err
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	query := `
		SELECT id, customer_id, amount, merchant, timestamp,
			   location, device_id, payment_method
		FROM transactions
		WHERE id = ?
	`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, r.rebind(query), txID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tx, err
}

// GetCustomerHistory returns a customer's transactions ordered oldest
// to newest.
func (r *SQLRepository) GetCustomerHistory(ctx context.Context, customerID string) ([]*domain.Transaction, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customerID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, customer_id, amount, merchant, timestamp,
			   location, device_id, payment_method
		FROM transactions
		WHERE customer_id = ?
		ORDER BY timestamp ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// CountCustomerTransactionsSince counts a customer's transactions with
// timestamp at or after since.
func (r *SQLRepository) CountCustomerTransactionsSince(ctx context.Context, customerID string, since time.Time) (int64, error) {
	if customerID == "" {
		return 0, fmt.Errorf("%w: customerID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*) FROM transactions
		WHERE customer_id = ? AND timestamp >= ?
	`

	var count int64
	if err := r.db.QueryRowContext(ctx, r.rebind(query), customerID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// SaveAssessment stores a fraud assessment.
func (r *SQLRepository) SaveAssessment(ctx context.Context, a *domain.FraudAssessment) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: assessment with ID is required", ErrInvalidInput)
	}

	var detail any
	if a.Detail != nil {
		b, err := json.Marshal(a.Detail)
		if err != nil {
			return fmt.Errorf("failed to encode assessment detail: %w", err)
		}
		detail = string(b)
	}

	query := `
		INSERT INTO assessments (
			id, transaction_id, customer_id, status,
			risk_score, confidence_level, analyzed_at, detail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, a.TransactionID, a.CustomerID, string(a.Status),
		a.RiskScore, a.ConfidenceLevel, a.AnalyzedAt, detail,
	)
	return err
}

// GetAssessment retrieves an assessment by ID.
func (r *SQLRepository) GetAssessment(ctx context.Context, id string) (*domain.FraudAssessment, error) {
	query := assessmentSelect + ` WHERE id = ?`
	return r.queryAssessment(ctx, query, id)
}

// GetAssessmentByTransaction retrieves the assessment for a transaction.
func (r *SQLRepository) GetAssessmentByTransaction(ctx context.Context, txID string) (*domain.FraudAssessment, error) {
	query := assessmentSelect + ` WHERE transaction_id = ?`
	return r.queryAssessment(ctx, query, txID)
}

const assessmentSelect = `
	SELECT id, transaction_id, customer_id, status,
		   risk_score, confidence_level, analyzed_at, detail
	FROM assessments
`

func (r *SQLRepository) queryAssessment(ctx context.Context, query string, arg any) (*domain.FraudAssessment, error) {
	var a domain.FraudAssessment
	var status string
	var detail sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), arg).Scan(
		&a.ID, &a.TransactionID, &a.CustomerID, &status,
		&a.RiskScore, &a.ConfidenceLevel, &a.AnalyzedAt, &detail,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Status = domain.Status(status)
	if detail.Valid && detail.String != "" {
		var d domain.AssessmentDetail
		if err := json.Unmarshal([]byte(detail.String), &d); err != nil {
			return nil, fmt.Errorf("failed to parse assessment detail: %w", err)
		}
		a.Detail = &d
	}

	return &a, nil
}

// CountAssessmentsByStatus returns assessment totals per status.
func (r *SQLRepository) CountAssessmentsByStatus(ctx context.Context) (domain.StatusCounts, error) {
	query := `
		SELECT status, COUNT(*)
		FROM assessments
		GROUP BY status
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return domain.StatusCounts{}, err
	}
	defer rows.Close()

	var counts domain.StatusCounts
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return domain.StatusCounts{}, err
		}
		switch domain.Status(status) {
		case domain.StatusApproved:
			counts.Approved = n
		case domain.StatusManualReview:
			counts.ManualReview = n
		case domain.StatusRejected:
			counts.Rejected = n
		}
	}

	return counts, rows.Err()
}

// SaveScreeningRule stores a screening rule, replacing any previous
// version with the same ID.
func (r *SQLRepository) SaveScreeningRule(ctx context.Context, rule *domain.ScreeningRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule with ID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO screening_rules (
			id, name, description, expression, severity, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			severity = excluded.severity,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description,
		rule.Expression, rule.Severity, enabled,
		now, now,
	)
	return err
}

// GetScreeningRule retrieves a screening rule by ID.
func (r *SQLRepository) GetScreeningRule(ctx context.Context, ruleID string) (*domain.ScreeningRule, error) {
	query := `
		SELECT id, name, description, expression, severity, enabled
		FROM screening_rules
		WHERE id = ?
	`

	var rule domain.ScreeningRule
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), ruleID).Scan(
		&rule.ID, &rule.Name, &rule.Description,
		&rule.Expression, &rule.Severity, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	return &rule, nil
}

// ListScreeningRules retrieves all screening rules, enabled or not.
func (r *SQLRepository) ListScreeningRules(ctx context.Context) ([]*domain.ScreeningRule, error) {
	query := `
		SELECT id, name, description, expression, severity, enabled
		FROM screening_rules
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.ScreeningRule
	for rows.Next() {
		var rule domain.ScreeningRule
		var enabled int
		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Description,
			&rule.Expression, &rule.Severity, &enabled,
		); err != nil {
			return nil, err
		}
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var location, deviceID sql.NullString
	var method string

	if err := row.Scan(
		&tx.ID, &tx.CustomerID, &tx.Amount, &tx.Merchant, &tx.Timestamp,
		&location, &deviceID, &method,
	); err != nil {
		return nil, err
	}

	if location.Valid {
		tx.Location = &location.String
	}
	if deviceID.Valid {
		tx.DeviceID = &deviceID.String
	}
	tx.PaymentMethod = domain.PaymentMethod(method)

	return &tx, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
