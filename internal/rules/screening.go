package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/prudenterpo/fraudshield/internal/domain"
)

// VelocityGetter returns the transaction count for a customer in a
// time window, for use as a screening variable.
type VelocityGetter func(ctx context.Context, customerID string, windowSecs int) (int64, error)

// ScreeningEngine evaluates operator-configured CEL rules against a
// transaction. Matches annotate the analysis result; they never feed
// into the combined risk score.
type ScreeningEngine struct {
	mu             sync.RWMutex
	env            *cel.Env
	compiled       map[string]*compiledScreeningRule
	velocityGetter VelocityGetter
	velocityWindow int // seconds
}

type compiledScreeningRule struct {
	config  *domain.ScreeningRule
	program cel.Program
}

// NewScreeningEngine creates a screening engine. velocityGetter may be
// nil, in which case velocity_count is always 0.
func NewScreeningEngine(velocityGetter VelocityGetter, velocityWindowSecs int) (*ScreeningEngine, error) {
	if velocityWindowSecs <= 0 {
		velocityWindowSecs = 3600
	}

	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("merchant", cel.StringType),
		cel.Variable("location", cel.StringType),
		cel.Variable("device_id", cel.StringType),
		cel.Variable("payment_method", cel.StringType),
		cel.Variable("velocity_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &ScreeningEngine{
		env:            env,
		compiled:       make(map[string]*compiledScreeningRule),
		velocityGetter: velocityGetter,
		velocityWindow: velocityWindowSecs,
	}, nil
}

// LoadRule compiles and loads a screening rule into the engine.
func (e *ScreeningEngine) LoadRule(cfg *domain.ScreeningRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiled[cfg.ID] = compiled
	return nil
}

// ReloadRules clears existing rules and loads the given set.
// Enables hot-reloading from the repository.
func (e *ScreeningEngine) ReloadRules(configs []*domain.ScreeningRule) error {
	fresh := make(map[string]*compiledScreeningRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		fresh[cfg.ID] = compiled
	}

	e.mu.Lock()
	e.compiled = fresh
	e.mu.Unlock()
	return nil
}

// RulesCount returns the number of loaded screening rules.
func (e *ScreeningEngine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// LoadedRules returns the currently loaded rule configurations.
func (e *ScreeningEngine) LoadedRules() []*domain.ScreeningRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.ScreeningRule, 0, len(e.compiled))
	for _, c := range e.compiled {
		rules = append(rules, c.config)
	}
	return rules
}

// Screen evaluates all loaded rules against a transaction and returns
// the matches. Rule evaluation errors are skipped rather than failing
// the screening pass; the annotations are advisory.
func (e *ScreeningEngine) Screen(ctx context.Context, tx *domain.Transaction) []domain.ScreeningMatch {
	e.mu.RLock()
	compiled := make([]*compiledScreeningRule, 0, len(e.compiled))
	for _, c := range e.compiled {
		compiled = append(compiled, c)
	}
	e.mu.RUnlock()

	if len(compiled) == 0 {
		return nil
	}

	var velocityCount int64
	if e.velocityGetter != nil {
		if count, err := e.velocityGetter(ctx, tx.CustomerID, e.velocityWindow); err == nil {
			velocityCount = count
		}
	}

	location := ""
	if tx.Location != nil {
		location = *tx.Location
	}
	deviceID := ""
	if tx.DeviceID != nil {
		deviceID = *tx.DeviceID
	}

	activation := map[string]any{
		"amount":         tx.Amount,
		"hour":           int64(tx.Hour()),
		"merchant":       tx.Merchant,
		"location":       location,
		"device_id":      deviceID,
		"payment_method": string(tx.PaymentMethod),
		"velocity_count": velocityCount,
	}

	var matches []domain.ScreeningMatch
	for _, rule := range compiled {
		out, _, err := rule.program.Eval(activation)
		if err != nil {
			continue
		}
		if matched, ok := out.(types.Bool); ok && bool(matched) {
			matches = append(matches, domain.ScreeningMatch{
				RuleID:   rule.config.ID,
				Name:     rule.config.Name,
				Severity: rule.config.Severity,
				Reason:   rule.config.Description,
			})
		}
	}

	return matches
}

// Close cleans up the engine.
func (e *ScreeningEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*compiledScreeningRule)
	return nil
}

func (e *ScreeningEngine) compileRule(cfg *domain.ScreeningRule) (*compiledScreeningRule, error) {
	if cfg == nil || cfg.ID == "" {
		return nil, fmt.Errorf("screening rule id is required")
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile screening rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("screening rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for screening rule %s: %w", cfg.ID, err)
	}

	return &compiledScreeningRule{config: cfg, program: program}, nil
}
