// Package rules provides the deterministic threshold rules and the
// CEL-based screening engine.
package rules

import (
	"strings"

	"github.com/prudenterpo/fraudshield/internal/domain"
)

// Rule thresholds.
const (
	// HighAmountThreshold flags amounts strictly above this value.
	HighAmountThreshold = 5000.0

	// Normal hours run 06:00-22:00; anything outside is unusual.
	nightStartHour = 22
	nightEndHour   = 6
)

// Result is the typed outcome of one rule evaluation pass.
type Result struct {
	HighAmount      bool `json:"highAmount"`
	UnusualTime     bool `json:"unusualTime"`
	NewDevice       bool `json:"newDevice"`
	LocationAnomaly bool `json:"locationAnomaly"`

	// DiscreteScore is one of {10, 40, 70, 90, 95}, selected by the
	// count of triggered flags.
	DiscreteScore int `json:"discreteScore"`

	// TriggeredCount is the number of flags that fired.
	TriggeredCount int `json:"triggeredCount"`
}

// escalationTable maps triggered-flag count to a discrete risk score.
// A deliberate non-linear escalation, kept as a literal lookup.
var escalationTable = [5]int{10, 40, 70, 90, 95}

// Engine evaluates the deterministic threshold rules. Stateless;
// evaluation is pure and total over a validated transaction.
type Engine struct{}

// NewEngine creates a rule engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate runs all four rules against a transaction.
func (e *Engine) Evaluate(tx *domain.Transaction) Result {
	r := Result{
		HighAmount:      tx.Amount > HighAmountThreshold,
		UnusualTime:     isUnusualTime(tx.Hour()),
		NewDevice:       isNewDevice(tx.DeviceID),
		LocationAnomaly: isLocationAnomaly(tx.Location),
	}

	for _, flag := range []bool{r.HighAmount, r.UnusualTime, r.NewDevice, r.LocationAnomaly} {
		if flag {
			r.TriggeredCount++
		}
	}
	r.DiscreteScore = escalationTable[r.TriggeredCount]

	return r
}

func isUnusualTime(hour int) bool {
	return hour < nightEndHour || hour > nightStartHour
}

func isNewDevice(deviceID *string) bool {
	return deviceID != nil && strings.HasPrefix(*deviceID, "new-")
}

func isLocationAnomaly(location *string) bool {
	return location != nil && strings.Contains(*location, "HIGH_RISK_")
}
