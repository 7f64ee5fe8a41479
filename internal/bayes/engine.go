// Package bayes computes a Bayesian posterior probability of fraud
// from per-feature likelihoods.
package bayes

import (
	"fmt"
	"math"
	"strings"

	"github.com/prudenterpo/fraudshield/internal/domain"
)

// Fixed prior probabilities. Observed fraud ratios are logged by the
// prior observer but never fed back into these constants.
const (
	PriorFraud      = 0.02
	PriorLegitimate = 0.98
)

// significanceMargin is how far the posterior must move from the prior
// to be considered statistically significant.
const significanceMargin = 0.1

// assumedSampleSize is the fixed sample size used by the normal
// approximation of the confidence interval.
const assumedSampleSize = 1000

// Likelihoods holds the fraud-side likelihood of each observed feature.
type Likelihoods struct {
	Amount   float64 `json:"amount"`
	Time     float64 `json:"time"`
	Device   float64 `json:"device"`
	Location float64 `json:"location"`
}

// ConfidenceInterval is the normal-approximation interval around the
// posterior, clamped to [0,1].
type ConfidenceInterval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// String formats the interval the way the analysis report presents it.
func (ci ConfidenceInterval) String() string {
	return fmt.Sprintf("[%.3f, %.3f]", ci.Low, ci.High)
}

// Result is the typed outcome of a probability estimation.
type Result struct {
	// Posterior is P(fraud | evidence), in [0,1].
	Posterior float64 `json:"posterior"`

	// BayesianScore is the posterior scaled to an integer 0-100.
	BayesianScore int `json:"bayesianScore"`

	Likelihoods Likelihoods `json:"likelihoods"`

	// Significant reports whether the posterior moved meaningfully
	// away from the prior.
	Significant bool `json:"significant"`

	ConfidenceInterval ConfidenceInterval `json:"confidenceInterval"`
}

// Engine estimates the posterior fraud probability for a transaction.
// Stateless; estimation is pure and total over a validated transaction.
type Engine struct{}

// NewEngine creates a probability engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Estimate computes the Bayesian posterior for a transaction.
//
//	P(fraud | evidence) = P(evidence | fraud) P(fraud) / P(evidence)
//
// with P(evidence) expanded by total probability over the fraud and
// legitimate hypotheses, treating the four features as independent.
func (e *Engine) Estimate(tx *domain.Transaction) Result {
	l := Likelihoods{
		Amount:   amountLikelihood(tx.Amount),
		Time:     timeLikelihood(tx.Hour()),
		Device:   deviceLikelihood(tx.DeviceID),
		Location: locationLikelihood(tx.Location),
	}

	numerator := l.Amount * l.Time * l.Device * l.Location * PriorFraud
	legitimateEvidence := (1 - l.Amount) * (1 - l.Time) * (1 - l.Device) * (1 - l.Location) * PriorLegitimate
	denominator := numerator + legitimateEvidence

	posterior := 0.0
	if denominator > 0 {
		posterior = numerator / denominator
	}

	return Result{
		Posterior:          posterior,
		BayesianScore:      int(math.Round(posterior * 100)),
		Likelihoods:        l,
		Significant:        math.Abs(posterior-PriorFraud) > significanceMargin,
		ConfidenceInterval: confidenceInterval(posterior),
	}
}

// Bucketized fraud-side likelihoods. The device and location buckets
// mirror the feature extraction boundaries but carry independently
// chosen values.

func amountLikelihood(amount float64) float64 {
	switch {
	case amount > 10000:
		return 0.8
	case amount > 5000:
		return 0.6
	case amount > 1000:
		return 0.3
	default:
		return 0.1
	}
}

func timeLikelihood(hour int) float64 {
	if hour < 6 || hour > 22 {
		return 0.7
	}
	return 0.2
}

func deviceLikelihood(deviceID *string) float64 {
	if deviceID == nil {
		return 0.5
	}
	if strings.HasPrefix(*deviceID, "new-") {
		return 0.8
	}
	if strings.HasPrefix(*deviceID, "trusted-") {
		return 0.1
	}
	return 0.3
}

func locationLikelihood(location *string) float64 {
	if location == nil {
		return 0.5
	}
	if strings.Contains(*location, "HIGH_RISK_") {
		return 0.9
	}
	if strings.Contains(*location, "LOW_RISK_") {
		return 0.1
	}
	return 0.4
}

// confidenceInterval applies a normal approximation with a fixed
// assumed sample size.
func confidenceInterval(posterior float64) ConfidenceInterval {
	margin := 1.96 * math.Sqrt(posterior*(1-posterior)/assumedSampleSize)
	return ConfidenceInterval{
		Low:  math.Max(0, posterior-margin),
		High: math.Min(1, posterior+margin),
	}
}
