// Package optimizer maintains the blend weights for the rule and
// similarity scores and tunes them online from operator feedback.
package optimizer

import (
	"sync"
)

// Default starting weights and learning rate.
const (
	DefaultRuleWeight       = 0.6
	DefaultSimilarityWeight = 0.4
	DefaultLearningRate     = 0.01
)

// Weights is the (ruleWeight, similarityWeight) pair.
type Weights [2]float64

// Rule returns the rule-score weight.
func (w Weights) Rule() float64 { return w[0] }

// Similarity returns the similarity-score weight.
func (w Weights) Similarity() float64 { return w[1] }

// UpdateResult reports one gradient step.
type UpdateResult struct {
	PreviousWeights Weights `json:"previousWeights"`
	NewWeights      Weights `json:"newWeights"`
	Gradient        Weights `json:"gradient"`

	// ErrorReduction is the drop in squared error after the update;
	// positive means the step improved the fit for this sample.
	ErrorReduction float64 `json:"errorReduction"`
}

// WeightOptimizer owns the mutable weight state. Updates serialize on
// an internal mutex; concurrent readers get a consistent snapshot that
// may lag an in-flight update, which is acceptable because the weights
// are a heuristic blend.
type WeightOptimizer struct {
	mu           sync.Mutex
	weights      Weights
	learningRate float64
}

// New creates an optimizer with the default weights (0.6, 0.4) and
// learning rate 0.01.
func New() *WeightOptimizer {
	return &WeightOptimizer{
		weights:      Weights{DefaultRuleWeight, DefaultSimilarityWeight},
		learningRate: DefaultLearningRate,
	}
}

// CurrentWeights returns a snapshot of the blend weights.
func (o *WeightOptimizer) CurrentWeights() Weights {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.weights
}

// Update applies one online gradient step toward the ground-truth
// label and renormalizes the weights to sum to 1. Scores are expected
// normalized to [0,1].
//
// This is a single-step squared-error update: no convergence
// guarantee, no learning-rate decay, and no clamping, so adversarial
// feedback sequences can drive a weight negative.
func (o *WeightOptimizer) Update(ruleScore, similarityScore float64, wasFraud bool) UpdateResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	previous := o.weights
	target := 0.0
	if wasFraud {
		target = 1.0
	}

	prediction := previous.Rule()*ruleScore + previous.Similarity()*similarityScore
	err := prediction - target

	gradient := Weights{
		2 * err * ruleScore,
		2 * err * similarityScore,
	}

	updated := Weights{
		previous[0] - o.learningRate*gradient[0],
		previous[1] - o.learningRate*gradient[1],
	}

	// Renormalize so the weights keep a probability interpretation.
	// A zero sum would divide by zero, so the raw weights stand.
	if sum := updated[0] + updated[1]; sum != 0 {
		updated[0] /= sum
		updated[1] /= sum
	}

	o.weights = updated

	newPrediction := updated.Rule()*ruleScore + updated.Similarity()*similarityScore
	oldError := (prediction - target) * (prediction - target)
	newError := (newPrediction - target) * (newPrediction - target)

	return UpdateResult{
		PreviousWeights: previous,
		NewWeights:      updated,
		Gradient:        gradient,
		ErrorReduction:  oldError - newError,
	}
}
