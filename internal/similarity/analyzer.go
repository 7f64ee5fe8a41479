// Package similarity compares a transaction's feature vector against a
// customer's transaction history.
package similarity

import (
	"math"

	"github.com/prudenterpo/fraudshield/internal/domain"
	"github.com/prudenterpo/fraudshield/internal/feature"
)

// Behavior labels derived from the anomaly score.
const (
	LabelInsufficientHistory = "INSUFFICIENT_HISTORY"
	LabelTypicalBehavior     = "TYPICAL_BEHAVIOR"
	LabelSlightAnomaly       = "SLIGHT_ANOMALY"
	LabelModerateAnomaly     = "MODERATE_ANOMALY"
	LabelSevereAnomaly       = "SEVERE_ANOMALY"
)

// Anomaly label thresholds. These assume the anomaly score lies
// roughly in [0,1]; no clamp is applied, so scores past 0.8 all read
// as severe.
const (
	typicalThreshold  = 0.3
	slightThreshold   = 0.6
	moderateThreshold = 0.8
)

// Result is the typed outcome of a similarity pass.
type Result struct {
	// SimilarityScore is the mean cosine similarity against every
	// historical vector. 0 when history is empty.
	SimilarityScore float64 `json:"similarityScore"`

	// ClosestDistance is the minimum Euclidean distance to any
	// historical vector. 1 when history is empty.
	ClosestDistance float64 `json:"closestDistance"`

	// AnomalyScore is the distance from the current vector to the
	// centroid of the history. Nil when history is empty: the score
	// is absent, not zero.
	AnomalyScore *float64 `json:"anomalyScore,omitempty"`

	// ComparisonCount is the number of historical vectors compared.
	ComparisonCount int `json:"comparisonCount"`

	// Label interprets the anomaly score.
	Label string `json:"label"`
}

// Analyzer computes similarity measures between a transaction and a
// customer's history. Stateless.
type Analyzer struct{}

// NewAnalyzer creates a similarity analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze compares the current vector against the customer's history.
// History is read-only and may be empty.
func (a *Analyzer) Analyze(current feature.Vector, history []*domain.Transaction) Result {
	if len(history) == 0 {
		return Result{
			SimilarityScore: 0.0,
			ClosestDistance: 1.0,
			Label:           LabelInsufficientHistory,
		}
	}

	vectors := make([]feature.Vector, len(history))
	for i, tx := range history {
		vectors[i] = feature.Extract(tx)
	}

	similaritySum := 0.0
	closest := math.Inf(1)
	for _, v := range vectors {
		similaritySum += current.CosineSimilarity(v)
		if d := current.EuclideanDistance(v); d < closest {
			closest = d
		}
	}

	anomaly := current.EuclideanDistance(feature.Centroid(vectors))

	return Result{
		SimilarityScore: similaritySum / float64(len(vectors)),
		ClosestDistance: closest,
		AnomalyScore:    &anomaly,
		ComparisonCount: len(vectors),
		Label:           interpretAnomaly(anomaly),
	}
}

func interpretAnomaly(score float64) string {
	switch {
	case score < typicalThreshold:
		return LabelTypicalBehavior
	case score < slightThreshold:
		return LabelSlightAnomaly
	case score < moderateThreshold:
		return LabelModerateAnomaly
	default:
		return LabelSevereAnomaly
	}
}
