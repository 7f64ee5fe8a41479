// Package combiner merges the rule, similarity, and Bayesian scores
// into a single fraud assessment, blending with the live optimizer
// weights.
package combiner

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudenterpo/fraudshield/internal/bayes"
	"github.com/prudenterpo/fraudshield/internal/domain"
	"github.com/prudenterpo/fraudshield/internal/feature"
	"github.com/prudenterpo/fraudshield/internal/optimizer"
	"github.com/prudenterpo/fraudshield/internal/rules"
	"github.com/prudenterpo/fraudshield/internal/similarity"
)

// BayesianWeight is the fixed blend weight of the Bayesian score. The
// rule and similarity weights are learned; this one is not. The
// asymmetry is inherited scoring policy, kept visible and tested
// rather than folded into the optimizer.
const BayesianWeight = 0.33

// Combiner runs one scoring pass per transaction and applies operator
// feedback to the shared weight state.
type Combiner struct {
	rules      *rules.Engine
	similarity *similarity.Analyzer
	bayes      *bayes.Engine
	optimizer  *optimizer.WeightOptimizer
	policy     domain.ScoringConfig
}

// New creates a combiner. The optimizer instance is shared state:
// feedback recorded through one combiner is observed by every
// subsequent Score call that holds the same optimizer.
func New(ruleEngine *rules.Engine, analyzer *similarity.Analyzer, probEngine *bayes.Engine, opt *optimizer.WeightOptimizer, policy domain.ScoringConfig) *Combiner {
	if policy.RejectThreshold == 0 && policy.ReviewThreshold == 0 {
		policy = domain.ScoringConfig{RejectThreshold: 80, ReviewThreshold: 60}
	}
	return &Combiner{
		rules:      ruleEngine,
		similarity: analyzer,
		bayes:      probEngine,
		optimizer:  opt,
		policy:     policy,
	}
}

// Score runs the full pipeline for one transaction: extract features
// once, evaluate the three engines concurrently, and blend their
// normalized scores with the current weights.
//
// The final score and confidence level are deliberately not clamped:
// the blend stays inside [0,100] and [0,1] for anomaly scores in the
// assumed [0,1] range, and out-of-range values surface as defects
// instead of being masked.
func (c *Combiner) Score(tx *domain.Transaction, history []*domain.Transaction) *domain.FraudAssessment {
	vector := feature.Extract(tx)

	// The engines have no data dependency on one another; evaluate in
	// parallel and join before blending.
	var (
		ruleResult rules.Result
		simResult  similarity.Result
		probResult bayes.Result
		wg         sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		ruleResult = c.rules.Evaluate(tx)
	}()
	go func() {
		defer wg.Done()
		simResult = c.similarity.Analyze(vector, history)
	}()
	go func() {
		defer wg.Done()
		probResult = c.bayes.Estimate(tx)
	}()
	wg.Wait()

	weights := c.optimizer.CurrentWeights()

	ruleNorm := float64(ruleResult.DiscreteScore) / 100.0
	similarityNorm := anomalyOrZero(simResult)
	bayesianNorm := float64(probResult.BayesianScore) / 100.0

	combined := weights.Rule()*ruleNorm +
		weights.Similarity()*similarityNorm +
		BayesianWeight*bayesianNorm

	finalScore := int(math.Round(combined * 100))

	return &domain.FraudAssessment{
		ID:              uuid.New().String(),
		TransactionID:   tx.ID,
		CustomerID:      tx.CustomerID,
		Status:          c.status(finalScore),
		RiskScore:       finalScore,
		ConfidenceLevel: confidence(ruleResult, simResult, probResult),
		AnalyzedAt:      time.Now().UTC(),
		Detail: &domain.AssessmentDetail{
			RuleScore:        ruleResult.DiscreteScore,
			TriggeredRules:   ruleResult.TriggeredCount,
			SimilarityLabel:  simResult.Label,
			AnomalyScore:     simResult.AnomalyScore,
			ComparisonCount:  simResult.ComparisonCount,
			BayesianScore:    probResult.BayesianScore,
			Posterior:        probResult.Posterior,
			RuleWeight:       weights.Rule(),
			SimilarityWeight: weights.Similarity(),
		},
	}
}

// RecordFeedback applies operator ground truth for a previously scored
// transaction. The rule and similarity scores are recomputed from the
// stored transaction, then the optimizer takes one gradient step that
// mutates the weight state read by future Score calls.
func (c *Combiner) RecordFeedback(tx *domain.Transaction, prior *domain.FraudAssessment, history []*domain.Transaction, wasFraud bool) domain.FeedbackDiagnostics {
	ruleResult := c.rules.Evaluate(tx)
	simResult := c.similarity.Analyze(feature.Extract(tx), history)

	ruleNorm := float64(ruleResult.DiscreteScore) / 100.0
	update := c.optimizer.Update(ruleNorm, anomalyOrZero(simResult), wasFraud)

	slog.Info("feedback recorded",
		"transaction_id", tx.ID,
		"was_fraud", wasFraud,
		"prior_status", prior.Status,
		"error_reduction", update.ErrorReduction,
	)

	return domain.FeedbackDiagnostics{
		TransactionID:   tx.ID,
		WasFraud:        wasFraud,
		PreviousWeights: [2]float64(update.PreviousWeights),
		NewWeights:      [2]float64(update.NewWeights),
		ErrorReduction:  update.ErrorReduction,
	}
}

// CurrentWeights exposes the live blend weights for reporting.
func (c *Combiner) CurrentWeights() optimizer.Weights {
	return c.optimizer.CurrentWeights()
}

func (c *Combiner) status(finalScore int) domain.Status {
	switch {
	case finalScore >= c.policy.RejectThreshold:
		return domain.StatusRejected
	case finalScore >= c.policy.ReviewThreshold:
		return domain.StatusManualReview
	default:
		return domain.StatusApproved
	}
}

// anomalyOrZero returns the anomaly score, or 0 when the similarity
// pass had no history to compare against.
func anomalyOrZero(r similarity.Result) float64 {
	if r.AnomalyScore == nil {
		return 0
	}
	return *r.AnomalyScore
}

// confidence averages three per-engine confidence components. Not
// clamped; with at most 4 triggered rules and the data term capped at
// 0.7 the mean stays inside [0,1].
func confidence(ruleResult rules.Result, simResult similarity.Result, probResult bayes.Result) float64 {
	rulesConfidence := 0.4 + 0.1*float64(ruleResult.TriggeredCount)
	dataConfidence := math.Min(0.3+0.05*float64(simResult.ComparisonCount), 0.7)
	statisticalConfidence := 0.5
	if probResult.Significant {
		statisticalConfidence = 0.8
	}
	return (rulesConfidence + dataConfidence + statisticalConfidence) / 3
}
