package combiner

import (
	"math"
	"testing"
	"time"

	"github.com/prudenterpo/fraudshield/internal/bayes"
	"github.com/prudenterpo/fraudshield/internal/domain"
	"github.com/prudenterpo/fraudshield/internal/optimizer"
	"github.com/prudenterpo/fraudshield/internal/rules"
	"github.com/prudenterpo/fraudshield/internal/similarity"
)

func newCombiner(policy domain.ScoringConfig) *Combiner {
	return New(rules.NewEngine(), similarity.NewAnalyzer(), bayes.NewEngine(), optimizer.New(), policy)
}

func strPtr(s string) *string { return &s }

func txAt(amount float64, hour int, deviceID, location *string, method domain.PaymentMethod) *domain.Transaction {
	return &domain.Transaction{
		ID:            "tx-1",
		CustomerID:    "cust-1",
		Amount:        amount,
		Merchant:      "merchant-1",
		Timestamp:     time.Date(2025, 6, 15, hour, 30, 0, 0, time.UTC),
		DeviceID:      deviceID,
		Location:      location,
		PaymentMethod: method,
	}
}

func lowRiskTx() *domain.Transaction {
	return txAt(50, 14, strPtr("trusted-phone"), strPtr("LOW_RISK_BR"), domain.PaymentCreditCard)
}

func highRiskTx() *domain.Transaction {
	return txAt(15000, 3, strPtr("new-tablet"), strPtr("HIGH_RISK_XX"), domain.PaymentPix)
}

func TestScoreLowRiskNoHistoryApproved(t *testing.T) {
	c := newCombiner(domain.ScoringConfig{})

	assessment := c.Score(lowRiskTx(), nil)

	if assessment.Status != domain.StatusApproved {
		t.Errorf("Status = %s, want %s (score %d)", assessment.Status, domain.StatusApproved, assessment.RiskScore)
	}
	if assessment.TransactionID != "tx-1" || assessment.CustomerID != "cust-1" {
		t.Errorf("identity fields not carried over: %+v", assessment)
	}
	if assessment.ID == "" {
		t.Error("assessment ID is empty")
	}
	if assessment.AnalyzedAt.IsZero() {
		t.Error("AnalyzedAt is zero")
	}
	if assessment.Detail == nil {
		t.Fatal("Detail is nil")
	}
	if assessment.Detail.SimilarityLabel != similarity.LabelInsufficientHistory {
		t.Errorf("SimilarityLabel = %s, want %s", assessment.Detail.SimilarityLabel, similarity.LabelInsufficientHistory)
	}
	if assessment.Detail.AnomalyScore != nil {
		t.Errorf("AnomalyScore = %v, want nil with no history", *assessment.Detail.AnomalyScore)
	}
	if assessment.Detail.RuleWeight != optimizer.DefaultRuleWeight {
		t.Errorf("RuleWeight = %v, want %v", assessment.Detail.RuleWeight, optimizer.DefaultRuleWeight)
	}
}

func TestScoreHighRiskRejected(t *testing.T) {
	c := newCombiner(domain.ScoringConfig{})

	// A typical history so the high-risk transaction also reads as
	// anomalous rather than insufficient data.
	history := []*domain.Transaction{lowRiskTx(), lowRiskTx(), lowRiskTx()}
	assessment := c.Score(highRiskTx(), history)

	if assessment.Status != domain.StatusRejected {
		t.Errorf("Status = %s, want %s (score %d)", assessment.Status, domain.StatusRejected, assessment.RiskScore)
	}
	if assessment.Detail.RuleScore != 95 {
		t.Errorf("RuleScore = %d, want 95 with all rules triggered", assessment.Detail.RuleScore)
	}
	if assessment.Detail.TriggeredRules != 4 {
		t.Errorf("TriggeredRules = %d, want 4", assessment.Detail.TriggeredRules)
	}
	if assessment.Detail.AnomalyScore == nil {
		t.Fatal("AnomalyScore is nil with non-empty history")
	}
	if assessment.Detail.ComparisonCount != 3 {
		t.Errorf("ComparisonCount = %d, want 3", assessment.Detail.ComparisonCount)
	}
}

func TestScoreBlendMatchesDetail(t *testing.T) {
	c := newCombiner(domain.ScoringConfig{})

	history := []*domain.Transaction{lowRiskTx(), lowRiskTx()}
	assessment := c.Score(highRiskTx(), history)
	d := assessment.Detail

	combined := d.RuleWeight*float64(d.RuleScore)/100.0 +
		d.SimilarityWeight*(*d.AnomalyScore) +
		BayesianWeight*float64(d.BayesianScore)/100.0

	if want := int(math.Round(combined * 100)); assessment.RiskScore != want {
		t.Errorf("RiskScore = %d, want %d recomputed from detail", assessment.RiskScore, want)
	}
}

func TestScoreConfidenceClosedForm(t *testing.T) {
	c := newCombiner(domain.ScoringConfig{})

	// No history, no rules triggered, posterior near zero so the
	// Bayesian result is significant (far below the 0.02 prior margin
	// in the other direction is impossible; a low-risk transaction's
	// posterior sits within the margin, so the statistical component
	// stays at 0.5).
	assessment := c.Score(lowRiskTx(), nil)

	want := (0.4 + 0.3 + 0.5) / 3
	if math.Abs(assessment.ConfidenceLevel-want) > 1e-9 {
		t.Errorf("ConfidenceLevel = %v, want %v", assessment.ConfidenceLevel, want)
	}
}

func TestScoreStatusUsesConfiguredThresholds(t *testing.T) {
	history := []*domain.Transaction{lowRiskTx(), lowRiskTx()}

	// Thresholds no real score can reach: everything approves.
	strict := newCombiner(domain.ScoringConfig{RejectThreshold: 1000, ReviewThreshold: 999})
	if got := strict.Score(highRiskTx(), history).Status; got != domain.StatusApproved {
		t.Errorf("Status = %s, want APPROVED under unreachable thresholds", got)
	}

	// Review threshold at zero: nothing approves.
	lenient := newCombiner(domain.ScoringConfig{RejectThreshold: 1000, ReviewThreshold: 0})
	if got := lenient.Score(lowRiskTx(), nil).Status; got != domain.StatusManualReview {
		t.Errorf("Status = %s, want MANUAL_REVIEW with review threshold 0", got)
	}
}

func TestScoreDeterministicAcrossRuns(t *testing.T) {
	c := newCombiner(domain.ScoringConfig{})
	history := []*domain.Transaction{lowRiskTx(), lowRiskTx(), highRiskTx()}

	first := c.Score(highRiskTx(), history)
	for i := 0; i < 50; i++ {
		got := c.Score(highRiskTx(), history)
		if got.RiskScore != first.RiskScore || got.Status != first.Status ||
			got.ConfidenceLevel != first.ConfidenceLevel {
			t.Fatalf("run %d diverged: score %d status %s, want score %d status %s",
				i, got.RiskScore, got.Status, first.RiskScore, first.Status)
		}
	}
}

func TestRecordFeedbackShiftsWeights(t *testing.T) {
	c := newCombiner(domain.ScoringConfig{})

	tx := highRiskTx()
	prior := c.Score(tx, nil)

	diag := c.RecordFeedback(tx, prior, nil, true)

	if diag.TransactionID != tx.ID {
		t.Errorf("TransactionID = %s, want %s", diag.TransactionID, tx.ID)
	}
	if !diag.WasFraud {
		t.Error("WasFraud = false, want true")
	}
	if diag.PreviousWeights != [2]float64{optimizer.DefaultRuleWeight, optimizer.DefaultSimilarityWeight} {
		t.Errorf("PreviousWeights = %v, want defaults", diag.PreviousWeights)
	}
	if diag.NewWeights == diag.PreviousWeights {
		t.Error("weights did not move")
	}
	if sum := diag.NewWeights[0] + diag.NewWeights[1]; math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("new weights sum = %v, want 1", sum)
	}

	// Confirmed fraud with a high rule score and zero similarity
	// signal shifts weight toward the rule component.
	if diag.NewWeights[0] <= diag.PreviousWeights[0] {
		t.Errorf("rule weight %v did not grow from %v", diag.NewWeights[0], diag.PreviousWeights[0])
	}
}

func TestRecordFeedbackAffectsSubsequentScores(t *testing.T) {
	c := newCombiner(domain.ScoringConfig{})

	tx := highRiskTx()
	prior := c.Score(tx, nil)

	// One step moves the blend by well under a point; repeat the
	// feedback so the shift is visible in the rounded score.
	var diag domain.FeedbackDiagnostics
	for i := 0; i < 10; i++ {
		diag = c.RecordFeedback(tx, prior, nil, true)
	}

	after := c.Score(tx, nil)
	if after.Detail.RuleWeight != diag.NewWeights[0] {
		t.Errorf("RuleWeight after feedback = %v, want %v", after.Detail.RuleWeight, diag.NewWeights[0])
	}
	if after.RiskScore <= prior.RiskScore {
		t.Errorf("score after rule-confirming feedback = %d, want > %d", after.RiskScore, prior.RiskScore)
	}
}
