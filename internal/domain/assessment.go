package domain

import (
	"time"
)

// Status is the final disposition of a scored transaction.
type Status string

const (
	StatusApproved     Status = "APPROVED"
	StatusManualReview Status = "MANUAL_REVIEW"
	StatusRejected     Status = "REJECTED"
)

// FraudAssessment is the outcome of one scoring pass, created once per
// processed transaction and persisted by the repository.
type FraudAssessment struct {
	ID              string    `json:"id"`
	TransactionID   string    `json:"transactionId"`
	CustomerID      string    `json:"customerId"`
	Status          Status    `json:"status"`
	RiskScore       int       `json:"riskScore"`
	ConfidenceLevel float64   `json:"confidenceLevel"`
	AnalyzedAt      time.Time `json:"analyzedAt"`

	// Detail carries the per-engine breakdown for inspection and
	// persistence. Not read back by the scoring pipeline.
	Detail *AssessmentDetail `json:"detail,omitempty"`
}

// AssessmentDetail is the per-engine breakdown of an assessment.
type AssessmentDetail struct {
	RuleScore        int      `json:"ruleScore"`
	TriggeredRules   int      `json:"triggeredRules"`
	SimilarityLabel  string   `json:"similarityLabel"`
	AnomalyScore     *float64 `json:"anomalyScore,omitempty"`
	ComparisonCount  int      `json:"comparisonCount"`
	BayesianScore    int      `json:"bayesianScore"`
	Posterior        float64  `json:"posterior"`
	RuleWeight       float64  `json:"ruleWeight"`
	SimilarityWeight float64  `json:"similarityWeight"`
}

// StatusCounts holds assessment totals per status, used by reporting.
type StatusCounts struct {
	Approved     int64 `json:"approved"`
	ManualReview int64 `json:"manualReview"`
	Rejected     int64 `json:"rejected"`
}

// Total returns the sum over all statuses.
func (c StatusCounts) Total() int64 {
	return c.Approved + c.ManualReview + c.Rejected
}

// FeedbackDiagnostics reports the optimizer update applied after an
// operator confirms or denies a decision.
type FeedbackDiagnostics struct {
	TransactionID   string     `json:"transactionId"`
	WasFraud        bool       `json:"wasFraud"`
	PreviousWeights [2]float64 `json:"previousWeights"`
	NewWeights      [2]float64 `json:"newWeights"`
	ErrorReduction  float64    `json:"errorReduction"`
}
