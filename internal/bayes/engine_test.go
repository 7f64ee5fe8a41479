package bayes

import (
	"math"
	"testing"
	"time"

	"github.com/prudenterpo/fraudshield/internal/domain"
)

func strPtr(s string) *string { return &s }

func txWith(amount float64, hour int, location, deviceID *string) *domain.Transaction {
	return &domain.Transaction{
		ID:            "tx-001",
		CustomerID:    "cust-001",
		Amount:        amount,
		Merchant:      "ACME Store",
		Timestamp:     time.Date(2025, 6, 15, hour, 0, 0, 0, time.UTC),
		Location:      location,
		DeviceID:      deviceID,
		PaymentMethod: domain.PaymentCreditCard,
	}
}

func TestPosteriorRange(t *testing.T) {
	engine := NewEngine()

	transactions := []*domain.Transaction{
		txWith(50, 12, strPtr("LOW_RISK_A"), strPtr("trusted-b")),
		txWith(6000, 3, strPtr("HIGH_RISK_C"), strPtr("new-d")),
		txWith(15000, 23, nil, nil),
		txWith(0.01, 14, strPtr("Sao Paulo"), strPtr("device-1")),
	}

	for i, tx := range transactions {
		r := engine.Estimate(tx)
		if r.Posterior < 0 || r.Posterior > 1 {
			t.Errorf("transaction %d: posterior %.6f outside [0,1]", i, r.Posterior)
		}
		if r.BayesianScore < 0 || r.BayesianScore > 100 {
			t.Errorf("transaction %d: bayesianScore %d outside [0,100]", i, r.BayesianScore)
		}
	}
}

func TestPosteriorMonotonicInAmount(t *testing.T) {
	engine := NewEngine()

	// Amount buckets rise 0.1 -> 0.3 -> 0.6 -> 0.8 with all other
	// likelihoods held fixed; the posterior must rise with them.
	amounts := []float64{500, 2000, 7000, 20000}
	prev := -1.0
	for _, amount := range amounts {
		r := engine.Estimate(txWith(amount, 12, strPtr("Sao Paulo"), strPtr("device-1")))
		if r.Posterior <= prev {
			t.Errorf("amount %.0f: posterior %.6f did not increase (prev %.6f)", amount, r.Posterior, prev)
		}
		prev = r.Posterior
	}
}

func TestPosteriorMonotonicInSingleFeature(t *testing.T) {
	engine := NewEngine()

	// Hold amount/location/device fixed, raise only the time
	// likelihood (day 0.2 -> night 0.7).
	day := engine.Estimate(txWith(2000, 14, strPtr("Sao Paulo"), strPtr("device-1")))
	night := engine.Estimate(txWith(2000, 2, strPtr("Sao Paulo"), strPtr("device-1")))
	if night.Posterior <= day.Posterior {
		t.Errorf("night posterior %.6f not above day posterior %.6f", night.Posterior, day.Posterior)
	}

	// Same for device likelihood (trusted 0.1 -> new 0.8).
	trusted := engine.Estimate(txWith(2000, 14, strPtr("Sao Paulo"), strPtr("trusted-a")))
	fresh := engine.Estimate(txWith(2000, 14, strPtr("Sao Paulo"), strPtr("new-a")))
	if fresh.Posterior <= trusted.Posterior {
		t.Errorf("new-device posterior %.6f not above trusted posterior %.6f", fresh.Posterior, trusted.Posterior)
	}
}

func TestLowRiskTransactionPosterior(t *testing.T) {
	engine := NewEngine()
	r := engine.Estimate(txWith(100, 14, strPtr("Sao Paulo"), strPtr("trusted-phone")))

	// Likelihoods 0.1, 0.2, 0.1, 0.4: evidence strongly favors
	// legitimate, so the posterior stays near zero.
	if r.Posterior > PriorFraud {
		t.Errorf("posterior %.6f should be below the prior %.2f for benign evidence", r.Posterior, PriorFraud)
	}
	if r.Significant {
		t.Error("benign transaction should not be statistically significant")
	}
}

func TestHighRiskTransactionPosterior(t *testing.T) {
	engine := NewEngine()
	r := engine.Estimate(txWith(12000, 3, strPtr("HIGH_RISK_ZONE"), strPtr("new-tablet")))

	// Likelihoods 0.8, 0.7, 0.8, 0.9:
	// numerator = 0.8*0.7*0.8*0.9*0.02, legit = 0.2*0.3*0.2*0.1*0.98.
	numerator := 0.8 * 0.7 * 0.8 * 0.9 * PriorFraud
	legit := 0.2 * 0.3 * 0.2 * 0.1 * PriorLegitimate
	want := numerator / (numerator + legit)

	if math.Abs(r.Posterior-want) > 1e-9 {
		t.Errorf("posterior = %.6f, want %.6f", r.Posterior, want)
	}
	if !r.Significant {
		t.Error("high-risk transaction should be statistically significant")
	}
	if r.BayesianScore != int(math.Round(want*100)) {
		t.Errorf("bayesianScore = %d, want %d", r.BayesianScore, int(math.Round(want*100)))
	}
}

func TestLikelihoodBuckets(t *testing.T) {
	tests := []struct {
		amount float64
		want   float64
	}{
		{500, 0.1},
		{1000, 0.1},
		{1001, 0.3},
		{5000, 0.3},
		{5001, 0.6},
		{10000, 0.6},
		{10001, 0.8},
	}
	for _, tt := range tests {
		if got := amountLikelihood(tt.amount); got != tt.want {
			t.Errorf("amountLikelihood(%.0f) = %.2f, want %.2f", tt.amount, got, tt.want)
		}
	}

	if got := locationLikelihood(nil); got != 0.5 {
		t.Errorf("locationLikelihood(nil) = %.2f, want 0.5", got)
	}
	if got := deviceLikelihood(nil); got != 0.5 {
		t.Errorf("deviceLikelihood(nil) = %.2f, want 0.5", got)
	}
}

func TestConfidenceInterval(t *testing.T) {
	ci := confidenceInterval(0.5)
	wantMargin := 1.96 * math.Sqrt(0.5*0.5/1000)

	if math.Abs(ci.Low-(0.5-wantMargin)) > 1e-12 {
		t.Errorf("interval low = %.6f, want %.6f", ci.Low, 0.5-wantMargin)
	}
	if math.Abs(ci.High-(0.5+wantMargin)) > 1e-12 {
		t.Errorf("interval high = %.6f, want %.6f", ci.High, 0.5+wantMargin)
	}

	// Degenerate posteriors clamp to the unit interval.
	if ci := confidenceInterval(0.0); ci.Low != 0 || ci.High != 0 {
		t.Errorf("interval at 0 = %+v, want [0,0]", ci)
	}
	if ci := confidenceInterval(1.0); ci.Low != 1 || ci.High != 1 {
		t.Errorf("interval at 1 = %+v, want [1,1]", ci)
	}
}

func TestConfidenceIntervalFormat(t *testing.T) {
	ci := ConfidenceInterval{Low: 0.123456, High: 0.654321}
	if got := ci.String(); got != "[0.123, 0.654]" {
		t.Errorf("formatted interval = %q", got)
	}
}
