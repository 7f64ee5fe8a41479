package feature

import (
	"math"
	"testing"
	"time"

	"github.com/prudenterpo/fraudshield/internal/domain"
)

func strPtr(s string) *string { return &s }

func testTransaction(amount float64, hour int, location, deviceID *string, method domain.PaymentMethod) *domain.Transaction {
	return &domain.Transaction{
		ID:            "tx-001",
		CustomerID:    "cust-001",
		Amount:        amount,
		Merchant:      "ACME Store",
		Timestamp:     time.Date(2025, 6, 15, hour, 30, 0, 0, time.UTC),
		Location:      location,
		DeviceID:      deviceID,
		PaymentMethod: method,
	}
}

func TestAmountNormalizedRange(t *testing.T) {
	amounts := []float64{0.01, 1, 50, 100, 999.99, 1000, 5000, 10000, 100000, 1e9}

	prev := 0.0
	for _, amount := range amounts {
		v := Extract(testTransaction(amount, 12, nil, nil, domain.PaymentCreditCard))
		got := v[AmountNormalized]

		if got <= 0 || got >= 1 {
			t.Errorf("amount %.2f: normalized value %.6f outside (0,1)", amount, got)
		}
		if got <= prev {
			t.Errorf("amount %.2f: normalized value %.6f not strictly increasing (prev %.6f)", amount, got, prev)
		}
		prev = got
	}
}

func TestAmountNormalizedMidpoint(t *testing.T) {
	// Logistic curve passes through 0.5 at amount zero; just above
	// zero should sit just above 0.5.
	v := Extract(testTransaction(0.001, 12, nil, nil, domain.PaymentCreditCard))
	if v[AmountNormalized] < 0.5 || v[AmountNormalized] > 0.51 {
		t.Errorf("near-zero amount: expected ~0.5, got %.6f", v[AmountNormalized])
	}
}

func TestHourCyclicIdentity(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		v := Extract(testTransaction(100, hour, nil, nil, domain.PaymentCreditCard))
		sum := v[HourSin]*v[HourSin] + v[HourCos]*v[HourCos]
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("hour %d: sin^2+cos^2 = %.12f, want 1", hour, sum)
		}
	}
}

func TestHourEncodingWrapsAround(t *testing.T) {
	// 23:00 and 00:00 must be close in feature space, unlike raw hours.
	late := Extract(testTransaction(100, 23, nil, nil, domain.PaymentCreditCard))
	midnight := Extract(testTransaction(100, 0, nil, nil, domain.PaymentCreditCard))
	noon := Extract(testTransaction(100, 12, nil, nil, domain.PaymentCreditCard))

	wrapDist := late.EuclideanDistance(midnight)
	noonDist := late.EuclideanDistance(noon)
	if wrapDist >= noonDist {
		t.Errorf("23:00 should be closer to midnight (%.4f) than to noon (%.4f)", wrapDist, noonDist)
	}
}

func TestDeviceRisk(t *testing.T) {
	tests := []struct {
		name     string
		deviceID *string
		want     float64
	}{
		{"absent", nil, 0.5},
		{"new prefix", strPtr("new-phone-123"), 0.9},
		{"trusted prefix", strPtr("trusted-laptop-9"), 0.1},
		{"other", strPtr("device-42"), 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Extract(testTransaction(100, 12, nil, tt.deviceID, domain.PaymentCreditCard))
			if v[DeviceRisk] != tt.want {
				t.Errorf("deviceRisk = %.2f, want %.2f", v[DeviceRisk], tt.want)
			}
		})
	}
}

func TestLocationRisk(t *testing.T) {
	tests := []struct {
		name     string
		location *string
		want     float64
	}{
		{"absent", nil, 0.5},
		{"high risk marker", strPtr("HIGH_RISK_BORDER_TOWN"), 0.8},
		{"low risk marker", strPtr("LOW_RISK_DOWNTOWN"), 0.2},
		{"plain", strPtr("Sao Paulo, SP"), 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Extract(testTransaction(100, 12, tt.location, nil, domain.PaymentCreditCard))
			if v[LocationRisk] != tt.want {
				t.Errorf("locationRisk = %.2f, want %.2f", v[LocationRisk], tt.want)
			}
		})
	}
}

func TestPaymentMethodRisk(t *testing.T) {
	tests := []struct {
		method domain.PaymentMethod
		want   float64
	}{
		{domain.PaymentPix, 0.7},
		{domain.PaymentCreditCard, 0.3},
		{domain.PaymentDebitCard, 0.4},
		{domain.PaymentTransfer, 0.6},
	}

	for _, tt := range tests {
		v := Extract(testTransaction(100, 12, nil, nil, tt.method))
		if v[PaymentMethodRisk] != tt.want {
			t.Errorf("%s: paymentMethodRisk = %.2f, want %.2f", tt.method, v[PaymentMethodRisk], tt.want)
		}
	}
}

func TestCosineSelfSimilarity(t *testing.T) {
	vectors := []Vector{
		Extract(testTransaction(100, 14, nil, strPtr("trusted-a"), domain.PaymentCreditCard)),
		Extract(testTransaction(6000, 3, strPtr("HIGH_RISK_X"), strPtr("new-b"), domain.PaymentPix)),
		{0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
	}

	for i, v := range vectors {
		if got := v.CosineSimilarity(v); math.Abs(got-1.0) > 1e-9 {
			t.Errorf("vector %d: self-similarity = %.12f, want 1", i, got)
		}
	}
}

func TestCosineZeroMagnitude(t *testing.T) {
	var zero Vector
	v := Vector{1, 0, 0, 0, 0, 0}

	if got := zero.CosineSimilarity(v); got != 0 {
		t.Errorf("cosine with zero vector = %.4f, want 0", got)
	}
	if got := v.CosineSimilarity(zero); got != 0 {
		t.Errorf("cosine against zero vector = %.4f, want 0", got)
	}
}

func TestDotAndMagnitude(t *testing.T) {
	a := Vector{1, 2, 3, 0, 0, 0}
	b := Vector{4, 5, 6, 0, 0, 0}

	if got := a.Dot(b); got != 32 {
		t.Errorf("dot = %.4f, want 32", got)
	}
	if got := a.Magnitude(); math.Abs(got-math.Sqrt(14)) > 1e-12 {
		t.Errorf("magnitude = %.6f, want sqrt(14)", got)
	}
}

func TestEuclideanDistance(t *testing.T) {
	a := Vector{1, 0, 0, 0, 0, 0}
	b := Vector{0, 1, 0, 0, 0, 0}

	if got := a.EuclideanDistance(b); math.Abs(got-math.Sqrt2) > 1e-12 {
		t.Errorf("distance = %.6f, want sqrt(2)", got)
	}
	if got := a.EuclideanDistance(a); got != 0 {
		t.Errorf("distance to self = %.6f, want 0", got)
	}
}

func TestCentroid(t *testing.T) {
	vectors := []Vector{
		{1, 2, 3, 4, 5, 6},
		{3, 4, 5, 6, 7, 8},
	}
	want := Vector{2, 3, 4, 5, 6, 7}

	if got := Centroid(vectors); got != want {
		t.Errorf("centroid = %v, want %v", got, want)
	}

	var zero Vector
	if got := Centroid(nil); got != zero {
		t.Errorf("centroid of empty set = %v, want zero vector", got)
	}
}

func TestExtractDeterministic(t *testing.T) {
	tx := testTransaction(2500, 9, strPtr("Rio de Janeiro"), strPtr("device-7"), domain.PaymentDebitCard)
	first := Extract(tx)
	for i := 0; i < 5; i++ {
		if got := Extract(tx); got != first {
			t.Fatalf("extraction not deterministic: %v vs %v", got, first)
		}
	}
}
