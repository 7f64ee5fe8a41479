// Package feature converts transactions into fixed-dimension numeric
// vectors and provides the vector operations used by the similarity
// analyzer.
package feature

import (
	"math"
	"strings"

	"github.com/prudenterpo/fraudshield/internal/domain"
)

// Dim is the fixed dimensionality of a feature vector.
const Dim = 6

// Feature slot indices.
const (
	AmountNormalized = iota
	HourSin
	HourCos
	DeviceRisk
	LocationRisk
	PaymentMethodRisk
)

// Vector is a fixed-length feature encoding of a transaction. The
// array type makes dimension mismatch a compile-time impossibility
// rather than a runtime check.
type Vector [Dim]float64

// paymentMethodRisk is the fixed per-method risk table.
var paymentMethodRisk = map[domain.PaymentMethod]float64{
	domain.PaymentPix:        0.7,
	domain.PaymentCreditCard: 0.3,
	domain.PaymentDebitCard:  0.4,
	domain.PaymentTransfer:   0.6,
}

// Extract derives the feature vector for a transaction. Pure and
// total for any validated transaction; nullable fields select their
// default-risk branch.
func Extract(tx *domain.Transaction) Vector {
	var v Vector

	v[AmountNormalized] = normalizeAmount(tx.Amount)

	// Hour of day on a smooth cycle so 23:00 and midnight stay close
	// in feature space.
	hourRadians := float64(tx.Hour()) * math.Pi / 12
	v[HourSin] = math.Sin(hourRadians)
	v[HourCos] = math.Cos(hourRadians)

	v[DeviceRisk] = deviceRisk(tx.DeviceID)
	v[LocationRisk] = locationRisk(tx.Location)
	v[PaymentMethodRisk] = paymentMethodRisk[tx.PaymentMethod]

	return v
}

// normalizeAmount squashes the amount through a logistic curve:
// 0.5 at zero, saturating toward 1 for large amounts.
func normalizeAmount(amount float64) float64 {
	return 1.0 / (1.0 + math.Exp(-amount/1000.0))
}

func deviceRisk(deviceID *string) float64 {
	if deviceID == nil {
		return 0.5
	}
	if strings.HasPrefix(*deviceID, "new-") {
		return 0.9
	}
	if strings.HasPrefix(*deviceID, "trusted-") {
		return 0.1
	}
	return 0.3
}

func locationRisk(location *string) float64 {
	if location == nil {
		return 0.5
	}
	if strings.Contains(*location, "HIGH_RISK_") {
		return 0.8
	}
	if strings.Contains(*location, "LOW_RISK_") {
		return 0.2
	}
	return 0.4
}

// Dot returns the dot product of two vectors.
func (v Vector) Dot(other Vector) float64 {
	sum := 0.0
	for i := range v {
		sum += v[i] * other[i]
	}
	return sum
}

// Magnitude returns the Euclidean norm.
func (v Vector) Magnitude() float64 {
	sum := 0.0
	for _, f := range v {
		sum += f * f
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns the cosine of the angle between two
// vectors, or 0 when either magnitude is zero.
func (v Vector) CosineSimilarity(other Vector) float64 {
	magnitudeProduct := v.Magnitude() * other.Magnitude()
	if magnitudeProduct == 0 {
		return 0
	}
	return v.Dot(other) / magnitudeProduct
}

// EuclideanDistance returns the Euclidean distance between two vectors.
func (v Vector) EuclideanDistance(other Vector) float64 {
	sum := 0.0
	for i := range v {
		diff := v[i] - other[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Centroid returns the component-wise mean of a set of vectors.
// Returns the zero vector for an empty set.
func Centroid(vectors []Vector) Vector {
	var c Vector
	if len(vectors) == 0 {
		return c
	}
	for _, v := range vectors {
		for i := range c {
			c[i] += v[i]
		}
	}
	for i := range c {
		c[i] /= float64(len(vectors))
	}
	return c
}
