// Package risk maps a diabetes probability onto the tiers shown to patients.
package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is an immutable value object for the risk classification.
type Tier struct {
	value string
}

var (
	TierLow    = Tier{value: "Low"}
	TierMedium = Tier{value: "Medium"}
	TierHigh   = Tier{value: "High"}
)

const (
	mediumThreshold = 30.0
	highThreshold   = 70.0
)

// Classify derives the tier from a probability percentage. Intervals are
// half-open: 30 is Medium and 70 is High.
func Classify(probability float64) Tier {
	switch {
	case probability >= highThreshold:
		return TierHigh
	case probability >= mediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// TierFromString parses "Low", "Medium" or "High", case-insensitively.
func TierFromString(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return TierLow, nil
	case "medium":
		return TierMedium, nil
	case "high":
		return TierHigh, nil
	default:
		return Tier{}, fmt.Errorf("invalid risk tier: %q", s)
	}
}

// String returns "Low", "Medium" or "High".
func (t Tier) String() string {
	return t.value
}

// Level is the lowercase form used as a style class by the result pages.
func (t Tier) Level() string {
	return strings.ToLower(t.value)
}

// ResultText is the diagnosis label paired with the tier.
func (t Tier) ResultText() string {
	switch t.value {
	case "Low":
		return "Non-Diabetic"
	case "Medium":
		return "Pre-Diabetic"
	case "High":
		return "Diabetic"
	default:
		return ""
	}
}

// RiskText is the heading used on the analysis page.
func (t Tier) RiskText() string {
	if t.value == "" {
		return ""
	}
	return t.value + " Risk"
}

// IsZero returns true if the Tier has not been set.
func (t Tier) IsZero() bool {
	return t.value == ""
}

// Equal checks equality with another Tier.
func (t Tier) Equal(other Tier) bool {
	return t.value == other.value
}

// MarshalText encodes the tier as its name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.value), nil
}

// Round2 rounds half away from zero to two decimal places. Infinities are
// returned unchanged and NaN as zero.
func Round2(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case math.IsInf(x, 0):
		return x
	}
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

// Clamp bounds a probability percentage to [0, 100].
func Clamp(p float64) float64 {
	switch {
	case p > 100:
		return 100
	case p < 0:
		return 0
	default:
		return p
	}
}

// Normalize clamps then rounds a raw probability percentage. NaN, which
// overflowing heuristic arithmetic can produce, maps to 0.
func Normalize(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return Round2(Clamp(p))
}
