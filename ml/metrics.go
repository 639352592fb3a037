package ml

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MeanAbsoluteError is the average |actual - predicted|.
func MeanAbsoluteError(actual, predicted []float64) (float64, error) {
	if len(actual) == 0 {
		return 0, errors.New("no values to score")
	}
	if len(actual) != len(predicted) {
		return 0, errors.New("actual/predicted length mismatch")
	}
	return floats.Distance(actual, predicted, 1) / float64(len(actual)), nil
}

// RSquared is the coefficient of determination of predicted against actual.
// Constant actual values make the ratio undefined; that case scores 1 for
// an exact fit and 0 otherwise.
func RSquared(actual, predicted []float64) (float64, error) {
	if len(actual) == 0 {
		return 0, errors.New("no values to score")
	}
	if len(actual) != len(predicted) {
		return 0, errors.New("actual/predicted length mismatch")
	}
	r2 := stat.RSquaredFrom(predicted, actual, nil)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		if floats.Distance(actual, predicted, 1) == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return r2, nil
}

// ConfidencePercent scales an R² score to a 0-100 percentage.
func ConfidencePercent(r2 float64) float64 {
	return clampPercent(r2 * 100)
}

func clampPercent(pct float64) float64 {
	switch {
	case math.IsNaN(pct), pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
