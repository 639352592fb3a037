package ml

import "context"

// Regressor maps one positional feature row to a numeric estimate.
type Regressor interface {
	Predict(features []float64) (float64, error)
}

// Estimator is a Regressor that can be fit.
type Estimator interface {
	Regressor
	Fit(ctx context.Context, features [][]float64, labels []float64) error
}

// Table is a parsed dataset with the target already split off.
type Table interface {
	FeatureColumns() []string
	FeatureRows() [][]float64
	TargetValues() []float64
}
