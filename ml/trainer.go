package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

const (
	DefaultSeed      int64 = 42
	DefaultTestRatio       = 0.2
)

// TrainConfig controls the split and the forest. Zero values pick defaults.
type TrainConfig struct {
	Seed            int64
	TestRatio       float64
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Workers         int
}

func (c TrainConfig) withDefaults() TrainConfig {
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	if c.TestRatio <= 0 || c.TestRatio >= 1 {
		c.TestRatio = DefaultTestRatio
	}
	if c.Trees <= 0 {
		c.Trees = DefaultTrees
	}
	return c
}

// TrainingError reports a dataset that cannot produce a model.
type TrainingError struct {
	Reason string
}

func (e *TrainingError) Error() string {
	return "training failed: " + e.Reason
}

// TrainedModel is a fitted forest together with the schema it was fit on
// and its held-out scores. It is never mutated after Train returns.
type TrainedModel struct {
	Schema     FeatureSchema
	MAE        float64
	Confidence float64
	TrainRows  int
	EvalRows   int
	Trees      int
	Seed       int64
	TrainedAt  time.Time

	estimator Regressor
}

// NewTrainedModel wraps an already fitted estimator. Train is the usual way
// to obtain a model; this exists for estimators fit elsewhere. confidence is
// a percentage and is clamped to [0, 100].
func NewTrainedModel(schema FeatureSchema, estimator Regressor, mae, confidence float64) *TrainedModel {
	return &TrainedModel{
		Schema:     schema,
		MAE:        mae,
		Confidence: clampPercent(confidence),
		TrainedAt:  time.Now().UTC(),
		estimator:  estimator,
	}
}

// Predict runs the estimator on a row already laid out in schema order.
func (m *TrainedModel) Predict(row []float64) (float64, error) {
	if m == nil || m.estimator == nil {
		return 0, errors.New("model not trained")
	}
	if len(row) != m.Schema.Len() {
		return 0, fmt.Errorf("expected %d features, got %d", m.Schema.Len(), len(row))
	}
	return m.estimator.Predict(row)
}

// Train splits the table with a seeded shuffle, fits a random forest on the
// training part and scores it on the held-out part.
func Train(ctx context.Context, table Table, config TrainConfig) (*TrainedModel, error) {
	config = config.withDefaults()

	columns := table.FeatureColumns()
	rows := table.FeatureRows()
	labels := table.TargetValues()

	if len(columns) < 2 {
		return nil, &TrainingError{Reason: fmt.Sprintf("need at least 2 feature columns, got %d", len(columns))}
	}
	if len(rows) != len(labels) {
		return nil, &TrainingError{Reason: fmt.Sprintf("%d rows but %d labels", len(rows), len(labels))}
	}
	schema, err := NewFeatureSchema(columns)
	if err != nil {
		return nil, &TrainingError{Reason: err.Error()}
	}

	trainX, trainY, testX, testY := splitDataset(rows, labels, config.TestRatio, config.Seed)
	if len(testX) == 0 {
		return nil, &TrainingError{Reason: "evaluation partition is empty"}
	}
	if len(trainX) == 0 {
		return nil, &TrainingError{Reason: "training partition is empty"}
	}

	forest := NewRandomForest(ForestConfig{
		Trees:   config.Trees,
		Seed:    config.Seed,
		Workers: config.Workers,
		Tree: TreeConfig{
			MaxDepth:        config.MaxDepth,
			MinSamplesSplit: config.MinSamplesSplit,
			MinSamplesLeaf:  config.MinSamplesLeaf,
		},
	})
	if err := forest.Fit(ctx, trainX, trainY); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	predictions, err := forest.PredictBatch(testX)
	if err != nil {
		return nil, fmt.Errorf("score forest: %w", err)
	}
	mae, err := MeanAbsoluteError(testY, predictions)
	if err != nil {
		return nil, fmt.Errorf("score forest: %w", err)
	}
	r2, err := RSquared(testY, predictions)
	if err != nil {
		return nil, fmt.Errorf("score forest: %w", err)
	}

	return &TrainedModel{
		Schema:     schema,
		MAE:        mae,
		Confidence: ConfidencePercent(r2),
		TrainRows:  len(trainX),
		EvalRows:   len(testX),
		Trees:      forest.Size(),
		Seed:       config.Seed,
		TrainedAt:  time.Now().UTC(),
		estimator:  forest,
	}, nil
}

// splitDataset holds out ceil(n*testRatio) rows picked by a seeded
// permutation.
func splitDataset(features [][]float64, labels []float64, testRatio float64, seed int64) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	n := len(features)
	testSize := int(math.Ceil(float64(n) * testRatio))
	if testSize > n {
		testSize = n
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(n)

	for i, idx := range indices {
		if i < testSize {
			testX = append(testX, features[idx])
			testY = append(testY, labels[idx])
		} else {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, labels[idx])
		}
	}
	return trainX, trainY, testX, testY
}
