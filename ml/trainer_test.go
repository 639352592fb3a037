package ml

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainAttendanceScenario(t *testing.T) {
	table := attendanceTable(500, 42)

	model, err := Train(context.Background(), table, TrainConfig{Trees: 40})
	require.NoError(t, err)

	assert.Equal(t, attendanceColumns, model.Schema.Names())
	assert.Equal(t, 100, model.EvalRows)
	assert.Equal(t, 400, model.TrainRows)
	assert.Equal(t, 40, model.Trees)
	assert.Equal(t, DefaultSeed, model.Seed)
	assert.GreaterOrEqual(t, model.MAE, 0.0)
	assert.GreaterOrEqual(t, model.Confidence, 0.0)
	assert.LessOrEqual(t, model.Confidence, 100.0)
	assert.Greater(t, model.Confidence, 50.0, "synthetic data should be learnable")
}

func TestTrainDefaultsToTwoHundredTrees(t *testing.T) {
	model, err := Train(context.Background(), attendanceTable(60, 5), TrainConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTrees, model.Trees)
	assert.Equal(t, 12, model.EvalRows)
}

func TestTrainDeterministic(t *testing.T) {
	table := attendanceTable(120, 9)

	first, err := Train(context.Background(), table, TrainConfig{Trees: 25, Workers: 3})
	require.NoError(t, err)
	second, err := Train(context.Background(), table, TrainConfig{Trees: 25, Workers: 1})
	require.NoError(t, err)

	assert.Equal(t, first.Schema.Names(), second.Schema.Names())
	assert.Equal(t, first.MAE, second.MAE)
	assert.Equal(t, first.Confidence, second.Confidence)

	row := []float64{4, 2, 1, 1, 0, 1000}
	a, err := first.Predict(row)
	require.NoError(t, err)
	b, err := second.Predict(row)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTrainErrors(t *testing.T) {
	tests := []struct {
		name  string
		table memTable
	}{
		{
			name:  "single feature column",
			table: memTable{columns: []string{"day_of_week"}, rows: [][]float64{{1}, {2}}, labels: []float64{1, 2}},
		},
		{
			name:  "no rows",
			table: memTable{columns: []string{"a", "b"}},
		},
		{
			name:  "one row leaves no training rows",
			table: memTable{columns: []string{"a", "b"}, rows: [][]float64{{1, 2}}, labels: []float64{3}},
		},
		{
			name:  "label count mismatch",
			table: memTable{columns: []string{"a", "b"}, rows: [][]float64{{1, 2}}, labels: nil},
		},
		{
			name:  "duplicate column",
			table: memTable{columns: []string{"a", "a"}, rows: [][]float64{{1, 2}, {3, 4}}, labels: []float64{1, 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Train(context.Background(), tt.table, TrainConfig{Trees: 2})
			var trainingErr *TrainingError
			require.True(t, errors.As(err, &trainingErr), "got %v", err)
		})
	}
}

func TestSplitDatasetSeeded(t *testing.T) {
	table := attendanceTable(10, 1)
	trainA, _, testA, _ := splitDataset(table.rows, table.labels, 0.2, 42)
	trainB, _, testB, _ := splitDataset(table.rows, table.labels, 0.2, 42)

	assert.Len(t, testA, 2)
	assert.Len(t, trainA, 8)
	assert.Equal(t, testA, testB)
	assert.Equal(t, trainA, trainB)
}

func TestTrainedModelPredictWidth(t *testing.T) {
	model, err := Train(context.Background(), attendanceTable(30, 2), TrainConfig{Trees: 3})
	require.NoError(t, err)

	_, err = model.Predict([]float64{1, 2, 3})
	assert.Error(t, err)

	var empty *TrainedModel
	_, err = empty.Predict(nil)
	assert.Error(t, err)
}
