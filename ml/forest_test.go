package ml

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomForestDeterministicAcrossWorkers(t *testing.T) {
	table := attendanceTable(150, 11)
	probe := []float64{2, 1, 0, 0, 1, 950}

	var outputs []float64
	for _, workers := range []int{1, 4} {
		forest := NewRandomForest(ForestConfig{Trees: 20, Seed: 42, Workers: workers})
		require.NoError(t, forest.Fit(context.Background(), table.rows, table.labels))
		assert.Equal(t, 20, forest.Size())
		assert.Equal(t, 6, forest.FeatureCount())

		value, err := forest.Predict(probe)
		require.NoError(t, err)
		outputs = append(outputs, value)
	}
	assert.Equal(t, outputs[0], outputs[1])
}

func TestRandomForestPredictChecksWidth(t *testing.T) {
	table := attendanceTable(40, 1)
	forest := NewRandomForest(ForestConfig{Trees: 5, Seed: 1})
	require.NoError(t, forest.Fit(context.Background(), table.rows, table.labels))

	_, err := forest.Predict([]float64{1, 2})
	assert.Error(t, err)
}

func TestRandomForestUntrained(t *testing.T) {
	_, err := NewRandomForest(ForestConfig{}).Predict([]float64{1})
	assert.Error(t, err)
}

func TestRandomForestCancelled(t *testing.T) {
	table := attendanceTable(40, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	forest := NewRandomForest(ForestConfig{Trees: 50, Seed: 1})
	assert.ErrorIs(t, forest.Fit(ctx, table.rows, table.labels), context.Canceled)
	assert.Equal(t, 0, forest.Size())
}

func TestRandomForestRaggedRows(t *testing.T) {
	forest := NewRandomForest(ForestConfig{Trees: 2})
	err := forest.Fit(context.Background(), [][]float64{{1, 2}, {3}}, []float64{1, 2})
	assert.Error(t, err)
}
