package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureSchemaProjectKeepsSchemaOrder(t *testing.T) {
	schema, err := NewFeatureSchema([]string{"a", "b", "c"})
	require.NoError(t, err)

	row := schema.Project(map[string]float64{"c": 5, "a": 1, "b": 2})
	assert.Equal(t, []float64{1, 2, 5}, row)
}

func TestFeatureSchemaProjectZeroFillsAndIgnoresExtras(t *testing.T) {
	schema, err := NewFeatureSchema([]string{"a", "b", "c"})
	require.NoError(t, err)

	record := map[string]float64{"b": 3, "zzz": 9}
	assert.Equal(t, []string{"a", "c"}, schema.Missing(record))
	assert.Equal(t, []float64{0, 3, 0}, schema.Project(record))
}

func TestFeatureSchemaImmutable(t *testing.T) {
	names := []string{"a", "b"}
	schema, err := NewFeatureSchema(names)
	require.NoError(t, err)

	names[0] = "mutated"
	got := schema.Names()
	got[1] = "mutated"

	assert.Equal(t, []string{"a", "b"}, schema.Names())
	assert.Equal(t, 0, schema.Index("a"))
	assert.Equal(t, -1, schema.Index("mutated"))
	assert.True(t, schema.Contains("b"))
}

func TestFeatureSchemaRejectsBadNames(t *testing.T) {
	_, err := NewFeatureSchema([]string{"a", ""})
	assert.Error(t, err)
	_, err = NewFeatureSchema([]string{"a", "a"})
	assert.Error(t, err)
}
