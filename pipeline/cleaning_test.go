package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordAuditor(t *testing.T) {
	auditor := NewRecordAuditor()
	assert.Len(t, auditor.Rules(), len(DefaultRules()))
}

func TestRangeRule(t *testing.T) {
	rule := NewRangeRule("meal_type", 0, 2, true)

	tests := []struct {
		name    string
		record  map[string]float64
		wantErr bool
	}{
		{name: "valid", record: map[string]float64{"meal_type": 1}},
		{name: "absent column", record: map[string]float64{"weather": 1}},
		{name: "too large", record: map[string]float64{"meal_type": 3}, wantErr: true},
		{name: "negative", record: map[string]float64{"meal_type": -1}, wantErr: true},
		{name: "fractional", record: map[string]float64{"meal_type": 1.5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rule.Apply(tt.record)
			if (err != nil) != tt.wantErr {
				t.Errorf("RangeRule.Apply() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecordAuditorFlagsButKeepsRows(t *testing.T) {
	input := `day_of_week,meal_type,students_present
9,1,500
2,1,-4
3,0,450
`
	ds, err := LoadDataset(strings.NewReader(input), TargetColumn)
	require.NoError(t, err)

	auditor := NewRecordAuditor()
	issues := auditor.Audit(ds)

	require.Len(t, issues, 2)
	assert.Equal(t, 2, issues[0].Line)
	assert.Equal(t, "day_of_week", issues[0].Column)
	assert.Equal(t, 3, issues[1].Line)
	assert.Equal(t, TargetColumn, issues[1].Column)
	assert.Equal(t, 3, ds.Len())

	stats := auditor.GetStats()
	assert.Equal(t, int64(3), stats.TotalChecked)
	assert.Equal(t, int64(2), stats.Flagged)
	assert.Equal(t, int64(1), stats.Issues["day_of_week_range"])
}

func TestRecordAuditorCleanDataset(t *testing.T) {
	ds, err := LoadDataset(strings.NewReader(sampleCSV), TargetColumn)
	require.NoError(t, err)
	assert.Empty(t, NewRecordAuditor().Audit(ds))
}
