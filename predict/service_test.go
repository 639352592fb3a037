package predict

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messforecast/ml"
	"messforecast/pipeline"
)

type recordingRegressor struct {
	rows  [][]float64
	value float64
}

func (r *recordingRegressor) Predict(features []float64) (float64, error) {
	r.rows = append(r.rows, append([]float64(nil), features...))
	return r.value, nil
}

func fakeModel(t *testing.T, names []string, value, confidence float64) (*ml.TrainedModel, *recordingRegressor) {
	t.Helper()
	schema, err := ml.NewFeatureSchema(names)
	require.NoError(t, err)
	reg := &recordingRegressor{value: value}
	return ml.NewTrainedModel(schema, reg, 12.5, confidence), reg
}

func TestPredictBeforeTraining(t *testing.T) {
	svc := NewService(nil)

	_, err := svc.Predict(map[string]float64{FieldDayOfWeek: 1})
	var notTrained *NotTrainedError
	assert.True(t, errors.As(err, &notTrained))
	assert.ErrorIs(t, err, ErrNotTrained)

	_, err = svc.Model()
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestPredictProjectsInSchemaOrder(t *testing.T) {
	model, reg := fakeModel(t, []string{"a", "b", "c"}, 10, 80)
	svc := NewService(nil)
	svc.Install(model)

	_, err := svc.Predict(map[string]float64{"c": 5, "a": 1, "b": 2})
	require.NoError(t, err)
	require.Len(t, reg.rows, 1)
	assert.Equal(t, []float64{1, 2, 5}, reg.rows[0])
}

func TestPredictZeroFillsMissingFields(t *testing.T) {
	model, reg := fakeModel(t, []string{"a", "b", "c"}, 10, 80)
	svc := NewService(nil)
	svc.Install(model)

	_, err := svc.Predict(map[string]float64{"b": 7, "unused": 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 7, 0}, reg.rows[0])

	_, err = svc.Predict(nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, reg.rows[1])
}

func TestPredictRoundsAndReportsStoredConfidence(t *testing.T) {
	tests := []struct {
		value float64
		want  int
	}{
		{value: 812.4, want: 812},
		{value: 812.5, want: 813},
		{value: -3, want: 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.value), func(t *testing.T) {
			model, _ := fakeModel(t, []string{"a", "b"}, tt.value, 91.25)
			svc := NewService(nil)
			svc.Install(model)

			result, err := svc.Predict(map[string]float64{"a": 1})
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.PredictedAttendance)
			assert.Equal(t, 91.25, result.ConfidencePercent)
		})
	}
}

func TestInstallReplacesModel(t *testing.T) {
	first, _ := fakeModel(t, []string{"a", "b"}, 100, 50)
	second, _ := fakeModel(t, []string{"x", "y", "z"}, 200, 60)

	svc := NewService(nil)
	svc.Install(first)
	svc.Install(second)
	svc.Install(nil)

	model, err := svc.Model()
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, model.Schema.Names())

	result, err := svc.Predict(map[string]float64{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, 200, result.PredictedAttendance)
}

func attendanceCSV(n int, seed int64) string {
	rnd := rand.New(rand.NewSource(seed))
	var b strings.Builder
	b.WriteString("day_of_week,meal_type,is_holiday,weather,exam_week,previous_week_attendance,students_present\n")
	for i := 0; i < n; i++ {
		day, meal := rnd.Intn(7), rnd.Intn(3)
		holiday, weather, exam := rnd.Intn(2), rnd.Intn(2), rnd.Intn(2)
		prev := 800 + rnd.Intn(400)
		present := prev*4/5 + 100*meal - 150*holiday - 60*weather + 70*exam + rnd.Intn(30)
		if present < 0 {
			present = 0
		}
		fmt.Fprintf(&b, "%d,%d,%d,%d,%d,%d,%d\n", day, meal, holiday, weather, exam, prev, present)
	}
	return b.String()
}

func TestPartialSelectionScenario(t *testing.T) {
	ds, err := pipeline.LoadDataset(strings.NewReader(attendanceCSV(500, 7)), pipeline.TargetColumn)
	require.NoError(t, err)

	svc := NewService(nil)
	model, err := svc.Train(context.Background(), ds, ml.TrainConfig{Trees: 30})
	require.NoError(t, err)
	assert.Equal(t, []string{
		FieldDayOfWeek, FieldMealType, FieldIsHoliday, FieldWeather, FieldExamWeek, FieldPreviousWeek,
	}, model.Schema.Names())

	acc := NewAccumulator()
	acc.Set(FieldDayOfWeek, 2)
	acc.Set(FieldMealType, 1)
	assert.False(t, acc.IsComplete(RequiredFields))

	result, err := svc.PredictSession(acc)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.PredictedAttendance, 0)
	assert.Equal(t, model.Confidence, result.ConfidencePercent)

	explicit, err := svc.Predict(map[string]float64{
		FieldDayOfWeek: 2, FieldMealType: 1, FieldIsHoliday: 0, FieldWeather: 0, FieldExamWeek: 0, FieldPreviousWeek: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, explicit, result)
}

func TestTrainFailureKeepsPreviousModel(t *testing.T) {
	first, _ := fakeModel(t, []string{"a", "b"}, 100, 50)
	svc := NewService(nil)
	svc.Install(first)

	ds, err := pipeline.LoadDataset(strings.NewReader("a,students_present\n1,2\n3,4\n"), pipeline.TargetColumn)
	require.NoError(t, err)

	_, err = svc.Train(context.Background(), ds, ml.TrainConfig{Trees: 2})
	var trainingErr *ml.TrainingError
	require.True(t, errors.As(err, &trainingErr))

	model, err := svc.Model()
	require.NoError(t, err)
	assert.Same(t, first, model)
}
