package ml

import "math/rand"

type memTable struct {
	columns []string
	rows    [][]float64
	labels  []float64
}

func (t memTable) FeatureColumns() []string { return t.columns }
func (t memTable) FeatureRows() [][]float64 { return t.rows }
func (t memTable) TargetValues() []float64  { return t.labels }

var attendanceColumns = []string{
	"day_of_week", "meal_type", "is_holiday", "weather", "exam_week", "previous_week_attendance",
}

// attendanceTable generates mess attendance with a learnable structure:
// lunch is busiest, holidays and rain thin the hall, exams fill it.
func attendanceTable(n int, seed int64) memTable {
	rnd := rand.New(rand.NewSource(seed))
	t := memTable{columns: append([]string(nil), attendanceColumns...)}
	for i := 0; i < n; i++ {
		day := float64(rnd.Intn(7))
		meal := float64(rnd.Intn(3))
		holiday := float64(rnd.Intn(2))
		weather := float64(rnd.Intn(2))
		exam := float64(rnd.Intn(2))
		prev := float64(800 + rnd.Intn(400))

		present := 0.8*prev + 120*boolF(meal == 1) - 60*boolF(meal == 0) -
			200*holiday - 80*weather + 90*exam - 10*day + float64(rnd.Intn(40))
		if present < 0 {
			present = 0
		}
		t.rows = append(t.rows, []float64{day, meal, holiday, weather, exam, prev})
		t.labels = append(t.labels, present)
	}
	return t
}

func boolF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
