package predict

import (
	"fmt"
	"math"
)

// Selectable fields of an attendance query.
const (
	FieldDayOfWeek    = "day_of_week"
	FieldMealType     = "meal_type"
	FieldIsHoliday    = "is_holiday"
	FieldWeather      = "weather"
	FieldExamWeek     = "exam_week"
	FieldPreviousWeek = "previous_week_attendance"
)

// RequiredFields is the advisory threshold for a complete selection.
const RequiredFields = 6

// DefaultPreviousWeekAttendance is offered as the starting value of the
// free-entry field.
const DefaultPreviousWeekAttendance = 1000

// Option is one selectable value of a field.
type Option struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// FieldSpec describes a field of the selection vocabulary. A field without
// options accepts any non-negative whole number.
type FieldSpec struct {
	Name    string   `json:"name"`
	Title   string   `json:"title"`
	Options []Option `json:"options,omitempty"`
	Default *float64 `json:"default,omitempty"`
}

// SelectionError rejects a value outside the vocabulary.
type SelectionError struct {
	Field string
	Value float64
	Msg   string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("invalid selection %s=%g: %s", e.Field, e.Value, e.Msg)
}

func yesNo() []Option {
	return []Option{{Label: "Yes", Value: 1}, {Label: "No", Value: 0}}
}

// Vocabulary lists the selectable fields in display order.
func Vocabulary() []FieldSpec {
	prev := float64(DefaultPreviousWeekAttendance)
	return []FieldSpec{
		{
			Name:  FieldDayOfWeek,
			Title: "Day of Week",
			Options: []Option{
				{Label: "Monday", Value: 0},
				{Label: "Tuesday", Value: 1},
				{Label: "Wednesday", Value: 2},
				{Label: "Thursday", Value: 3},
				{Label: "Friday", Value: 4},
				{Label: "Saturday", Value: 5},
				{Label: "Sunday", Value: 6},
			},
		},
		{
			Name:    FieldMealType,
			Title:   "Meal Type",
			Options: []Option{{Label: "Breakfast", Value: 0}, {Label: "Lunch", Value: 1}, {Label: "Dinner", Value: 2}},
		},
		{Name: FieldIsHoliday, Title: "Is it a Holiday?", Options: yesNo()},
		{
			Name:    FieldWeather,
			Title:   "Weather Condition",
			Options: []Option{{Label: "Clear", Value: 0}, {Label: "Rain", Value: 1}},
		},
		{Name: FieldExamWeek, Title: "Exam Week?", Options: yesNo()},
		{Name: FieldPreviousWeek, Title: "Previous Week Attendance", Default: &prev},
	}
}

func lookupField(name string) (FieldSpec, bool) {
	for _, spec := range Vocabulary() {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// ValidateSelection checks a value at the point it is chosen.
func ValidateSelection(field string, value float64) error {
	spec, ok := lookupField(field)
	if !ok {
		return &SelectionError{Field: field, Value: value, Msg: "unknown field"}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &SelectionError{Field: field, Value: value, Msg: "not a finite number"}
	}
	if len(spec.Options) == 0 {
		if value < 0 || value != math.Trunc(value) {
			return &SelectionError{Field: field, Value: value, Msg: "must be a non-negative whole number"}
		}
		return nil
	}
	for _, option := range spec.Options {
		if option.Value == value {
			return nil
		}
	}
	return &SelectionError{Field: field, Value: value, Msg: "not one of the offered options"}
}
