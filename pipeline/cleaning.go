package pipeline

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// AuditRule inspects one record. A returned error is reported as a quality
// issue; the record is never dropped.
type AuditRule interface {
	Apply(record map[string]float64) error
	Name() string
	Column() string
}

// QualityIssue is one rule violation. Line is 1-based and counts the header.
type QualityIssue struct {
	Line    int    `json:"line"`
	Column  string `json:"column"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// AuditStats summarises the most recent audit.
type AuditStats struct {
	TotalChecked int64            `json:"total_checked"`
	Flagged      int64            `json:"flagged"`
	Issues       map[string]int64 `json:"issues"`
	LastAudit    time.Time        `json:"last_audit"`
}

// RecordAuditor runs advisory rules over a loaded dataset.
type RecordAuditor struct {
	rules []AuditRule

	stats     AuditStats
	statsLock sync.RWMutex
}

// NewRecordAuditor creates an auditor with the attendance vocabulary rules.
func NewRecordAuditor() *RecordAuditor {
	auditor := &RecordAuditor{
		stats: AuditStats{Issues: make(map[string]int64)},
	}
	for _, rule := range DefaultRules() {
		auditor.AddRule(rule)
	}
	return auditor
}

func (a *RecordAuditor) AddRule(rule AuditRule) {
	a.rules = append(a.rules, rule)
}

func (a *RecordAuditor) Rules() []AuditRule {
	return append([]AuditRule(nil), a.rules...)
}

// Audit checks every record. Rules whose column is absent from the dataset
// are skipped.
func (a *RecordAuditor) Audit(ds *Dataset) []QualityIssue {
	present := make(map[string]bool, len(ds.Columns)+1)
	for _, name := range ds.Columns {
		present[name] = true
	}
	present[ds.Target] = true

	active := make([]AuditRule, 0, len(a.rules))
	for _, rule := range a.rules {
		if present[rule.Column()] {
			active = append(active, rule)
		}
	}

	a.statsLock.Lock()
	defer a.statsLock.Unlock()

	a.stats = AuditStats{Issues: make(map[string]int64)}
	var issues []QualityIssue
	for i := 0; i < ds.Len(); i++ {
		a.stats.TotalChecked++
		record := ds.Record(i)
		flagged := false
		for _, rule := range active {
			if err := rule.Apply(record); err != nil {
				issues = append(issues, QualityIssue{
					Line:    lineOf(ds, i),
					Column:  rule.Column(),
					Rule:    rule.Name(),
					Message: err.Error(),
				})
				a.stats.Issues[rule.Name()]++
				flagged = true
			}
		}
		if flagged {
			a.stats.Flagged++
		}
	}
	a.stats.LastAudit = time.Now()
	return issues
}

func (a *RecordAuditor) GetStats() AuditStats {
	a.statsLock.RLock()
	defer a.statsLock.RUnlock()

	stats := a.stats
	stats.Issues = make(map[string]int64, len(a.stats.Issues))
	for k, v := range a.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

func lineOf(ds *Dataset, i int) int {
	if i < len(ds.Lines) {
		return ds.Lines[i]
	}
	return i + 2
}

// RangeRule flags values outside [Min, Max], and fractional values when
// Integer is set.
type RangeRule struct {
	Field   string
	Min     float64
	Max     float64
	Integer bool
}

func NewRangeRule(field string, min, max float64, integer bool) *RangeRule {
	return &RangeRule{Field: field, Min: min, Max: max, Integer: integer}
}

func (r *RangeRule) Name() string {
	return r.Field + "_range"
}

func (r *RangeRule) Column() string {
	return r.Field
}

func (r *RangeRule) Apply(record map[string]float64) error {
	value, ok := record[r.Field]
	if !ok {
		return nil
	}
	if value < r.Min || value > r.Max {
		if math.IsInf(r.Max, 1) {
			return fmt.Errorf("%s %g below %g", r.Field, value, r.Min)
		}
		return fmt.Errorf("%s %g out of range [%g, %g]", r.Field, value, r.Min, r.Max)
	}
	if r.Integer && value != math.Trunc(value) {
		return fmt.Errorf("%s %g is not a whole number", r.Field, value)
	}
	return nil
}

// DefaultRules covers the closed vocabulary of an attendance record.
func DefaultRules() []AuditRule {
	return []AuditRule{
		NewRangeRule("day_of_week", 0, 6, true),
		NewRangeRule("meal_type", 0, 2, true),
		NewRangeRule("is_holiday", 0, 1, true),
		NewRangeRule("weather", 0, 1, true),
		NewRangeRule("exam_week", 0, 1, true),
		NewRangeRule("previous_week_attendance", 0, math.Inf(1), true),
		NewRangeRule(TargetColumn, 0, math.Inf(1), true),
	}
}
