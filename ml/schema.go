package ml

import "fmt"

// FeatureSchema is the ordered list of columns a model was fit on. It is
// fixed once training completes; accessors hand out copies.
type FeatureSchema struct {
	names []string
	index map[string]int
}

func NewFeatureSchema(names []string) (FeatureSchema, error) {
	index := make(map[string]int, len(names))
	for i, name := range names {
		if name == "" {
			return FeatureSchema{}, fmt.Errorf("feature %d has an empty name", i)
		}
		if _, dup := index[name]; dup {
			return FeatureSchema{}, fmt.Errorf("duplicate feature %q", name)
		}
		index[name] = i
	}
	return FeatureSchema{
		names: append([]string(nil), names...),
		index: index,
	}, nil
}

func (s FeatureSchema) Names() []string {
	return append([]string(nil), s.names...)
}

func (s FeatureSchema) Len() int {
	return len(s.names)
}

// Index returns the position of name, or -1.
func (s FeatureSchema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

func (s FeatureSchema) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Missing lists the schema columns absent from record, in schema order.
func (s FeatureSchema) Missing(record map[string]float64) []string {
	var missing []string
	for _, name := range s.names {
		if _, ok := record[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Project lays record out in schema order. Absent columns become 0 and
// keys outside the schema are ignored.
func (s FeatureSchema) Project(record map[string]float64) []float64 {
	row := make([]float64, len(s.names))
	for i, name := range s.names {
		row[i] = record[name]
	}
	return row
}
