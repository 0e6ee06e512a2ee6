package source

// Record is a raw field mapping: canonical column name to raw value (string
// or nil). It is the shape the normalizer consumes.
type Record struct {
	Ref    string // source ref, e.g. "products.csv:17"
	Line   int
	Fields map[string]any
}

// String returns the raw value for field as a string, with ok=false when the
// field is absent or nil.
func (r Record) String(field string) (string, bool) {
	v, present := r.Fields[field]
	if !present || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Collect zips a positional Row into a Record keyed by columns. The Row's
// values are copied out, so the caller may Free() the Row afterwards.
func Collect(columns []string, r *Row) Record {
	fields := make(map[string]any, len(columns))
	for i, col := range columns {
		fields[col] = r.V[i]
	}
	return Record{Line: r.Line, Fields: fields}
}
