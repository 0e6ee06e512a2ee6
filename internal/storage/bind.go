package storage

// NullIfEmpty maps an optional string field to its SQL bind value: empty
// string becomes NULL so optional columns stay genuinely absent instead of
// accumulating empty strings.
func NullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
