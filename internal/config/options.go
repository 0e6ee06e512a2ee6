package config

import (
	"strconv"
	"strings"
)

// Options is a free-form option bag decoded from pipeline JSON. Parsers and
// source adapters read from it with typed accessors so that adding a knob
// never requires a struct change across packages.
//
// Accessors are forgiving: a missing key or a value of the wrong type yields
// the provided default. Misconfiguration is caught by ValidatePipeline, not
// by panics deep inside a stream.
type Options map[string]any

// Any returns the raw value for key, or nil.
func (o Options) Any(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

// String returns the value for key as a string, or def.
func (o Options) String(key, def string) string {
	v, ok := o[key]
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

// Bool returns the value for key as a bool. JSON booleans and the strings
// "true"/"false" are accepted.
func (o Options) Bool(key string, def bool) bool {
	v, ok := o[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
	}
	return def
}

// Int returns the value for key as an int. JSON numbers arrive as float64;
// numeric strings are also accepted.
func (o Options) Int(key string, def int) int {
	v, ok := o[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

// Rune returns the first rune of a one-character string option (e.g. a CSV
// delimiter), or def.
func (o Options) Rune(key string, def rune) rune {
	s := o.String(key, "")
	if s == "" {
		return def
	}
	return []rune(s)[0]
}

// StringMap returns the value for key as map[string]string. JSON objects
// decode as map[string]any; non-string values are skipped.
func (o Options) StringMap(key string) map[string]string {
	v, ok := o[key]
	if !ok {
		return nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}
