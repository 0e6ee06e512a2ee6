// Package config defines the JSON pipeline configuration for an integration
// run and its validation. The config is intentionally declarative: it names
// the three source streams, the storage backend, and runtime knobs. It
// carries no credentials beyond the DSN, which supports ${ENV} expansion at
// the call site.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Pipeline is the root configuration document.
type Pipeline struct {
	Job     string      `json:"job"`
	Sources Sources     `json:"sources"`
	Storage Storage     `json:"storage"`
	Runtime Runtime     `json:"runtime"`
	Report  ReportSpec  `json:"report"`
	Metrics MetricsSpec `json:"metrics"`
}

// Sources holds one source spec per entity kind. Customers and products are
// required for an integration run; orders are optional (a store can be
// merged and reported on before any transactions exist).
type Sources struct {
	Customers *Source `json:"customers,omitempty"`
	Products  *Source `json:"products,omitempty"`
	Orders    *Source `json:"orders,omitempty"`
}

// Source describes one raw record stream.
//
// Kind selects the adapter:
//   - "csv"       delimited text with a header row
//   - "sqlstmt"   a file of INSERT ... VALUES statements (customer-system export)
//   - "json"      a JSON array (or envelope containing one) of objects
//   - "htmltable" the first <table> of an HTML export
type Source struct {
	Kind    string  `json:"kind"`
	Path    string  `json:"path"`
	Options Options `json:"options,omitempty"`
}

// Storage selects the backend and its DSN.
// Kind must match a registered backend: "sqlite", "postgres" or "mssql".
type Storage struct {
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`
}

// Runtime controls execution behavior.
type Runtime struct {
	// ChannelBuffer sizes the source row channels. Defaults to 256.
	ChannelBuffer int `json:"channel_buffer"`

	// DateLayout is the Go reference layout used to parse order dates.
	// Defaults to "2006-01-02".
	DateLayout string `json:"date_layout"`

	// DebugTimings enables per-phase duration logs.
	DebugTimings bool `json:"debug_timings"`
}

// ReportSpec controls the report command.
type ReportSpec struct {
	TopN      int    `json:"top_n"`
	Threshold string `json:"spend_threshold"`
	OutFile   string `json:"out_file,omitempty"`
}

// MetricsSpec selects a metrics backend for the run.
type MetricsSpec struct {
	Backend string   `json:"backend,omitempty"` // "datadog" | "none"
	Tags    []string `json:"tags,omitempty"`
}

// Load reads and decodes a pipeline config file.
func Load(path string) (Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode decodes a pipeline config from r. Unknown fields are rejected so
// that typos in config files fail loudly instead of silently defaulting.
func Decode(r io.Reader) (Pipeline, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var p Pipeline
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config: %w", err)
	}
	return p, nil
}
