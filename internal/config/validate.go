package config

import (
	"fmt"
	"time"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding from ValidatePipeline. Path is a dotted locator into
// the JSON document ("sources.products.kind").
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func errIssue(path, format string, v ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, v...)}
}

func warnIssue(path, format string, v ...any) Issue {
	return Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, v...)}
}

var sourceKinds = map[string]bool{
	"csv":       true,
	"sqlstmt":   true,
	"json":      true,
	"htmltable": true,
}

// ValidatePipeline checks a decoded pipeline for structural problems that
// would otherwise surface mid-run. It never touches the filesystem or the
// network; existence of paths and reachability of DSNs are run-time
// concerns (and yield setup failures there).
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if p.Job == "" {
		issues = append(issues, warnIssue("job", "job name is empty; logs and metrics will use a default"))
	}

	if p.Storage.Kind == "" {
		issues = append(issues, errIssue("storage.kind", "storage.kind must be set"))
	}
	if p.Storage.DSN == "" {
		issues = append(issues, errIssue("storage.dsn", "storage.dsn must be set"))
	}

	issues = append(issues, validateSource("sources.customers", p.Sources.Customers, true)...)
	issues = append(issues, validateSource("sources.products", p.Sources.Products, true)...)
	issues = append(issues, validateSource("sources.orders", p.Sources.Orders, false)...)

	if p.Runtime.ChannelBuffer < 0 {
		issues = append(issues, errIssue("runtime.channel_buffer", "must be >= 0, got %d", p.Runtime.ChannelBuffer))
	}
	if p.Runtime.DateLayout != "" {
		// A layout that cannot round-trip its own reference date is broken.
		ref := time.Date(2006, 1, 2, 0, 0, 0, 0, time.UTC)
		if _, err := time.Parse(p.Runtime.DateLayout, ref.Format(p.Runtime.DateLayout)); err != nil {
			issues = append(issues, errIssue("runtime.date_layout", "invalid layout %q: %v", p.Runtime.DateLayout, err))
		}
	}

	if p.Report.TopN < 0 {
		issues = append(issues, errIssue("report.top_n", "must be >= 0, got %d", p.Report.TopN))
	}

	return issues
}

func validateSource(path string, s *Source, required bool) []Issue {
	if s == nil {
		if required {
			return []Issue{errIssue(path, "source is required")}
		}
		return nil
	}

	var issues []Issue
	if !sourceKinds[s.Kind] {
		issues = append(issues, errIssue(path+".kind", "unknown source kind %q", s.Kind))
	}
	if s.Path == "" {
		issues = append(issues, errIssue(path+".path", "path must be set"))
	}
	return issues
}

// HasErrors reports whether any issue carries error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
