package schema

import "time"

// Reason is the machine-readable code attached to a validation rejection.
//
// These codes are part of the run-summary contract: downstream consumers key
// on them, so they are stable strings rather than iota constants.
type Reason string

const (
	ReasonDuplicateEmail      Reason = "DUPLICATE_EMAIL"
	ReasonMissingReference    Reason = "MISSING_REFERENCE"
	ReasonConstraintViolation Reason = "CONSTRAINT_VIOLATION"
)

// Rejection records one semantically invalid record. The record itself is not
// retained; SourceRef carries enough context (source name + line) to find it
// without re-running ingestion.
type Rejection struct {
	SourceRef string `json:"source_ref"`
	Reason    Reason `json:"reason"`
	Detail    string `json:"detail,omitempty"`
}

// EntitySummary aggregates the per-record outcomes of one source stream.
//
// Malformed counts records that never reached validation (missing required
// field, failed type coercion). Rejected counts records that parsed cleanly
// but violated a semantic rule; each of those carries a Rejection entry.
type EntitySummary struct {
	Accepted   int         `json:"accepted_count"`
	Rejected   int         `json:"rejected_count"`
	Malformed  int         `json:"malformed_count"`
	Rejections []Rejection `json:"rejections,omitempty"`
}

// RunSummary is the result of one integration run. Per-record failures are
// folded in here; only setup-class failures surface as errors.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Customers EntitySummary `json:"customers"`
	Products  EntitySummary `json:"products"`
	Orders    EntitySummary `json:"orders"`
}

// TotalAccepted returns the number of rows written across all three phases.
func (s RunSummary) TotalAccepted() int {
	return s.Customers.Accepted + s.Products.Accepted + s.Orders.Accepted
}

// TotalRejected returns the number of records rejected across all three
// phases, malformed records included.
func (s RunSummary) TotalRejected() int {
	return s.Customers.Rejected + s.Customers.Malformed +
		s.Products.Rejected + s.Products.Malformed +
		s.Orders.Rejected + s.Orders.Malformed
}
