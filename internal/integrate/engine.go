// Package integrate orchestrates one integration run: schema setup, then the
// customer, product and order phases in that order. The phase order is a
// hard barrier; orders are only validated against customers and products
// that have already been accepted and stored.
package integrate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"integrator/internal/config"
	"integrator/internal/metrics"
	"integrator/internal/normalize"
	"integrator/internal/schema"
	"integrator/internal/source"
	"integrator/internal/storage"
	"integrator/internal/validate"
)

// Logger is the minimal logging surface the engine needs. *log.Logger
// satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// SetupError marks a failure that prevents or aborts the run as a whole:
// unreachable storage, unreadable source, broken container format. Per-record
// problems never produce one; they land in the run summary instead.
type SetupError struct {
	Stage string
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup: %s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Engine runs integration pipelines against a Store.
//
// The zero fields default sensibly: a nil Log discards, zero ChannelBuffer
// uses the source package default, a zero Normalizer uses the default date
// layout.
type Engine struct {
	Store storage.Store
	Log   Logger

	Normalizer    normalize.Normalizer
	ChannelBuffer int
	DebugTimings  bool

	// newRunID is a test seam. Production uses uuid.NewString.
	newRunID func() string
}

func (e *Engine) logf(format string, v ...any) {
	if e.Log != nil {
		e.Log.Printf(format, v...)
	}
}

func (e *Engine) runID() string {
	if e.newRunID != nil {
		return e.newRunID()
	}
	return uuid.NewString()
}

// Run executes one integration run over the configured sources and returns
// its summary. Malformed and rejected records are counted in the summary, not
// returned as errors; a non-nil error is always a *SetupError and means the
// run aborted with the store in a valid but partial state.
func (e *Engine) Run(ctx context.Context, cfg config.Pipeline) (schema.RunSummary, error) {
	sum := schema.RunSummary{
		RunID:     e.runID(),
		StartedAt: time.Now().UTC(),
	}

	e.logf("run %s: starting job %q (storage=%s)", sum.RunID, cfg.Job, cfg.Storage.Kind)

	if err := e.phase(ctx, cfg, "ensure-schema", func(ctx context.Context) error {
		return e.Store.EnsureSchema(ctx)
	}); err != nil {
		e.finish(&sum, err)
		return sum, err
	}

	validator := validate.Validator{Lookup: e.Store}

	phases := []struct {
		kind   schema.EntityKind
		spec   *config.Source
		out    *schema.EntitySummary
		handle handleFunc
	}{
		{schema.KindCustomer, cfg.Sources.Customers, &sum.Customers, e.customerHandler(validator)},
		{schema.KindProduct, cfg.Sources.Products, &sum.Products, e.productHandler(validator)},
		{schema.KindOrder, cfg.Sources.Orders, &sum.Orders, e.orderHandler(validator)},
	}

	for _, p := range phases {
		if p.spec == nil {
			e.logf("run %s: phase %s skipped (no source)", sum.RunID, p.kind)
			continue
		}
		p := p
		err := e.phase(ctx, cfg, string(p.kind), func(ctx context.Context) error {
			return e.runEntityPhase(ctx, *p.spec, p.kind, p.handle, p.out)
		})
		if err != nil {
			e.finish(&sum, err)
			return sum, err
		}
		e.logf("run %s: phase %s done: accepted=%d rejected=%d malformed=%d",
			sum.RunID, p.kind, p.out.Accepted, p.out.Rejected, p.out.Malformed)
	}

	e.finish(&sum, nil)
	e.logf("run %s: finished: accepted=%d rejected=%d", sum.RunID, sum.TotalAccepted(), sum.TotalRejected())
	return sum, nil
}

// DeleteCustomer removes a customer and its dependent orders, returning
// the number of orders cascaded.
func (e *Engine) DeleteCustomer(ctx context.Context, id int64) (int64, error) {
	n, err := e.Store.DeleteCustomer(ctx, id)
	if err != nil {
		return 0, err
	}
	e.logf("deleted customer %d (%d orders cascaded)", id, n)
	return n, nil
}

// DeleteProduct removes a product and its dependent orders, returning
// the number of orders cascaded.
func (e *Engine) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	n, err := e.Store.DeleteProduct(ctx, id)
	if err != nil {
		return 0, err
	}
	e.logf("deleted product %d (%d orders cascaded)", id, n)
	return n, nil
}

func (e *Engine) finish(sum *schema.RunSummary, err error) {
	sum.FinishedAt = time.Now().UTC()
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.IncCounter(metrics.RunsTotal, 1, metrics.Labels{"status": status})
}

// phase wraps one pipeline phase with timing and metrics.
func (e *Engine) phase(ctx context.Context, cfg config.Pipeline, name string, f func(ctx context.Context) error) error {
	start := time.Now()
	err := f(ctx)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ObserveHistogram(metrics.PhaseDurationSeconds, elapsed.Seconds(),
		metrics.Labels{"phase": name, "status": status})

	if e.DebugTimings || cfg.Runtime.DebugTimings {
		e.logf("phase %s: %s (%s)", name, status, elapsed.Round(time.Millisecond))
	}
	if err != nil {
		var se *SetupError
		if errors.As(err, &se) {
			return err
		}
		return &SetupError{Stage: name, Err: err}
	}
	return nil
}

// handleFunc processes one raw record end to end: normalize, validate,
// insert. It returns (nil, nil) on accept, a rejection on semantic failure,
// a *normalize.MalformedRecordError on structural failure, and any other
// error when storage itself misbehaves.
type handleFunc func(ctx context.Context, rec source.Record) (*schema.Rejection, error)

func (e *Engine) customerHandler(v validate.Validator) handleFunc {
	return func(ctx context.Context, rec source.Record) (*schema.Rejection, error) {
		c, err := e.Normalizer.Customer(rec)
		if err != nil {
			return nil, err
		}
		if rej, err := v.Customer(ctx, rec.Ref, c); rej != nil || err != nil {
			return rej, err
		}
		return nil, e.Store.InsertCustomer(ctx, c)
	}
}

func (e *Engine) productHandler(v validate.Validator) handleFunc {
	return func(ctx context.Context, rec source.Record) (*schema.Rejection, error) {
		p, err := e.Normalizer.Product(rec)
		if err != nil {
			return nil, err
		}
		if rej, err := v.Product(ctx, rec.Ref, p); rej != nil || err != nil {
			return rej, err
		}
		return nil, e.Store.InsertProduct(ctx, p)
	}
}

func (e *Engine) orderHandler(v validate.Validator) handleFunc {
	return func(ctx context.Context, rec source.Record) (*schema.Rejection, error) {
		o, err := e.Normalizer.Order(rec)
		if err != nil {
			return nil, err
		}
		if rej, err := v.Order(ctx, rec.Ref, o); rej != nil || err != nil {
			return rej, err
		}
		return nil, e.Store.InsertOrder(ctx, o)
	}
}

// runEntityPhase streams one source through handle and fills out.
//
// Row ownership follows the source contract: rows are Free()d after their
// fields are collected, and Drop()ped when the phase aborts mid-stream.
func (e *Engine) runEntityPhase(
	ctx context.Context,
	spec config.Source,
	kind schema.EntityKind,
	handle handleFunc,
	out *schema.EntitySummary,
) error {
	base := filepath.Base(spec.Path)

	// Parse-level failures arrive on the adapter goroutine.
	var parseMalformed atomic.Int64
	onErr := func(line int, err error) {
		parseMalformed.Add(1)
		e.logf("%s:%d: malformed %s record: %v", base, line, kind, err)
		metrics.IncCounter(metrics.RecordsTotal, 1,
			metrics.Labels{"kind": string(kind), "outcome": "malformed"})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := source.Open(ctx, spec, schema.Columns(kind), e.ChannelBuffer, onErr)
	if err != nil {
		return &SetupError{Stage: string(kind), Err: err}
	}

	var fatal error
	for row := range stream.Rows {
		if fatal != nil {
			row.Drop()
			continue
		}

		rec := source.Collect(schema.Columns(kind), row)
		rec.Ref = fmt.Sprintf("%s:%d", base, row.Line)
		row.Free()

		rej, err := handle(ctx, rec)
		switch {
		case err != nil:
			var mal *normalize.MalformedRecordError
			if errors.As(err, &mal) {
				out.Malformed++
				e.logf("%s: dropped: %v", rec.Ref, err)
				metrics.IncCounter(metrics.RecordsTotal, 1,
					metrics.Labels{"kind": string(kind), "outcome": "malformed"})
				continue
			}
			// Storage trouble. Stop feeding and drain.
			fatal = err
			cancel()

		case rej != nil:
			out.Rejected++
			out.Rejections = append(out.Rejections, *rej)
			e.logf("%s: rejected (%s): %s", rec.Ref, rej.Reason, rej.Detail)
			metrics.IncCounter(metrics.RecordsTotal, 1,
				metrics.Labels{"kind": string(kind), "outcome": "rejected"})

		default:
			out.Accepted++
			metrics.IncCounter(metrics.RecordsTotal, 1,
				metrics.Labels{"kind": string(kind), "outcome": "accepted"})
		}
	}

	streamErr := stream.Wait()
	out.Malformed += int(parseMalformed.Load())

	if fatal != nil {
		return &SetupError{Stage: string(kind), Err: fatal}
	}
	if streamErr != nil && !errors.Is(streamErr, context.Canceled) {
		return &SetupError{Stage: string(kind), Err: streamErr}
	}
	return nil
}
