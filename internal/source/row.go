// Package source defines the raw record streams the pipeline ingests: a Row
// is a positional raw record aligned to a canonical column list, and a
// Stream is a channel of Rows plus a terminal error.
//
// This file defines a pooled Row type shared by all adapters to reduce heap
// churn when streaming large exports.
package source

import "sync"

// Row is a pooled container holding one positional raw record.
//
// Ownership contract:
//   - Exactly one goroutine owns a Row at a time.
//   - A Row may be passed downstream via channels (ownership transfer).
//   - The final consumer must call Free() after it is fully done with the
//     Row and anything referencing r.V.
//
// On cancellation paths use Drop() instead of Free(): a canceled drain may
// still be reading a Row while the adapter unwinds, and re-pooling it at
// that point lets the adapter reuse it concurrently.
type Row struct {
	V    []any
	Line int // 1-based record number within the source, if known
}

var rowPool sync.Pool

// GetRow returns a pooled Row with length colCount, all elements zeroed.
func GetRow(colCount int) *Row {
	if v := rowPool.Get(); v != nil {
		r := v.(*Row)
		if cap(r.V) < colCount {
			r.V = make([]any, colCount)
		}
		r.V = r.V[:colCount]
		for i := range r.V {
			r.V[i] = nil
		}
		r.Line = 0
		return r
	}
	return &Row{V: make([]any, colCount)}
}

// Free returns the Row to the pool. Call only when no other goroutine can
// observe r or r.V.
func (r *Row) Free() {
	rowPool.Put(r)
}

// Drop discards the Row without re-pooling it.
func (r *Row) Drop() {
	r.V = nil
	r.Line = 0
}
