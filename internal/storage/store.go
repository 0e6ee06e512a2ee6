// Package storage defines the backend-agnostic Store interface the pipeline
// writes to and reads back from, plus the factory registry backends hook
// into from their init() functions.
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"integrator/internal/schema"
)

// Config is the minimal configuration needed to open a Store.
//
// Kind must match a registered backend kind ("sqlite", "postgres", "mssql");
// DSN is passed through to the backend factory and validated there.
type Config struct {
	Kind string
	DSN  string
}

// Store is the full storage contract: schema management, per-record writes
// and lookups used during ingestion, cascade deletes, and the read-only
// aggregations the report layer consumes.
//
// IMPORTANT: every implementation declares orders.total_amount as a
// generated/computed column over quantity * unit_price. Inserts never supply
// it; aggregations always read it.
type Store interface {
	// Close releases backend resources. Call once at end of run.
	Close()

	// EnsureSchema creates the three tables and their constraints if absent.
	// Idempotent; safe to run on every invocation.
	EnsureSchema(ctx context.Context) error

	InsertCustomer(ctx context.Context, c schema.Customer) error
	InsertProduct(ctx context.Context, p schema.Product) error
	InsertOrder(ctx context.Context, o schema.Order) error

	// DeleteCustomer removes a customer and, first, its dependent orders.
	// Returns the number of orders cascaded. DeleteProduct is symmetric.
	DeleteCustomer(ctx context.Context, id int64) (int64, error)
	DeleteProduct(ctx context.Context, id int64) (int64, error)

	// Lookups used by validation. These see every row written so far in the
	// current run (writes are immediate, not batched across phases).
	EmailExists(ctx context.Context, email string) (bool, error)
	CustomerExists(ctx context.Context, id int64) (bool, error)
	ProductExists(ctx context.Context, id int64) (bool, error)
	OrderExists(ctx context.Context, id int64) (bool, error)

	// Aggregations. All tolerate an empty store by returning empty slices
	// (or zero counts), never an error.
	Counts(ctx context.Context) (schema.StoreCounts, error)
	ProductSales(ctx context.Context) ([]schema.ProductSales, error)
	CategorySummary(ctx context.Context) ([]schema.CategorySummary, error)
	TopProducts(ctx context.Context, n int) ([]schema.ProductSales, error)
	CustomerSpend(ctx context.Context) ([]schema.CustomerSpend, error)
	CustomersOverThreshold(ctx context.Context, min decimal.Decimal) ([]schema.CustomerSpend, error)
}

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	regMu     sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Backends call this from init();
// registering the same kind twice panics to fail fast on ambiguous wiring.
func Register(kind string, f factory) {
	regMu.Lock()
	defer regMu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Open constructs a Store using the registered backend factory.
//
// Errors:
//   - cfg.Kind empty or unregistered.
//   - Whatever the backend factory returns (bad DSN, unreachable server).
//
// Concurrency: safe for concurrent use with Register.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	regMu.RLock()
	f := factories[cfg.Kind]
	regMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%q", cfg.Kind)
	}
	return f(ctx, cfg)
}
