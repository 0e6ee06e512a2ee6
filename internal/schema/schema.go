// Package schema defines the normalized entity records exchanged between the
// source adapters, the validator, the storage backends and the report layer.
//
// The types here are deliberately plain: no ORM tags, no behavior beyond a
// couple of derived-value helpers. Everything that mutates state lives in
// internal/integrate; everything that talks SQL lives in internal/storage.
package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is one row of the customers table. Only the identity, name parts
// and email are mandatory; the contact fields are nullable in every backend.
type Customer struct {
	CustomerID int64
	FirstName  string
	LastName   string
	Email      string

	Phone   string
	Address string
	City    string
	State   string
	ZipCode string
	Country string
}

// Product is one row of the products table.
type Product struct {
	ProductID     int64
	ProductName   string
	Description   string
	Price         decimal.Decimal
	StockQuantity int64
	Category      string
	Supplier      string
}

// Order references exactly one customer and one product, both of which must
// already be stored when the order is written.
//
// TotalAmount is a derived value: the storage backends declare it as a
// generated column computed from quantity * unit_price, and the validator
// recomputes it before any write. It is never supplied by callers.
type Order struct {
	OrderID    int64
	CustomerID int64
	ProductID  int64
	OrderDate  time.Time
	Quantity   int64
	UnitPrice  decimal.Decimal
	Status     string
}

// TotalAmount returns quantity * unit_price, the value the storage backend
// will compute for the generated column.
func (o Order) TotalAmount() decimal.Decimal {
	return o.UnitPrice.Mul(decimal.NewFromInt(o.Quantity))
}

// DefaultOrderStatus is applied when a source omits the status field.
const DefaultOrderStatus = "completed"

// EntityKind names one of the three ingested record shapes.
type EntityKind string

const (
	KindCustomer EntityKind = "customer"
	KindProduct  EntityKind = "product"
	KindOrder    EntityKind = "order"
)

// Canonical column lists, in source order. Source adapters align raw rows to
// these positions; the normalizer reads them back by name.
var (
	CustomerColumns = []string{
		"customer_id", "first_name", "last_name", "email",
		"phone", "address", "city", "state", "zip_code", "country",
	}
	ProductColumns = []string{
		"product_id", "product_name", "description", "price",
		"stock_quantity", "category", "supplier",
	}
	OrderColumns = []string{
		"order_id", "customer_id", "product_id", "order_date",
		"quantity", "unit_price", "status",
	}
)

// Columns returns the canonical column list for kind, or nil for an unknown
// kind.
func Columns(kind EntityKind) []string {
	switch kind {
	case KindCustomer:
		return CustomerColumns
	case KindProduct:
		return ProductColumns
	case KindOrder:
		return OrderColumns
	default:
		return nil
	}
}
