// Package normalize converts raw field mappings into typed entity records.
//
// Normalization is a pure transformation: no storage lookups, no state. A
// record either coerces cleanly into its entity type or fails with a
// *MalformedRecordError; semantic rules (uniqueness, references, value
// ranges) belong to internal/validate.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"integrator/internal/schema"
	"integrator/internal/source"
)

// MalformedRecordError reports a structural failure: a required field is
// missing or a value could not be coerced to its target type. The record is
// unusable and is dropped by the orchestrator; the run continues.
type MalformedRecordError struct {
	Ref   string // source ref of the offending record
	Field string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record %s: field %s: %v", e.Ref, e.Field, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// DefaultDateLayout parses dates of the form "2024-01-15", the format both
// source systems emit.
const DefaultDateLayout = "2006-01-02"

// Normalizer coerces raw records into typed entities.
// The zero value uses DefaultDateLayout.
type Normalizer struct {
	// DateLayout is the Go reference layout for order_date values.
	DateLayout string
}

// Customer normalizes one raw customer record.
// Required: customer_id, first_name, last_name, email. Contact fields pass
// through as-is (empty means absent).
func (n Normalizer) Customer(rec source.Record) (schema.Customer, error) {
	var c schema.Customer
	var err error

	if c.CustomerID, err = intField(rec, "customer_id"); err != nil {
		return schema.Customer{}, err
	}
	if c.FirstName, err = requiredString(rec, "first_name"); err != nil {
		return schema.Customer{}, err
	}
	if c.LastName, err = requiredString(rec, "last_name"); err != nil {
		return schema.Customer{}, err
	}
	if c.Email, err = requiredString(rec, "email"); err != nil {
		return schema.Customer{}, err
	}

	c.Phone = optionalString(rec, "phone")
	c.Address = optionalString(rec, "address")
	c.City = optionalString(rec, "city")
	c.State = optionalString(rec, "state")
	c.ZipCode = optionalString(rec, "zip_code")
	c.Country = optionalString(rec, "country")

	return c, nil
}

// Product normalizes one raw product record.
// Required: product_id, product_name, price, stock_quantity.
func (n Normalizer) Product(rec source.Record) (schema.Product, error) {
	var p schema.Product
	var err error

	if p.ProductID, err = intField(rec, "product_id"); err != nil {
		return schema.Product{}, err
	}
	if p.ProductName, err = requiredString(rec, "product_name"); err != nil {
		return schema.Product{}, err
	}
	if p.Price, err = decimalField(rec, "price"); err != nil {
		return schema.Product{}, err
	}
	if p.StockQuantity, err = intField(rec, "stock_quantity"); err != nil {
		return schema.Product{}, err
	}

	p.Description = optionalString(rec, "description")
	p.Category = optionalString(rec, "category")
	p.Supplier = optionalString(rec, "supplier")

	return p, nil
}

// Order normalizes one raw order record.
// Required: order_id, customer_id, product_id, order_date, quantity,
// unit_price. Status defaults to "completed" when absent.
func (n Normalizer) Order(rec source.Record) (schema.Order, error) {
	var o schema.Order
	var err error

	if o.OrderID, err = intField(rec, "order_id"); err != nil {
		return schema.Order{}, err
	}
	if o.CustomerID, err = intField(rec, "customer_id"); err != nil {
		return schema.Order{}, err
	}
	if o.ProductID, err = intField(rec, "product_id"); err != nil {
		return schema.Order{}, err
	}
	if o.OrderDate, err = n.dateField(rec, "order_date"); err != nil {
		return schema.Order{}, err
	}
	if o.Quantity, err = intField(rec, "quantity"); err != nil {
		return schema.Order{}, err
	}
	if o.UnitPrice, err = decimalField(rec, "unit_price"); err != nil {
		return schema.Order{}, err
	}

	o.Status = optionalString(rec, "status")
	if o.Status == "" {
		o.Status = schema.DefaultOrderStatus
	}

	return o, nil
}

func (n Normalizer) layout() string {
	if n.DateLayout != "" {
		return n.DateLayout
	}
	return DefaultDateLayout
}

func malformed(rec source.Record, field string, err error) *MalformedRecordError {
	return &MalformedRecordError{Ref: rec.Ref, Field: field, Err: err}
}

func requiredString(rec source.Record, field string) (string, error) {
	s, ok := rec.String(field)
	if !ok || strings.TrimSpace(s) == "" {
		return "", malformed(rec, field, fmt.Errorf("required field missing"))
	}
	return strings.TrimSpace(s), nil
}

func optionalString(rec source.Record, field string) string {
	s, _ := rec.String(field)
	return strings.TrimSpace(s)
}

func intField(rec source.Record, field string) (int64, error) {
	s, err := requiredString(rec, field)
	if err != nil {
		return 0, err
	}
	v, perr := strconv.ParseInt(s, 10, 64)
	if perr != nil {
		return 0, malformed(rec, field, fmt.Errorf("not an integer: %q", s))
	}
	return v, nil
}

func decimalField(rec source.Record, field string) (decimal.Decimal, error) {
	s, err := requiredString(rec, field)
	if err != nil {
		return decimal.Decimal{}, err
	}
	// Tolerate currency formatting that some exports carry.
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	v, perr := decimal.NewFromString(s)
	if perr != nil {
		return decimal.Decimal{}, malformed(rec, field, fmt.Errorf("not a number: %q", s))
	}
	return v, nil
}

func (n Normalizer) dateField(rec source.Record, field string) (time.Time, error) {
	s, err := requiredString(rec, field)
	if err != nil {
		return time.Time{}, err
	}
	t, perr := time.Parse(n.layout(), s)
	if perr != nil {
		return time.Time{}, malformed(rec, field, fmt.Errorf("bad date %q (layout %s)", s, n.layout()))
	}
	return t, nil
}
