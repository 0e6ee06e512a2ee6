// Package validate enforces the semantic rules a normalized record must pass
// before storage: field constraints, uniqueness, and referential existence.
//
// A failed rule is not an error. Validation returns a *schema.Rejection
// carrying a stable reason code; the error return is reserved for lookup
// failures (storage trouble), which are fatal to the run.
package validate

import (
	"context"
	"fmt"
	"strings"

	"integrator/internal/schema"
)

// Lookup is the read capability validation needs against already-accepted
// records. The storage backends satisfy it, so rules see exactly the rows
// earlier in the run wrote.
type Lookup interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	CustomerExists(ctx context.Context, id int64) (bool, error)
	ProductExists(ctx context.Context, id int64) (bool, error)
	OrderExists(ctx context.Context, id int64) (bool, error)
}

// Validator applies the acceptance rules for all three entity kinds.
type Validator struct {
	Lookup Lookup
}

// ValidEmail reports whether s has an acceptable address shape: exactly one
// '@' with non-empty local and domain parts. Deliverability is out of scope.
func ValidEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return false
	}
	if strings.IndexByte(s[at+1:], '@') >= 0 {
		return false
	}
	return true
}

func reject(ref string, reason schema.Reason, format string, v ...any) *schema.Rejection {
	return &schema.Rejection{SourceRef: ref, Reason: reason, Detail: fmt.Sprintf(format, v...)}
}

// Customer decides accept/reject for one normalized customer. ref identifies
// the source record in the rejection.
//
// Rules, in order:
//   - email shape
//   - customer_id not already stored (CONSTRAINT_VIOLATION)
//   - email not already stored (DUPLICATE_EMAIL)
//
// The duplicate-email check runs against stored rows, so within one stream
// the first record with an email wins and later ones are rejected.
func (v Validator) Customer(ctx context.Context, ref string, c schema.Customer) (*schema.Rejection, error) {
	if !ValidEmail(c.Email) {
		return reject(ref, schema.ReasonConstraintViolation, "invalid email %q", c.Email), nil
	}

	exists, err := v.Lookup.CustomerExists(ctx, c.CustomerID)
	if err != nil {
		return nil, err
	}
	if exists {
		return reject(ref, schema.ReasonConstraintViolation, "customer_id %d already exists", c.CustomerID), nil
	}

	dup, err := v.Lookup.EmailExists(ctx, c.Email)
	if err != nil {
		return nil, err
	}
	if dup {
		return reject(ref, schema.ReasonDuplicateEmail, "email %q already exists", c.Email), nil
	}

	return nil, nil
}

// Product decides accept/reject for one normalized product.
func (v Validator) Product(ctx context.Context, ref string, p schema.Product) (*schema.Rejection, error) {
	if p.Price.IsNegative() {
		return reject(ref, schema.ReasonConstraintViolation, "negative price %s", p.Price), nil
	}
	if p.StockQuantity < 0 {
		return reject(ref, schema.ReasonConstraintViolation, "negative stock_quantity %d", p.StockQuantity), nil
	}

	exists, err := v.Lookup.ProductExists(ctx, p.ProductID)
	if err != nil {
		return nil, err
	}
	if exists {
		return reject(ref, schema.ReasonConstraintViolation, "product_id %d already exists", p.ProductID), nil
	}

	return nil, nil
}

// Order decides accept/reject for one normalized order.
//
// The referenced customer and product must already be stored; both are
// checked so the rejection detail names every missing reference. The total
// is recomputed here so the derived-value invariant holds regardless of how
// the backend computes its column.
func (v Validator) Order(ctx context.Context, ref string, o schema.Order) (*schema.Rejection, error) {
	if o.Quantity <= 0 {
		return reject(ref, schema.ReasonConstraintViolation, "quantity %d must be > 0", o.Quantity), nil
	}
	if o.UnitPrice.IsNegative() {
		return reject(ref, schema.ReasonConstraintViolation, "negative unit_price %s", o.UnitPrice), nil
	}
	if o.TotalAmount().IsNegative() {
		return reject(ref, schema.ReasonConstraintViolation, "negative total_amount %s", o.TotalAmount()), nil
	}

	exists, err := v.Lookup.OrderExists(ctx, o.OrderID)
	if err != nil {
		return nil, err
	}
	if exists {
		return reject(ref, schema.ReasonConstraintViolation, "order_id %d already exists", o.OrderID), nil
	}

	var missing []string
	ok, err := v.Lookup.CustomerExists(ctx, o.CustomerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		missing = append(missing, fmt.Sprintf("customer_id %d", o.CustomerID))
	}

	ok, err = v.Lookup.ProductExists(ctx, o.ProductID)
	if err != nil {
		return nil, err
	}
	if !ok {
		missing = append(missing, fmt.Sprintf("product_id %d", o.ProductID))
	}

	if len(missing) > 0 {
		return reject(ref, schema.ReasonMissingReference, "no such %s", strings.Join(missing, ", ")), nil
	}

	return nil, nil
}
