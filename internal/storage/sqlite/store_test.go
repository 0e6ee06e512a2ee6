package sqlite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"integrator/internal/schema"
	"integrator/internal/storage"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	st, err := New(context.Background(), storage.Config{Kind: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	t.Cleanup(st.Close)

	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() err=%v", err)
	}
	return st.(*Store)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func customer(id int64, email string) schema.Customer {
	return schema.Customer{
		CustomerID: id,
		FirstName:  "First",
		LastName:   "Last",
		Email:      email,
		City:       "Springfield",
		State:      "IL",
	}
}

func product(id int64, name, category, price string) schema.Product {
	return schema.Product{
		ProductID:     id,
		ProductName:   name,
		Price:         dec(price),
		StockQuantity: 10,
		Category:      category,
	}
}

func order(id, custID, prodID, qty int64, unitPrice string) schema.Order {
	return schema.Order{
		OrderID:    id,
		CustomerID: custID,
		ProductID:  prodID,
		OrderDate:  date("2024-01-15"),
		Quantity:   qty,
		UnitPrice:  dec(unitPrice),
		Status:     schema.DefaultOrderStatus,
	}
}

// seed loads one customer, two products and three orders against product 1
// (quantities 2, 3 and 5 at 10.00 each). Product 2 has no orders.
func seed(t *testing.T, st *Store) {
	t.Helper()
	ctx := context.Background()

	if err := st.InsertCustomer(ctx, customer(1, "one@example.com")); err != nil {
		t.Fatalf("InsertCustomer: %v", err)
	}
	if err := st.InsertProduct(ctx, product(1, "Laptop", "Electronics", "10.00")); err != nil {
		t.Fatalf("InsertProduct 1: %v", err)
	}
	if err := st.InsertProduct(ctx, product(2, "Desk", "Furniture", "250.00")); err != nil {
		t.Fatalf("InsertProduct 2: %v", err)
	}
	for i, qty := range []int64{2, 3, 5} {
		if err := st.InsertOrder(ctx, order(int64(100+i), 1, 1, qty, "10.00")); err != nil {
			t.Fatalf("InsertOrder %d: %v", 100+i, err)
		}
	}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("second EnsureSchema() err=%v", err)
	}
}

func TestGeneratedTotalAmount(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	seed(t, st)

	var total decimal.Decimal
	err := st.db.QueryRowContext(context.Background(),
		`SELECT total_amount FROM orders WHERE order_id = 101`).Scan(&total)
	if err != nil {
		t.Fatalf("query total_amount: %v", err)
	}
	if !total.Equal(dec("30")) {
		t.Fatalf("total_amount=%s, want 30 (3 * 10.00)", total)
	}
}

func TestInsertOrder_CannotBindTotalAmount(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	seed(t, st)

	// The column is generated; writing it directly must fail.
	_, err := st.db.ExecContext(context.Background(), `
INSERT INTO orders (order_id, customer_id, product_id, order_date, quantity, unit_price, total_amount, status)
VALUES (999, 1, 1, '2024-01-15', 1, 10, 42, 'completed')`)
	if err == nil {
		t.Fatalf("direct insert into generated column succeeded, want error")
	}
}

func TestUniqueEmailEnforced(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	ctx := context.Background()

	if err := st.InsertCustomer(ctx, customer(1, "dup@example.com")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := st.InsertCustomer(ctx, customer(2, "dup@example.com")); err == nil {
		t.Fatalf("duplicate email insert succeeded, want constraint error")
	}
}

func TestCheckConstraints(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	ctx := context.Background()

	if err := st.InsertProduct(ctx, product(1, "Broken", "", "-5.00")); err == nil {
		t.Fatalf("negative price insert succeeded, want CHECK violation")
	}

	seed(t, st)
	bad := order(500, 1, 1, 0, "10.00")
	if err := st.InsertOrder(ctx, bad); err == nil {
		t.Fatalf("zero quantity insert succeeded, want CHECK violation")
	}
}

func TestExistenceChecks(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	seed(t, st)
	ctx := context.Background()

	checks := []struct {
		name string
		got  func() (bool, error)
		want bool
	}{
		{"email_present", func() (bool, error) { return st.EmailExists(ctx, "one@example.com") }, true},
		{"email_absent", func() (bool, error) { return st.EmailExists(ctx, "nobody@example.com") }, false},
		{"customer_present", func() (bool, error) { return st.CustomerExists(ctx, 1) }, true},
		{"customer_absent", func() (bool, error) { return st.CustomerExists(ctx, 999) }, false},
		{"product_present", func() (bool, error) { return st.ProductExists(ctx, 2) }, true},
		{"product_absent", func() (bool, error) { return st.ProductExists(ctx, 999) }, false},
		{"order_present", func() (bool, error) { return st.OrderExists(ctx, 100) }, true},
		{"order_absent", func() (bool, error) { return st.OrderExists(ctx, 999) }, false},
	}
	for _, c := range checks {
		got, err := c.got()
		if err != nil {
			t.Fatalf("%s: err=%v", c.name, err)
		}
		if got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestCounts(t *testing.T) {
	t.Parallel()

	st := newStore(t)

	// Empty store reports zeros, not errors.
	counts, err := st.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts() on empty store: %v", err)
	}
	if counts.Customers != 0 || counts.Orders != 0 || !counts.TotalRevenue.IsZero() {
		t.Fatalf("empty counts=%+v", counts)
	}

	seed(t, st)
	counts, err = st.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts() err=%v", err)
	}
	if counts.Customers != 1 || counts.Products != 2 || counts.Orders != 3 {
		t.Fatalf("counts=%+v", counts)
	}
	if !counts.TotalRevenue.Equal(dec("100")) {
		t.Fatalf("TotalRevenue=%s, want 100", counts.TotalRevenue)
	}
}

func TestProductSales(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	seed(t, st)

	sales, err := st.ProductSales(context.Background())
	if err != nil {
		t.Fatalf("ProductSales() err=%v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("len=%d, want 2 (zero-order product included)", len(sales))
	}

	// Highest revenue first.
	laptop := sales[0]
	if laptop.ProductID != 1 {
		t.Fatalf("first row product_id=%d, want 1", laptop.ProductID)
	}
	if laptop.TotalOrders != 3 || laptop.TotalQuantitySold != 10 {
		t.Fatalf("laptop orders=%d qty=%d, want 3/10", laptop.TotalOrders, laptop.TotalQuantitySold)
	}
	if !laptop.TotalRevenue.Equal(dec("100")) {
		t.Fatalf("laptop revenue=%s, want 100", laptop.TotalRevenue)
	}

	desk := sales[1]
	if desk.ProductID != 2 || desk.TotalOrders != 0 || !desk.TotalRevenue.IsZero() {
		t.Fatalf("zero-order product row=%+v", desk)
	}
}

func TestTopProducts(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	seed(t, st)
	ctx := context.Background()

	// A second seller with fewer units.
	if err := st.InsertOrder(ctx, order(200, 1, 2, 1, "250.00")); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}

	top, err := st.TopProducts(ctx, 1)
	if err != nil {
		t.Fatalf("TopProducts() err=%v", err)
	}
	if len(top) != 1 {
		t.Fatalf("len=%d, want limit 1 honored", len(top))
	}
	// Quantity ranks, not revenue: laptop sold 10 units, desk 1 unit for
	// more revenue.
	if top[0].ProductID != 1 {
		t.Fatalf("top product_id=%d, want 1 (by units)", top[0].ProductID)
	}
}

func TestTopProducts_TieBreaksByProductID(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	ctx := context.Background()

	if err := st.InsertCustomer(ctx, customer(1, "one@example.com")); err != nil {
		t.Fatalf("InsertCustomer: %v", err)
	}
	// Insert out of id order so the ranking cannot ride on insert order.
	for _, id := range []int64{7, 3, 5} {
		if err := st.InsertProduct(ctx, product(id, "Widget", "Gadgets", "10.00")); err != nil {
			t.Fatalf("InsertProduct %d: %v", id, err)
		}
	}
	// Four units sold each.
	orders := []schema.Order{
		order(100, 1, 7, 4, "10.00"),
		order(101, 1, 3, 1, "10.00"),
		order(102, 1, 3, 3, "10.00"),
		order(103, 1, 5, 4, "10.00"),
	}
	for _, o := range orders {
		if err := st.InsertOrder(ctx, o); err != nil {
			t.Fatalf("InsertOrder %d: %v", o.OrderID, err)
		}
	}

	top, err := st.TopProducts(ctx, 3)
	if err != nil {
		t.Fatalf("TopProducts() err=%v", err)
	}
	if len(top) != 3 {
		t.Fatalf("len=%d, want 3", len(top))
	}
	for i, want := range []int64{3, 5, 7} {
		if top[i].ProductID != want {
			t.Fatalf("rank %d product_id=%d, want %d (ties resolve by product_id ascending)",
				i+1, top[i].ProductID, want)
		}
	}
}

func TestCategorySummary(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	seed(t, st)

	cats, err := st.CategorySummary(context.Background())
	if err != nil {
		t.Fatalf("CategorySummary() err=%v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("len=%d, want 2", len(cats))
	}

	if cats[0].Category != "Electronics" {
		t.Fatalf("first category=%q, want Electronics (highest revenue)", cats[0].Category)
	}
	if cats[0].ProductCount != 1 || cats[0].TotalOrders != 3 {
		t.Fatalf("electronics row=%+v", cats[0])
	}
	if !cats[0].Revenue.Equal(dec("100")) {
		t.Fatalf("electronics revenue=%s, want 100", cats[0].Revenue)
	}

	// Furniture has a product but no orders: present with zero revenue.
	if cats[1].Category != "Furniture" || !cats[1].Revenue.IsZero() {
		t.Fatalf("furniture row=%+v", cats[1])
	}
}

func TestCustomerSpend(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	seed(t, st)
	ctx := context.Background()

	// A customer with no orders must not appear.
	if err := st.InsertCustomer(ctx, customer(2, "quiet@example.com")); err != nil {
		t.Fatalf("InsertCustomer: %v", err)
	}

	spend, err := st.CustomerSpend(ctx)
	if err != nil {
		t.Fatalf("CustomerSpend() err=%v", err)
	}
	if len(spend) != 1 {
		t.Fatalf("len=%d, want 1 (zero-order customer omitted)", len(spend))
	}
	cs := spend[0]
	if cs.CustomerID != 1 || cs.CustomerName != "First Last" {
		t.Fatalf("row=%+v", cs)
	}
	if cs.TotalOrders != 3 || cs.TotalItems != 10 || !cs.TotalSpent.Equal(dec("100")) {
		t.Fatalf("row=%+v", cs)
	}
}

func TestCustomersOverThreshold(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	seed(t, st)
	ctx := context.Background()

	over, err := st.CustomersOverThreshold(ctx, dec("50"))
	if err != nil {
		t.Fatalf("CustomersOverThreshold() err=%v", err)
	}
	if len(over) != 1 || over[0].CustomerID != 1 {
		t.Fatalf("over 50 = %+v, want customer 1", over)
	}

	// Strictly greater: spend of exactly 100 does not pass 100.
	over, err = st.CustomersOverThreshold(ctx, dec("100"))
	if err != nil {
		t.Fatalf("CustomersOverThreshold() err=%v", err)
	}
	if len(over) != 0 {
		t.Fatalf("over 100 = %+v, want empty", over)
	}
}

func TestDeleteCustomer_Cascades(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	seed(t, st)
	ctx := context.Background()

	cascaded, err := st.DeleteCustomer(ctx, 1)
	if err != nil {
		t.Fatalf("DeleteCustomer() err=%v", err)
	}
	if cascaded != 3 {
		t.Fatalf("cascaded=%d, want 3 orders removed", cascaded)
	}

	counts, err := st.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() err=%v", err)
	}
	if counts.Customers != 0 || counts.Orders != 0 {
		t.Fatalf("counts after delete=%+v", counts)
	}
}

func TestDeleteProduct_Cascades(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	seed(t, st)
	ctx := context.Background()

	cascaded, err := st.DeleteProduct(ctx, 1)
	if err != nil {
		t.Fatalf("DeleteProduct() err=%v", err)
	}
	if cascaded != 3 {
		t.Fatalf("cascaded=%d, want 3", cascaded)
	}

	// The untouched product remains.
	ok, err := st.ProductExists(ctx, 2)
	if err != nil || !ok {
		t.Fatalf("ProductExists(2)=(%v,%v), want true", ok, err)
	}
}

func TestOrderInsert_ForeignKeyEnforced(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	seed(t, st)

	err := st.InsertOrder(context.Background(), order(300, 999, 1, 1, "10.00"))
	if err == nil {
		t.Fatalf("orphan order insert succeeded, want FK violation")
	}
	if !strings.Contains(strings.ToUpper(err.Error()), "FOREIGN KEY") {
		t.Logf("non-standard FK error text: %v", err)
	}
}

func TestDDLStatements(t *testing.T) {
	t.Parallel()

	joined := strings.Join(ddlStatements(), "\n")
	for _, want := range []string{
		"GENERATED ALWAYS AS (quantity * unit_price) STORED",
		"ON DELETE CASCADE",
		"email TEXT NOT NULL UNIQUE",
		"CHECK (quantity > 0)",
		"CHECK (price >= 0)",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("ddl missing %q", want)
		}
	}
}
