package mssql

import (
	"strings"
	"testing"
)

func TestDDLStatements(t *testing.T) {
	t.Parallel()

	stmts := ddlStatements()
	if len(stmts) != 3 {
		t.Fatalf("len=%d, want 3 tables", len(stmts))
	}

	joined := strings.Join(stmts, "\n")
	for _, want := range []string{
		// SQL Server has no CREATE TABLE IF NOT EXISTS; the guard makes
		// EnsureSchema idempotent.
		"IF OBJECT_ID('customers', 'U') IS NULL",
		"IF OBJECT_ID('products', 'U') IS NULL",
		"IF OBJECT_ID('orders', 'U') IS NULL",
		"email NVARCHAR(255) NOT NULL UNIQUE",
		"AS (quantity * unit_price) PERSISTED",
		"REFERENCES customers(customer_id) ON DELETE CASCADE",
		"CHECK (price >= 0)",
		"CHECK (quantity > 0)",
		"order_date DATE NOT NULL",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("ddl missing %q", want)
		}
	}
}

func TestTopProductsQueryTieBreak(t *testing.T) {
	t.Parallel()

	q := topProductsQuery()

	// Units sold ranks first; equal units resolve by product_id ascending.
	want := "ORDER BY COALESCE(SUM(o.quantity), 0) DESC, p.product_id ASC"
	if !strings.Contains(q, want) {
		t.Fatalf("query missing %q:\n%s", want, q)
	}
	if !strings.Contains(q, "TOP (@p1)") {
		t.Fatalf("query missing row limit:\n%s", q)
	}
}
