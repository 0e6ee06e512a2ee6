// Package sqlite implements storage.Store on an embedded SQLite database via
// modernc.org/sqlite (no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"integrator/internal/schema"
	"integrator/internal/storage"
)

// Store implements storage.Store for SQLite.
//
// Key design points vs the server backends:
//   - SQLite has no DATE type; order_date is stored as "2006-01-02" TEXT,
//     which sorts and compares correctly and round-trips without timezone
//     surprises.
//   - Foreign-key enforcement is a per-connection pragma, so the pool is
//     capped at one connection and the pragma is applied once at open. One
//     connection also matches the single-writer batch model.
//   - total_amount uses a STORED generated column (SQLite >= 3.31).
type Store struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

// New opens (or creates) the SQLite database at cfg.DSN.
func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() { _ = s.db.Close() }

// EnsureSchema creates the three tables if absent. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range ddlStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: ensure schema: %w", err)
		}
	}
	return nil
}

// ddlStatements returns the schema DDL. Pure so the generated-column and
// cascade clauses can be unit tested without a database.
func ddlStatements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS customers (
  customer_id INTEGER PRIMARY KEY,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  phone TEXT,
  address TEXT,
  city TEXT,
  state TEXT,
  zip_code TEXT,
  country TEXT
);`,
		`CREATE TABLE IF NOT EXISTS products (
  product_id INTEGER PRIMARY KEY,
  product_name TEXT NOT NULL,
  description TEXT,
  price NUMERIC NOT NULL CHECK (price >= 0),
  stock_quantity INTEGER NOT NULL CHECK (stock_quantity >= 0),
  category TEXT,
  supplier TEXT
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  order_id INTEGER PRIMARY KEY,
  customer_id INTEGER NOT NULL REFERENCES customers(customer_id) ON DELETE CASCADE,
  product_id INTEGER NOT NULL REFERENCES products(product_id) ON DELETE CASCADE,
  order_date TEXT NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  unit_price NUMERIC NOT NULL CHECK (unit_price >= 0),
  total_amount NUMERIC GENERATED ALWAYS AS (quantity * unit_price) STORED,
  status TEXT NOT NULL DEFAULT 'completed'
);`,
	}
}

const dateLayout = "2006-01-02"

func (s *Store) InsertCustomer(ctx context.Context, c schema.Customer) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO customers (customer_id, first_name, last_name, email, phone, address, city, state, zip_code, country)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CustomerID, c.FirstName, c.LastName, c.Email,
		storage.NullIfEmpty(c.Phone), storage.NullIfEmpty(c.Address),
		storage.NullIfEmpty(c.City), storage.NullIfEmpty(c.State),
		storage.NullIfEmpty(c.ZipCode), storage.NullIfEmpty(c.Country),
	)
	return err
}

func (s *Store) InsertProduct(ctx context.Context, p schema.Product) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO products (product_id, product_name, description, price, stock_quantity, category, supplier)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ProductID, p.ProductName, storage.NullIfEmpty(p.Description),
		p.Price, p.StockQuantity,
		storage.NullIfEmpty(p.Category), storage.NullIfEmpty(p.Supplier),
	)
	return err
}

// InsertOrder writes one order. total_amount is generated by the database;
// it is never bound here.
func (s *Store) InsertOrder(ctx context.Context, o schema.Order) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO orders (order_id, customer_id, product_id, order_date, quantity, unit_price, status)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.CustomerID, o.ProductID,
		o.OrderDate.Format(dateLayout), o.Quantity, o.UnitPrice, o.Status,
	)
	return err
}

// DeleteCustomer deletes the customer's orders first, then the customer. The
// explicit cascade keeps the dependent-row count observable even though the
// schema also declares ON DELETE CASCADE.
func (s *Store) DeleteCustomer(ctx context.Context, id int64) (int64, error) {
	return s.cascadeDelete(ctx,
		`DELETE FROM orders WHERE customer_id = ?`,
		`DELETE FROM customers WHERE customer_id = ?`,
		id,
	)
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	return s.cascadeDelete(ctx,
		`DELETE FROM orders WHERE product_id = ?`,
		`DELETE FROM products WHERE product_id = ?`,
		id,
	)
}

func (s *Store) cascadeDelete(ctx context.Context, delOrders, delParent string, id int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, delOrders, id)
	if err != nil {
		return 0, err
	}
	cascaded, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, delParent, id); err != nil {
		return 0, err
	}
	return cascaded, tx.Commit()
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM customers WHERE email = ? LIMIT 1`, email)
}

func (s *Store) CustomerExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM customers WHERE customer_id = ? LIMIT 1`, id)
}

func (s *Store) ProductExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM products WHERE product_id = ? LIMIT 1`, id)
}

func (s *Store) OrderExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM orders WHERE order_id = ? LIMIT 1`, id)
}

func (s *Store) exists(ctx context.Context, q string, arg any) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, q, arg).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Counts(ctx context.Context) (schema.StoreCounts, error) {
	var out schema.StoreCounts
	err := s.db.QueryRowContext(ctx, `
SELECT
  (SELECT COUNT(*) FROM customers),
  (SELECT COUNT(*) FROM products),
  (SELECT COUNT(*) FROM orders),
  (SELECT COALESCE(SUM(total_amount), 0) FROM orders)`,
	).Scan(&out.Customers, &out.Products, &out.Orders, &out.TotalRevenue)
	return out, err
}

// productSalesQuery aggregates orders per product, keeping zero-order
// products via LEFT JOIN. Revenue-descending with product_id as the
// deterministic tiebreak.
const productSalesQuery = `
SELECT
  p.product_id,
  p.product_name,
  COALESCE(p.category, ''),
  COUNT(o.order_id),
  COALESCE(SUM(o.quantity), 0),
  COALESCE(SUM(o.total_amount), 0),
  COALESCE(AVG(o.total_amount), 0)
FROM products p
LEFT JOIN orders o ON o.product_id = p.product_id
GROUP BY p.product_id, p.product_name, p.category`

func (s *Store) ProductSales(ctx context.Context) ([]schema.ProductSales, error) {
	return s.scanProductSales(ctx, productSalesQuery+`
ORDER BY COALESCE(SUM(o.total_amount), 0) DESC, p.product_id ASC`)
}

// TopProducts ranks by units sold descending; ties break on product_id
// ascending so rankings are stable across runs.
func (s *Store) TopProducts(ctx context.Context, n int) ([]schema.ProductSales, error) {
	return s.scanProductSales(ctx, productSalesQuery+`
ORDER BY COALESCE(SUM(o.quantity), 0) DESC, p.product_id ASC
LIMIT ?`, n)
}

func (s *Store) scanProductSales(ctx context.Context, q string, args ...any) ([]schema.ProductSales, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.ProductSales
	for rows.Next() {
		var ps schema.ProductSales
		if err := rows.Scan(
			&ps.ProductID, &ps.ProductName, &ps.Category,
			&ps.TotalOrders, &ps.TotalQuantitySold, &ps.TotalRevenue, &ps.AverageOrderValue,
		); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

func (s *Store) CategorySummary(ctx context.Context) ([]schema.CategorySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT
  COALESCE(p.category, ''),
  COUNT(DISTINCT p.product_id),
  COUNT(o.order_id),
  COALESCE(SUM(o.quantity), 0),
  COALESCE(SUM(o.total_amount), 0),
  COALESCE(AVG(o.total_amount), 0)
FROM products p
LEFT JOIN orders o ON o.product_id = p.product_id
GROUP BY p.category
ORDER BY COALESCE(SUM(o.total_amount), 0) DESC, COALESCE(p.category, '') ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.CategorySummary
	for rows.Next() {
		var cs schema.CategorySummary
		if err := rows.Scan(
			&cs.Category, &cs.ProductCount, &cs.TotalOrders,
			&cs.TotalQuantitySold, &cs.Revenue, &cs.AverageOrderValue,
		); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

const customerSpendQuery = `
SELECT
  c.customer_id,
  c.first_name || ' ' || c.last_name,
  c.email,
  COALESCE(c.city, ''),
  COALESCE(c.state, ''),
  COUNT(o.order_id),
  COALESCE(SUM(o.quantity), 0),
  COALESCE(SUM(o.total_amount), 0)
FROM customers c
JOIN orders o ON o.customer_id = c.customer_id
GROUP BY c.customer_id, c.first_name, c.last_name, c.email, c.city, c.state`

func (s *Store) CustomerSpend(ctx context.Context) ([]schema.CustomerSpend, error) {
	return s.scanCustomerSpend(ctx, customerSpendQuery+`
ORDER BY COALESCE(SUM(o.total_amount), 0) DESC, c.customer_id ASC`)
}

func (s *Store) CustomersOverThreshold(ctx context.Context, min decimal.Decimal) ([]schema.CustomerSpend, error) {
	// Bind as float: a text-typed parameter would compare under SQLite's
	// type ordering (numeric < text) and match nothing.
	return s.scanCustomerSpend(ctx, customerSpendQuery+`
HAVING SUM(o.total_amount) > ?
ORDER BY SUM(o.total_amount) DESC, c.customer_id ASC`, min.InexactFloat64())
}

func (s *Store) scanCustomerSpend(ctx context.Context, q string, args ...any) ([]schema.CustomerSpend, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.CustomerSpend
	for rows.Next() {
		var cs schema.CustomerSpend
		if err := rows.Scan(
			&cs.CustomerID, &cs.CustomerName, &cs.Email, &cs.City, &cs.State,
			&cs.TotalOrders, &cs.TotalItems, &cs.TotalSpent,
		); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}
