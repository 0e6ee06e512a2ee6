// Package mssql implements storage.Store on SQL Server.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/shopspring/decimal"

	"integrator/internal/schema"
	"integrator/internal/storage"
)

// Store implements storage.Store for SQL Server. Money columns are
// DECIMAL(12,2); total_amount is a persisted computed column. Aggregate money
// values come back as VARCHAR so they scan into decimals without driver
// float conversion.
type Store struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New opens a connection pool and validates connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() { s.db.Close() }

func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range ddlStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mssql: ensure schema: %w", err)
		}
	}
	return nil
}

// ddlStatements returns the schema DDL. OBJECT_ID guards keep the
// statements idempotent; SQL Server has no CREATE TABLE IF NOT EXISTS.
func ddlStatements() []string {
	return []string{
		`IF OBJECT_ID('customers', 'U') IS NULL
CREATE TABLE customers (
  customer_id BIGINT PRIMARY KEY,
  first_name NVARCHAR(255) NOT NULL,
  last_name NVARCHAR(255) NOT NULL,
  email NVARCHAR(255) NOT NULL UNIQUE,
  phone NVARCHAR(64),
  address NVARCHAR(MAX),
  city NVARCHAR(255),
  state NVARCHAR(64),
  zip_code NVARCHAR(32),
  country NVARCHAR(255)
);`,
		`IF OBJECT_ID('products', 'U') IS NULL
CREATE TABLE products (
  product_id BIGINT PRIMARY KEY,
  product_name NVARCHAR(255) NOT NULL,
  description NVARCHAR(MAX),
  price DECIMAL(12,2) NOT NULL CHECK (price >= 0),
  stock_quantity INT NOT NULL CHECK (stock_quantity >= 0),
  category NVARCHAR(255),
  supplier NVARCHAR(255)
);`,
		`IF OBJECT_ID('orders', 'U') IS NULL
CREATE TABLE orders (
  order_id BIGINT PRIMARY KEY,
  customer_id BIGINT NOT NULL REFERENCES customers(customer_id) ON DELETE CASCADE,
  product_id BIGINT NOT NULL REFERENCES products(product_id) ON DELETE CASCADE,
  order_date DATE NOT NULL,
  quantity INT NOT NULL CHECK (quantity > 0),
  unit_price DECIMAL(12,2) NOT NULL CHECK (unit_price >= 0),
  total_amount AS (quantity * unit_price) PERSISTED,
  status NVARCHAR(32) NOT NULL DEFAULT 'completed'
);`,
	}
}

func (s *Store) InsertCustomer(ctx context.Context, c schema.Customer) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO customers (customer_id, first_name, last_name, email, phone, address, city, state, zip_code, country)
VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9, @p10)`,
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
VALUES (@p1, @p2, @p3, CONVERT(DECIMAL(12,2), @p4), @p5, @p6, @p7)`,
		p.ProductID, p.ProductName, storage.NullIfEmpty(p.Description),
		p.Price.String(), p.StockQuantity,
		storage.NullIfEmpty(p.Category), storage.NullIfEmpty(p.Supplier),
	)
	return err
}

func (s *Store) InsertOrder(ctx context.Context, o schema.Order) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO orders (order_id, customer_id, product_id, order_date, quantity, unit_price, status)
VALUES (@p1, @p2, @p3, @p4, @p5, CONVERT(DECIMAL(12,2), @p6), @p7)`,
		o.OrderID, o.CustomerID, o.ProductID,
		o.OrderDate, o.Quantity, o.UnitPrice.String(), o.Status,
	)
	return err
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) (int64, error) {
	return s.cascadeDelete(ctx,
		`DELETE FROM orders WHERE customer_id = @p1`,
		`DELETE FROM customers WHERE customer_id = @p1`,
		id,
	)
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	return s.cascadeDelete(ctx,
		`DELETE FROM orders WHERE product_id = @p1`,
		`DELETE FROM products WHERE product_id = @p1`,
		id,
	)
}

func (s *Store) cascadeDelete(ctx context.Context, delOrders, delParent string, id int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, delOrders, id)
	if err != nil {
		return 0, err
	}
	cascaded, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, delParent, id); err != nil {
		return 0, err
	}
	return cascaded, tx.Commit()
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT TOP 1 1 FROM customers WHERE email = @p1`, email)
}

func (s *Store) CustomerExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT TOP 1 1 FROM customers WHERE customer_id = @p1`, id)
}

func (s *Store) ProductExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT TOP 1 1 FROM products WHERE product_id = @p1`, id)
}

func (s *Store) OrderExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT TOP 1 1 FROM orders WHERE order_id = @p1`, id)
}

func (s *Store) exists(ctx context.Context, q string, arg any) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, q, arg).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Counts(ctx context.Context) (schema.StoreCounts, error) {
	var out schema.StoreCounts
	var revenue string
	err := s.db.QueryRowContext(ctx, `
SELECT
  (SELECT COUNT(*) FROM customers),
  (SELECT COUNT(*) FROM products),
  (SELECT COUNT(*) FROM orders),
  (SELECT CONVERT(VARCHAR(40), COALESCE(SUM(total_amount), 0)) FROM orders)`,
	).Scan(&out.Customers, &out.Products, &out.Orders, &revenue)
	if err != nil {
		return out, err
	}
	out.TotalRevenue, err = decimal.NewFromString(revenue)
	return out, err
}

const productSalesQuery = `
SELECT %s
  p.product_id,
  p.product_name,
  COALESCE(p.category, ''),
  COUNT(o.order_id),
  COALESCE(SUM(o.quantity), 0),
  CONVERT(VARCHAR(40), COALESCE(SUM(o.total_amount), 0)),
  CONVERT(VARCHAR(40), COALESCE(AVG(o.total_amount), 0))
FROM products p
LEFT JOIN orders o ON o.product_id = p.product_id
GROUP BY p.product_id, p.product_name, p.category`

func (s *Store) ProductSales(ctx context.Context) ([]schema.ProductSales, error) {
	q := fmt.Sprintf(productSalesQuery, "") + `
ORDER BY COALESCE(SUM(o.total_amount), 0) DESC, p.product_id ASC`
	return s.scanProductSales(ctx, q)
}

// topProductsQuery ranks by units sold; equal units fall back to
// product_id so the order is stable across runs.
func topProductsQuery() string {
	return fmt.Sprintf(productSalesQuery, "TOP (@p1)") + `
ORDER BY COALESCE(SUM(o.quantity), 0) DESC, p.product_id ASC`
}

func (s *Store) TopProducts(ctx context.Context, n int) ([]schema.ProductSales, error) {
	return s.scanProductSales(ctx, topProductsQuery(), n)
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
		var revenue, avg string
		if err := rows.Scan(
			&ps.ProductID, &ps.ProductName, &ps.Category,
			&ps.TotalOrders, &ps.TotalQuantitySold, &revenue, &avg,
		); err != nil {
			return nil, err
		}
		if ps.TotalRevenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, err
		}
		if ps.AverageOrderValue, err = decimal.NewFromString(avg); err != nil {
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
  CONVERT(VARCHAR(40), COALESCE(SUM(o.total_amount), 0)),
  CONVERT(VARCHAR(40), COALESCE(AVG(o.total_amount), 0))
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
		var revenue, avg string
		if err := rows.Scan(
			&cs.Category, &cs.ProductCount, &cs.TotalOrders,
			&cs.TotalQuantitySold, &revenue, &avg,
		); err != nil {
			return nil, err
		}
		if cs.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, err
		}
		if cs.AverageOrderValue, err = decimal.NewFromString(avg); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

const customerSpendQuery = `
SELECT
  c.customer_id,
  c.first_name + ' ' + c.last_name,
  c.email,
  COALESCE(c.city, ''),
  COALESCE(c.state, ''),
  COUNT(o.order_id),
  COALESCE(SUM(o.quantity), 0),
  CONVERT(VARCHAR(40), COALESCE(SUM(o.total_amount), 0))
FROM customers c
JOIN orders o ON o.customer_id = c.customer_id
GROUP BY c.customer_id, c.first_name, c.last_name, c.email, c.city, c.state`

func (s *Store) CustomerSpend(ctx context.Context) ([]schema.CustomerSpend, error) {
	return s.scanCustomerSpend(ctx, customerSpendQuery+`
ORDER BY COALESCE(SUM(o.total_amount), 0) DESC, c.customer_id ASC`)
}

func (s *Store) CustomersOverThreshold(ctx context.Context, min decimal.Decimal) ([]schema.CustomerSpend, error) {
	return s.scanCustomerSpend(ctx, customerSpendQuery+`
HAVING SUM(o.total_amount) > CONVERT(DECIMAL(14,2), @p1)
ORDER BY SUM(o.total_amount) DESC, c.customer_id ASC`, min.String())
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
		var spent string
		if err := rows.Scan(
			&cs.CustomerID, &cs.CustomerName, &cs.Email, &cs.City, &cs.State,
			&cs.TotalOrders, &cs.TotalItems, &spent,
		); err != nil {
			return nil, err
		}
		if cs.TotalSpent, err = decimal.NewFromString(spent); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}
