// Package postgres implements storage.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"integrator/internal/schema"
	"integrator/internal/storage"
)

// Store implements storage.Store for Postgres.
//
// Money columns are NUMERIC(12,2); aggregate money values are selected as
// text so they scan losslessly into decimals regardless of pgx codec
// configuration. order_date is a DATE.
type Store struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New connects a pool and validates connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range ddlStatements() {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}

// ddlStatements returns the schema DDL. Pure for unit testing.
func ddlStatements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS customers (
  customer_id BIGINT PRIMARY KEY,
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
  product_id BIGINT PRIMARY KEY,
  product_name TEXT NOT NULL,
  description TEXT,
  price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
  stock_quantity INTEGER NOT NULL CHECK (stock_quantity >= 0),
  category TEXT,
  supplier TEXT
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  order_id BIGINT PRIMARY KEY,
  customer_id BIGINT NOT NULL REFERENCES customers(customer_id) ON DELETE CASCADE,
  product_id BIGINT NOT NULL REFERENCES products(product_id) ON DELETE CASCADE,
  order_date DATE NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  unit_price NUMERIC(12,2) NOT NULL CHECK (unit_price >= 0),
  total_amount NUMERIC(14,2) GENERATED ALWAYS AS (quantity * unit_price) STORED,
  status TEXT NOT NULL DEFAULT 'completed'
);`,
	}
}

func (s *Store) InsertCustomer(ctx context.Context, c schema.Customer) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO customers (customer_id, first_name, last_name, email, phone, address, city, state, zip_code, country)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.CustomerID, c.FirstName, c.LastName, c.Email,
		storage.NullIfEmpty(c.Phone), storage.NullIfEmpty(c.Address),
		storage.NullIfEmpty(c.City), storage.NullIfEmpty(c.State),
		storage.NullIfEmpty(c.ZipCode), storage.NullIfEmpty(c.Country),
	)
	return err
}

func (s *Store) InsertProduct(ctx context.Context, p schema.Product) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO products (product_id, product_name, description, price, stock_quantity, category, supplier)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)`,
		p.ProductID, p.ProductName, storage.NullIfEmpty(p.Description),
		p.Price.String(), p.StockQuantity,
		storage.NullIfEmpty(p.Category), storage.NullIfEmpty(p.Supplier),
	)
	return err
}

func (s *Store) InsertOrder(ctx context.Context, o schema.Order) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO orders (order_id, customer_id, product_id, order_date, quantity, unit_price, status)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)`,
		o.OrderID, o.CustomerID, o.ProductID,
		o.OrderDate, o.Quantity, o.UnitPrice.String(), o.Status,
	)
	return err
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) (int64, error) {
	return s.cascadeDelete(ctx,
		`DELETE FROM orders WHERE customer_id = $1`,
		`DELETE FROM customers WHERE customer_id = $1`,
		id,
	)
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	return s.cascadeDelete(ctx,
		`DELETE FROM orders WHERE product_id = $1`,
		`DELETE FROM products WHERE product_id = $1`,
		id,
	)
}

func (s *Store) cascadeDelete(ctx context.Context, delOrders, delParent string, id int64) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmd, err := tx.Exec(ctx, delOrders, id)
	if err != nil {
		return 0, err
	}
	cascaded := cmd.RowsAffected()

	if _, err := tx.Exec(ctx, delParent, id); err != nil {
		return 0, err
	}
	return cascaded, tx.Commit(ctx)
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM customers WHERE email = $1 LIMIT 1`, email)
}

func (s *Store) CustomerExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM customers WHERE customer_id = $1 LIMIT 1`, id)
}

func (s *Store) ProductExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM products WHERE product_id = $1 LIMIT 1`, id)
}

func (s *Store) OrderExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM orders WHERE order_id = $1 LIMIT 1`, id)
}

func (s *Store) exists(ctx context.Context, q string, arg any) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, q, arg).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
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
	err := s.pool.QueryRow(ctx, `
SELECT
  (SELECT COUNT(*) FROM customers),
  (SELECT COUNT(*) FROM products),
  (SELECT COUNT(*) FROM orders),
  (SELECT COALESCE(SUM(total_amount), 0)::text FROM orders)`,
	).Scan(&out.Customers, &out.Products, &out.Orders, &revenue)
	if err != nil {
		return out, err
	}
	out.TotalRevenue, err = decimal.NewFromString(revenue)
	return out, err
}

const productSalesQuery = `
SELECT
  p.product_id,
  p.product_name,
  COALESCE(p.category, ''),
  COUNT(o.order_id),
  COALESCE(SUM(o.quantity), 0),
  COALESCE(SUM(o.total_amount), 0)::text,
  COALESCE(AVG(o.total_amount), 0)::text
FROM products p
LEFT JOIN orders o ON o.product_id = p.product_id
GROUP BY p.product_id, p.product_name, p.category`

func (s *Store) ProductSales(ctx context.Context) ([]schema.ProductSales, error) {
	return s.scanProductSales(ctx, productSalesQuery+`
ORDER BY COALESCE(SUM(o.total_amount), 0) DESC, p.product_id ASC`)
}

// Ranking is by units sold; equal units fall back to product_id so the
// order is stable across runs.
const topProductsQuery = productSalesQuery + `
ORDER BY COALESCE(SUM(o.quantity), 0) DESC, p.product_id ASC
LIMIT $1`

func (s *Store) TopProducts(ctx context.Context, n int) ([]schema.ProductSales, error) {
	return s.scanProductSales(ctx, topProductsQuery, n)
}

func (s *Store) scanProductSales(ctx context.Context, q string, args ...any) ([]schema.ProductSales, error) {
	rows, err := s.pool.Query(ctx, q, args...)
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
	rows, err := s.pool.Query(ctx, `
SELECT
  COALESCE(p.category, ''),
  COUNT(DISTINCT p.product_id),
  COUNT(o.order_id),
  COALESCE(SUM(o.quantity), 0),
  COALESCE(SUM(o.total_amount), 0)::text,
  COALESCE(AVG(o.total_amount), 0)::text
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
  c.first_name || ' ' || c.last_name,
  c.email,
  COALESCE(c.city, ''),
  COALESCE(c.state, ''),
  COUNT(o.order_id),
  COALESCE(SUM(o.quantity), 0),
  COALESCE(SUM(o.total_amount), 0)::text
FROM customers c
JOIN orders o ON o.customer_id = c.customer_id
GROUP BY c.customer_id, c.first_name, c.last_name, c.email, c.city, c.state`

func (s *Store) CustomerSpend(ctx context.Context) ([]schema.CustomerSpend, error) {
	return s.scanCustomerSpend(ctx, customerSpendQuery+`
ORDER BY COALESCE(SUM(o.total_amount), 0) DESC, c.customer_id ASC`)
}

func (s *Store) CustomersOverThreshold(ctx context.Context, min decimal.Decimal) ([]schema.CustomerSpend, error) {
	return s.scanCustomerSpend(ctx, customerSpendQuery+`
HAVING SUM(o.total_amount) > $1::numeric
ORDER BY SUM(o.total_amount) DESC, c.customer_id ASC`, min.String())
}

func (s *Store) scanCustomerSpend(ctx context.Context, q string, args ...any) ([]schema.CustomerSpend, error) {
	rows, err := s.pool.Query(ctx, q, args...)
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
