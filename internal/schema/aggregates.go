package schema

import "github.com/shopspring/decimal"

// Aggregation row types returned by the storage backends. Each is a
// deterministic function of stored state; ordering is fixed by the queries
// that produce them (see storage backend docs).

// ProductSales is one row of the per-product sales aggregation.
// Products with no orders appear with zero counts and zero revenue.
type ProductSales struct {
	ProductID         int64           `json:"product_id"`
	ProductName       string          `json:"product_name"`
	Category          string          `json:"category"`
	TotalOrders       int64           `json:"total_orders"`
	TotalQuantitySold int64           `json:"total_quantity_sold"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

// CategorySummary groups ProductSales by category. Categories whose products
// have no orders report zero revenue, not an absent row.
type CategorySummary struct {
	Category          string          `json:"category"`
	ProductCount      int64           `json:"product_count"`
	TotalOrders       int64           `json:"total_orders"`
	TotalQuantitySold int64           `json:"total_quantity_sold"`
	Revenue           decimal.Decimal `json:"category_revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

// CustomerSpend is one row of the per-customer spend aggregation. Customers
// with zero orders are omitted.
type CustomerSpend struct {
	CustomerID   int64           `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Email        string          `json:"email"`
	City         string          `json:"city"`
	State        string          `json:"state"`
	TotalOrders  int64           `json:"total_orders"`
	TotalItems   int64           `json:"total_items"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
}

// StoreCounts is the executive-summary block: row counts per table plus the
// revenue total over all orders.
type StoreCounts struct {
	Customers    int64           `json:"customers"`
	Products     int64           `json:"products"`
	Orders       int64           `json:"orders"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}
