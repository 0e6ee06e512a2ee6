// Package report renders the aggregate reports over an integrated store:
// per-product sales, category rollups, top sellers, customer spend and an
// executive summary. All aggregation happens in SQL; this package only
// formats rows.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"integrator/internal/schema"
)

// Store is the read surface the reports need. *storage backends satisfy it.
type Store interface {
	Counts(ctx context.Context) (schema.StoreCounts, error)
	ProductSales(ctx context.Context) ([]schema.ProductSales, error)
	CategorySummary(ctx context.Context) ([]schema.CategorySummary, error)
	TopProducts(ctx context.Context, n int) ([]schema.ProductSales, error)
	CustomerSpend(ctx context.Context) ([]schema.CustomerSpend, error)
	CustomersOverThreshold(ctx context.Context, min decimal.Decimal) ([]schema.CustomerSpend, error)
}

// Reporter formats reports to a writer. Numbers use English grouping
// (1,234,567.89); money renders with two decimals.
type Reporter struct {
	Store Store

	p *message.Printer
}

// New returns a Reporter over st.
func New(st Store) *Reporter {
	return &Reporter{Store: st, p: message.NewPrinter(language.English)}
}

func (r *Reporter) printer() *message.Printer {
	if r.p == nil {
		r.p = message.NewPrinter(language.English)
	}
	return r.p
}

// money renders a decimal with grouping and two fraction digits.
func (r *Reporter) money(d decimal.Decimal) string {
	return r.printer().Sprintf("%.2f", d.InexactFloat64())
}

func (r *Reporter) count(n int64) string {
	return r.printer().Sprintf("%d", n)
}

func header(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
}

// ProductSales writes the per-product sales report, highest revenue first.
// Products with no orders appear with zeros.
func (r *Reporter) ProductSales(ctx context.Context, w io.Writer) error {
	rows, err := r.Store.ProductSales(ctx)
	if err != nil {
		return fmt.Errorf("report: product sales: %w", err)
	}

	header(w, "Product Sales")
	fmt.Fprintf(w, "%-6s %-32s %-16s %8s %8s %14s %12s\n",
		"ID", "Product", "Category", "Orders", "Qty", "Revenue", "Avg Order")
	for _, ps := range rows {
		fmt.Fprintf(w, "%-6d %-32s %-16s %8s %8s %14s %12s\n",
			ps.ProductID, clip(ps.ProductName, 32), clip(ps.Category, 16),
			r.count(ps.TotalOrders), r.count(ps.TotalQuantitySold),
			r.money(ps.TotalRevenue), r.money(ps.AverageOrderValue))
	}
	return nil
}

// CategorySummary writes the per-category rollup, highest revenue first.
func (r *Reporter) CategorySummary(ctx context.Context, w io.Writer) error {
	rows, err := r.Store.CategorySummary(ctx)
	if err != nil {
		return fmt.Errorf("report: category summary: %w", err)
	}

	header(w, "Category Summary")
	fmt.Fprintf(w, "%-16s %9s %8s %8s %14s %12s\n",
		"Category", "Products", "Orders", "Qty", "Revenue", "Avg Order")
	for _, cs := range rows {
		name := cs.Category
		if name == "" {
			name = "(uncategorized)"
		}
		fmt.Fprintf(w, "%-16s %9s %8s %8s %14s %12s\n",
			clip(name, 16), r.count(cs.ProductCount), r.count(cs.TotalOrders),
			r.count(cs.TotalQuantitySold), r.money(cs.Revenue), r.money(cs.AverageOrderValue))
	}
	return nil
}

// TopProducts writes the n best sellers by quantity sold.
func (r *Reporter) TopProducts(ctx context.Context, w io.Writer, n int) error {
	if n <= 0 {
		n = 5
	}
	rows, err := r.Store.TopProducts(ctx, n)
	if err != nil {
		return fmt.Errorf("report: top products: %w", err)
	}

	header(w, fmt.Sprintf("Top %d Products by Quantity", n))
	for i, ps := range rows {
		fmt.Fprintf(w, "%2d. %-32s %s sold (%s revenue)\n",
			i+1, clip(ps.ProductName, 32), r.count(ps.TotalQuantitySold), r.money(ps.TotalRevenue))
	}
	return nil
}

// CustomerSpend writes the per-customer spend report, biggest spender first.
// Customers with no orders are omitted.
func (r *Reporter) CustomerSpend(ctx context.Context, w io.Writer) error {
	rows, err := r.Store.CustomerSpend(ctx)
	if err != nil {
		return fmt.Errorf("report: customer spend: %w", err)
	}

	header(w, "Customer Spend")
	fmt.Fprintf(w, "%-6s %-28s %-28s %-18s %8s %8s %14s\n",
		"ID", "Customer", "Email", "Location", "Orders", "Items", "Spent")
	for _, cs := range rows {
		fmt.Fprintf(w, "%-6d %-28s %-28s %-18s %8s %8s %14s\n",
			cs.CustomerID, clip(cs.CustomerName, 28), clip(cs.Email, 28),
			clip(location(cs.City, cs.State), 18),
			r.count(cs.TotalOrders), r.count(cs.TotalItems), r.money(cs.TotalSpent))
	}
	return nil
}

// CustomersOverThreshold writes the customers whose total spend exceeds min.
func (r *Reporter) CustomersOverThreshold(ctx context.Context, w io.Writer, min decimal.Decimal) error {
	rows, err := r.Store.CustomersOverThreshold(ctx, min)
	if err != nil {
		return fmt.Errorf("report: customers over threshold: %w", err)
	}

	header(w, fmt.Sprintf("Customers Spending Over %s", r.money(min)))
	if len(rows) == 0 {
		fmt.Fprintln(w, "(none)")
		return nil
	}
	for _, cs := range rows {
		fmt.Fprintf(w, "%-28s %-28s %14s\n", clip(cs.CustomerName, 28), clip(cs.Email, 28), r.money(cs.TotalSpent))
	}
	return nil
}

// ExecutiveSummary writes the headline counts and total revenue.
func (r *Reporter) ExecutiveSummary(ctx context.Context, w io.Writer) error {
	c, err := r.Store.Counts(ctx)
	if err != nil {
		return fmt.Errorf("report: executive summary: %w", err)
	}

	header(w, "Executive Summary")
	fmt.Fprintf(w, "Customers:     %s\n", r.count(c.Customers))
	fmt.Fprintf(w, "Products:      %s\n", r.count(c.Products))
	fmt.Fprintf(w, "Orders:        %s\n", r.count(c.Orders))
	fmt.Fprintf(w, "Total revenue: %s\n", r.money(c.TotalRevenue))
	return nil
}

// All writes every report section in order. topN and threshold come from the
// report config; a nil threshold skips the threshold section.
func (r *Reporter) All(ctx context.Context, w io.Writer, topN int, threshold *decimal.Decimal) error {
	steps := []func() error{
		func() error { return r.ExecutiveSummary(ctx, w) },
		func() error { return r.ProductSales(ctx, w) },
		func() error { return r.CategorySummary(ctx, w) },
		func() error { return r.TopProducts(ctx, w, topN) },
		func() error { return r.CustomerSpend(ctx, w) },
	}
	if threshold != nil {
		steps = append(steps, func() error { return r.CustomersOverThreshold(ctx, w, *threshold) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// clip shortens s to at most n runes, never splitting a multibyte rune.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func location(city, state string) string {
	switch {
	case city == "":
		return state
	case state == "":
		return city
	default:
		return city + ", " + state
	}
}
