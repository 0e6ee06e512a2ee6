package htmltable

import (
	"context"
	"io"
	"strings"
	"testing"

	"integrator/internal/config"
	"integrator/internal/source"
)

func collect(t *testing.T, input string, columns []string, opt config.Options) ([][]any, error) {
	t.Helper()

	out := make(chan *source.Row, 64)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		errCh <- StreamRows(context.Background(), io.NopCloser(strings.NewReader(input)), columns, opt, out, nil)
	}()

	var rows [][]any
	for r := range out {
		rows = append(rows, append([]any(nil), r.V...))
		r.Free()
	}
	return rows, <-errCh
}

const productPage = `<html><body>
<h1>Product Export</h1>
<table>
  <tr><th>Product ID</th><th>Product Name</th><th>Price</th></tr>
  <tr><td>1</td><td>Laptop</td><td>999.99</td></tr>
  <tr><td>2</td><td>Mouse</td><td></td></tr>
</table>
</body></html>`

func TestStreamRows_HeaderRow(t *testing.T) {
	t.Parallel()

	rows, err := collect(t, productPage, []string{"product_id", "product_name", "price"}, nil)
	if err != nil {
		t.Fatalf("StreamRows() err=%v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(rows))
	}
	if rows[0][0] != "1" || rows[0][1] != "Laptop" || rows[0][2] != "999.99" {
		t.Fatalf("row 0 = %v", rows[0])
	}
	if rows[1][2] != nil {
		t.Fatalf("empty cell = %v, want nil", rows[1][2])
	}
}

func TestStreamRows_HeaderMapOverride(t *testing.T) {
	t.Parallel()

	page := `<table>
  <tr><th>SKU</th><th>Title</th></tr>
  <tr><td>9</td><td>Keyboard</td></tr>
</table>`
	opt := config.Options{
		"header_map": map[string]any{"SKU": "product_id", "Title": "product_name"},
	}
	rows, err := collect(t, page, []string{"product_id", "product_name"}, opt)
	if err != nil {
		t.Fatalf("StreamRows() err=%v", err)
	}
	if len(rows) != 1 || rows[0][0] != "9" || rows[0][1] != "Keyboard" {
		t.Fatalf("rows=%v", rows)
	}
}

func TestStreamRows_SelectorOption(t *testing.T) {
	t.Parallel()

	page := `
<table id="nav"><tr><td>menu</td></tr></table>
<table id="data">
  <tr><th>product_id</th></tr>
  <tr><td>5</td></tr>
</table>`
	opt := config.Options{"selector": "table#data"}
	rows, err := collect(t, page, []string{"product_id"}, opt)
	if err != nil {
		t.Fatalf("StreamRows() err=%v", err)
	}
	if len(rows) != 1 || rows[0][0] != "5" {
		t.Fatalf("rows=%v", rows)
	}
}

func TestStreamRows_NoTableIsTerminal(t *testing.T) {
	t.Parallel()

	_, err := collect(t, `<html><body><p>nothing here</p></body></html>`, []string{"product_id"}, nil)
	if err == nil {
		t.Fatalf("expected error for a page without a table")
	}
}

func TestStreamRows_UnmappedColumnNil(t *testing.T) {
	t.Parallel()

	rows, err := collect(t, productPage, []string{"product_id", "category"}, nil)
	if err != nil {
		t.Fatalf("StreamRows() err=%v", err)
	}
	if rows[0][1] != nil {
		t.Fatalf("unmapped column = %v, want nil", rows[0][1])
	}
}
