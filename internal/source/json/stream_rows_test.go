package json

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

func TestStreamRows_RootArray(t *testing.T) {
	t.Parallel()

	in := `[
  {"order_id": 100, "quantity": 2, "unit_price": 10.50},
  {"order_id": 101, "quantity": 1, "unit_price": 999.99}
]`
	rows, err := collect(t, in, []string{"order_id", "quantity", "unit_price"}, nil)
	if err != nil {
		t.Fatalf("StreamRows() err=%v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(rows))
	}
	// UseNumber keeps numeric text intact.
	if rows[0][2] != "10.50" {
		t.Fatalf("unit_price=%v, want original text 10.50", rows[0][2])
	}
}

func TestStreamRows_Envelope(t *testing.T) {
	t.Parallel()

	in := `{"count": 1, "orders": [{"order_id": 100, "quantity": 2}]}`
	rows, err := collect(t, in, []string{"order_id", "quantity"}, nil)
	if err != nil {
		t.Fatalf("StreamRows() err=%v", err)
	}
	if len(rows) != 1 || rows[0][0] != "100" {
		t.Fatalf("rows=%v", rows)
	}
}

func TestStreamRows_EnvelopeTwoArrayFieldsDeterministic(t *testing.T) {
	t.Parallel()

	// Both fields qualify as array-of-objects; the first in sorted key
	// order wins, on every run.
	in := `{
  "returns": [{"order_id": 900, "quantity": 1}],
  "orders": [{"order_id": 100, "quantity": 2}]
}`
	for i := 0; i < 20; i++ {
		rows, err := collect(t, in, []string{"order_id", "quantity"}, nil)
		if err != nil {
			t.Fatalf("StreamRows() err=%v", err)
		}
		if len(rows) != 1 || rows[0][0] != "100" {
			t.Fatalf("iteration %d: rows=%v, want the orders field streamed", i, rows)
		}
	}
}

func TestStreamRows_SingleObject(t *testing.T) {
	t.Parallel()

	in := `{"order_id": 100, "quantity": 2}`
	rows, err := collect(t, in, []string{"order_id", "quantity"}, nil)
	if err != nil {
		t.Fatalf("StreamRows() err=%v", err)
	}
	if len(rows) != 1 || rows[0][1] != "2" {
		t.Fatalf("rows=%v", rows)
	}
}

func TestStreamRows_HeaderMapAndKeyFolding(t *testing.T) {
	t.Parallel()

	in := `[{"Order ID": 100, "qty": 2}]`
	opt := config.Options{"header_map": map[string]any{"qty": "quantity"}}
	rows, err := collect(t, in, []string{"order_id", "quantity"}, opt)
	if err != nil {
		t.Fatalf("StreamRows() err=%v", err)
	}
	// "Order ID" folds to order_id; "qty" maps through header_map.
	if rows[0][0] != "100" || rows[0][1] != "2" {
		t.Fatalf("rows=%v", rows)
	}
}

func TestStreamRows_NullAndMissingFieldsNil(t *testing.T) {
	t.Parallel()

	in := `[{"order_id": 100, "status": null}]`
	rows, err := collect(t, in, []string{"order_id", "status", "quantity"}, nil)
	if err != nil {
		t.Fatalf("StreamRows() err=%v", err)
	}
	if rows[0][1] != nil || rows[0][2] != nil {
		t.Fatalf("rows=%v, want nil for null and missing fields", rows[0])
	}
}

func TestStreamRows_ScalarRootRejected(t *testing.T) {
	t.Parallel()

	_, err := collect(t, `42`, []string{"order_id"}, nil)
	if err == nil {
		t.Fatalf("expected error for scalar root")
	}
}

func TestStreamRows_EmptyInput(t *testing.T) {
	t.Parallel()

	rows, err := collect(t, ``, []string{"order_id"}, nil)
	if err != nil || len(rows) != 0 {
		t.Fatalf("rows=%v err=%v", rows, err)
	}
}
