package sqlstmt

import (
	"context"
	"io"
	"strings"
	"testing"

	"integrator/internal/source"
)

func collect(t *testing.T, input string, columns []string) ([][]any, []error, error) {
	t.Helper()

	var parseErrs []error
	onErr := func(line int, err error) { parseErrs = append(parseErrs, err) }

	out := make(chan *source.Row, 64)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		errCh <- StreamRows(context.Background(), io.NopCloser(strings.NewReader(input)), columns, nil, out, onErr)
	}()

	var rows [][]any
	for r := range out {
		rows = append(rows, append([]any(nil), r.V...))
		r.Free()
	}
	return rows, parseErrs, <-errCh
}

func TestStreamRows_SingleInsert(t *testing.T) {
	t.Parallel()

	in := `INSERT INTO customers (customer_id, first_name, email) VALUES (1, 'Ada', 'ada@example.com');`
	rows, parseErrs, err := collect(t, in, []string{"customer_id", "first_name", "email"})
	if err != nil {
		t.Fatalf("StreamRows() err=%v", err)
	}
	if len(parseErrs) != 0 {
		t.Fatalf("parse errors: %v", parseErrs)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d, want 1", len(rows))
	}
	if rows[0][0] != "1" || rows[0][1] != "Ada" || rows[0][2] != "ada@example.com" {
		t.Fatalf("row=%v", rows[0])
	}
}

func TestStreamRows_MultiTupleInsert(t *testing.T) {
	t.Parallel()

	in := `INSERT INTO customers (customer_id, first_name, email) VALUES
  (1, 'Ada', 'ada@example.com'),
  (2, 'Grace', 'grace@example.com');`
	rows, _, err := collect(t, in, []string{"customer_id", "first_name", "email"})
	if err != nil {
		t.Fatalf("StreamRows() err=%v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(rows))
	}
	if rows[1][1] != "Grace" {
		t.Fatalf("row 1 = %v", rows[1])
	}
}

func TestStreamRows_ColumnReorderAndExtra(t *testing.T) {
	t.Parallel()

	// The statement orders columns differently and carries one the target
	// schema does not know; alignment is by name.
	in := `INSERT INTO customers (email, legacy_flag, customer_id) VALUES ('ada@example.com', 'Y', 1);`
	rows, _, err := collect(t, in, []string{"customer_id", "first_name", "email"})
	if err != nil {
		t.Fatalf("StreamRows() err=%v", err)
	}
	if rows[0][0] != "1" || rows[0][1] != nil || rows[0][2] != "ada@example.com" {
		t.Fatalf("row=%v", rows[0])
	}
}

func TestStreamRows_QuotingAndNull(t *testing.T) {
	t.Parallel()

	in := `INSERT INTO customers (customer_id, first_name, phone) VALUES (1, 'O''Brien', NULL);`
	rows, _, err := collect(t, in, []string{"customer_id", "first_name", "phone"})
	if err != nil {
		t.Fatalf("StreamRows() err=%v", err)
	}
	if rows[0][1] != "O'Brien" {
		t.Fatalf("first_name=%v, want O'Brien", rows[0][1])
	}
	if rows[0][2] != nil {
		t.Fatalf("phone=%v, want nil for NULL", rows[0][2])
	}
}

func TestStreamRows_SkipsNonInsertStatements(t *testing.T) {
	t.Parallel()

	in := `-- customer export
CREATE TABLE customers (customer_id INTEGER PRIMARY KEY, first_name TEXT);
/* block
   comment */
INSERT INTO customers (customer_id, first_name) VALUES (1, 'Ada');
DELETE FROM staging;
INSERT INTO customers (customer_id, first_name) VALUES (2, 'Grace');`
	rows, _, err := collect(t, in, []string{"customer_id", "first_name"})
	if err != nil {
		t.Fatalf("StreamRows() err=%v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(rows))
	}
}

func TestStreamRows_ArityMismatchSkipped(t *testing.T) {
	t.Parallel()

	in := `INSERT INTO customers (customer_id, first_name) VALUES
  (1, 'Ada'),
  (2),
  (3, 'Grace');`
	rows, parseErrs, err := collect(t, in, []string{"customer_id", "first_name"})
	if err != nil {
		t.Fatalf("StreamRows() err=%v", err)
	}
	if len(parseErrs) != 1 {
		t.Fatalf("parse errors=%v, want exactly one arity report", parseErrs)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want 2 (mismatched tuple skipped)", len(rows))
	}
}

func TestStreamRows_NoColumnListPositional(t *testing.T) {
	t.Parallel()

	in := `INSERT INTO customers VALUES (1, 'Ada');`
	rows, _, err := collect(t, in, []string{"customer_id", "first_name"})
	if err != nil {
		t.Fatalf("StreamRows() err=%v", err)
	}
	if rows[0][0] != "1" || rows[0][1] != "Ada" {
		t.Fatalf("row=%v", rows[0])
	}
}

func TestStreamRows_UnterminatedStringIsTerminal(t *testing.T) {
	t.Parallel()

	in := `INSERT INTO customers (customer_id, first_name) VALUES (1, 'Ada`
	_, _, err := collect(t, in, []string{"customer_id", "first_name"})
	if err == nil {
		t.Fatalf("expected terminal error for unterminated literal")
	}
}

func TestStreamRows_EmptyInput(t *testing.T) {
	t.Parallel()

	rows, parseErrs, err := collect(t, "", []string{"customer_id"})
	if err != nil || len(rows) != 0 || len(parseErrs) != 0 {
		t.Fatalf("empty input: rows=%v errs=%v err=%v", rows, parseErrs, err)
	}
}
