// Package sqlstmt streams rows out of SQL statement exports: files of
// INSERT INTO ... VALUES (...) statements as produced by the customer data
// system. Only the VALUES tuples are consumed; the target table name is
// ignored and nothing is ever executed.
package sqlstmt

import (
	"context"
	"fmt"
	"io"
	"strings"

	"integrator/internal/config"
	"integrator/internal/source"
)

func init() {
	source.Register("sqlstmt", StreamRows)
}

// StreamRows parses INSERT statements from src and streams one pooled
// *source.Row per VALUES tuple, aligned to the target 'columns' order.
//
// Parsing rules:
//   - The statement's own column list, when present, maps tuple positions to
//     canonical columns (lowercased). Without a column list, positions are
//     taken as-is.
//   - String literals use single quotes with '' escaping. NULL (any case)
//     becomes nil. Every other token is passed through as its raw text for
//     the normalizer to coerce.
//   - Line comments (--) and block comments are skipped. Statements other
//     than INSERT are skipped wholesale.
//
// A tuple whose arity does not match the column list is reported through
// onErr and skipped; the stream continues. A structurally broken file
// (unterminated string, missing VALUES) is a terminal error.
func StreamRows(
	ctx context.Context,
	src io.ReadCloser,
	columns []string,
	opt config.Options,
	out chan<- *source.Row,
	onErr func(line int, err error),
) error {
	defer src.Close()

	raw, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("sqlstmt: read source: %w", err)
	}

	_ = opt // no options today; the statement format is self-describing

	p := &parser{in: string(raw)}
	record := 0

	for {
		stmtCols, ok, err := p.nextInsert()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		colIx := alignColumns(columns, stmtCols)

		for {
			vals, more, err := p.nextTuple()
			if err != nil {
				return err
			}

			record++
			if len(stmtCols) > 0 && len(vals) != len(stmtCols) {
				if onErr != nil {
					onErr(record, fmt.Errorf("sqlstmt: tuple has %d values, statement lists %d columns", len(vals), len(stmtCols)))
				}
				if !more {
					break
				}
				continue
			}

			row := source.GetRow(len(columns))
			row.Line = record
			for t := range columns {
				si := colIx[t]
				if si < 0 || si >= len(vals) {
					row.V[t] = nil
					continue
				}
				row.V[t] = vals[si]
			}

			select {
			case out <- row:
			case <-ctx.Done():
				row.Drop()
				return ctx.Err()
			}

			if !more {
				break
			}
		}
	}
}

// alignColumns maps target column positions to tuple positions. With no
// statement column list the mapping is positional.
func alignColumns(columns, stmtCols []string) []int {
	colIx := make([]int, len(columns))
	if len(stmtCols) == 0 {
		for i := range colIx {
			colIx[i] = i
		}
		return colIx
	}

	srcToIdx := make(map[string]int, len(stmtCols))
	for i, c := range stmtCols {
		srcToIdx[strings.ToLower(c)] = i
	}
	for t, target := range columns {
		if si, ok := srcToIdx[target]; ok {
			colIx[t] = si
		} else {
			colIx[t] = -1
		}
	}
	return colIx
}

// parser is a minimal scanner over a statement file. It understands just
// enough SQL for exports: identifiers, parenthesized lists, quoted strings
// and comments.
type parser struct {
	in  string
	pos int
}

// nextInsert advances to the next INSERT statement and consumes everything
// up to and including the VALUES keyword. It returns the statement column
// list (possibly empty) and ok=false at EOF.
func (p *parser) nextInsert() (cols []string, ok bool, err error) {
	for {
		p.skipNoise()
		if p.eof() {
			return nil, false, nil
		}

		word := p.readWord()
		if word == "" {
			// Stray punctuation between statements (e.g. a lone ';').
			p.pos++
			continue
		}
		if !strings.EqualFold(word, "insert") {
			// Not an INSERT: skip to the end of this statement.
			if err := p.skipStatement(); err != nil {
				return nil, false, err
			}
			continue
		}

		// INSERT [OR IGNORE] INTO <ident> [(cols)] VALUES
		for {
			p.skipNoise()
			w := p.readWord()
			if w == "" {
				break
			}
			if strings.EqualFold(w, "values") {
				return cols, true, nil
			}
			if strings.EqualFold(w, "into") {
				continue
			}
			// table name or modifier; column list follows as a paren group
			p.skipNoise()
			if !p.eof() && p.in[p.pos] == '(' {
				cols, err = p.readColumnList()
				if err != nil {
					return nil, false, err
				}
			}
		}
		return nil, false, fmt.Errorf("sqlstmt: INSERT without VALUES near offset %d", p.pos)
	}
}

// nextTuple reads one parenthesized value tuple. more=true when a comma
// follows (another tuple belongs to the same statement).
func (p *parser) nextTuple() (vals []any, more bool, err error) {
	p.skipNoise()
	if p.eof() || p.in[p.pos] != '(' {
		return nil, false, fmt.Errorf("sqlstmt: expected '(' at offset %d", p.pos)
	}
	p.pos++ // consume '('

	for {
		p.skipNoise()
		if p.eof() {
			return nil, false, fmt.Errorf("sqlstmt: unterminated tuple")
		}

		v, err := p.readValue()
		if err != nil {
			return nil, false, err
		}
		vals = append(vals, v)

		p.skipNoise()
		if p.eof() {
			return nil, false, fmt.Errorf("sqlstmt: unterminated tuple")
		}
		switch p.in[p.pos] {
		case ',':
			p.pos++
			continue
		case ')':
			p.pos++
		default:
			return nil, false, fmt.Errorf("sqlstmt: unexpected %q in tuple at offset %d", p.in[p.pos], p.pos)
		}
		break
	}

	p.skipNoise()
	if !p.eof() && p.in[p.pos] == ',' {
		p.pos++
		return vals, true, nil
	}
	if !p.eof() && p.in[p.pos] == ';' {
		p.pos++
	}
	return vals, false, nil
}

func (p *parser) readColumnList() ([]string, error) {
	p.pos++ // consume '('
	var cols []string
	for {
		p.skipNoise()
		if p.eof() {
			return nil, fmt.Errorf("sqlstmt: unterminated column list")
		}
		c := p.readWord()
		if c == "" {
			return nil, fmt.Errorf("sqlstmt: empty column name at offset %d", p.pos)
		}
		cols = append(cols, c)

		p.skipNoise()
		if p.eof() {
			return nil, fmt.Errorf("sqlstmt: unterminated column list")
		}
		switch p.in[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return cols, nil
		default:
			return nil, fmt.Errorf("sqlstmt: unexpected %q in column list", p.in[p.pos])
		}
	}
}

// readValue reads one tuple value: a quoted string, or a bare token up to
// the next comma or closing paren.
func (p *parser) readValue() (any, error) {
	if p.in[p.pos] == '\'' {
		return p.readQuoted()
	}

	start := p.pos
	for !p.eof() && p.in[p.pos] != ',' && p.in[p.pos] != ')' {
		p.pos++
	}
	tok := strings.TrimSpace(p.in[start:p.pos])
	if strings.EqualFold(tok, "null") || tok == "" {
		return nil, nil
	}
	return tok, nil
}

func (p *parser) readQuoted() (any, error) {
	p.pos++ // consume opening quote
	var b strings.Builder
	for {
		if p.eof() {
			return nil, fmt.Errorf("sqlstmt: unterminated string literal")
		}
		c := p.in[p.pos]
		if c == '\'' {
			if p.pos+1 < len(p.in) && p.in[p.pos+1] == '\'' {
				b.WriteByte('\'')
				p.pos += 2
				continue
			}
			p.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		p.pos++
	}
}

func (p *parser) readWord() string {
	start := p.pos
	for !p.eof() {
		c := p.in[p.pos]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		break
	}
	return p.in[start:p.pos]
}

// skipStatement consumes input through the next top-level ';', honoring
// string literals so a quoted semicolon does not end the statement.
func (p *parser) skipStatement() error {
	for !p.eof() {
		switch p.in[p.pos] {
		case '\'':
			if _, err := p.readQuoted(); err != nil {
				return err
			}
		case ';':
			p.pos++
			return nil
		default:
			p.pos++
		}
	}
	return nil
}

// skipNoise consumes whitespace and comments.
func (p *parser) skipNoise() {
	for !p.eof() {
		c := p.in[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '-' && p.pos+1 < len(p.in) && p.in[p.pos+1] == '-':
			for !p.eof() && p.in[p.pos] != '\n' {
				p.pos++
			}
		case c == '/' && p.pos+1 < len(p.in) && p.in[p.pos+1] == '*':
			end := strings.Index(p.in[p.pos+2:], "*/")
			if end < 0 {
				p.pos = len(p.in)
				return
			}
			p.pos += 2 + end + 2
		default:
			return
		}
	}
}

func (p *parser) eof() bool { return p.pos >= len(p.in) }
