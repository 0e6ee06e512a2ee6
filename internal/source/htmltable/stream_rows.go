// Package htmltable streams rows out of HTML table exports. Some upstream
// systems only hand over data as a rendered report page; this adapter reads
// the first data table of such a page.
package htmltable

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"integrator/internal/config"
	"integrator/internal/source"
)

func init() {
	source.Register("htmltable", StreamRows)
}

// StreamRows parses the HTML document in src, locates a table and streams
// one pooled *source.Row per data row, aligned to the target 'columns'.
//
// Options:
//   - selector (string, default "table"): goquery selector for the table.
//   - header_map (object): header cell text -> canonical column overrides.
//     Unmapped headers are lowercased with spaces replaced by underscores.
//
// The header row is the first <tr> containing <th> cells, or the first row
// otherwise. Rows with no cells are skipped. A document without a matching
// table is a terminal error.
func StreamRows(
	ctx context.Context,
	src io.ReadCloser,
	columns []string,
	opt config.Options,
	out chan<- *source.Row,
	onErr func(line int, err error),
) error {
	defer src.Close()

	doc, err := goquery.NewDocumentFromReader(src)
	if err != nil {
		return fmt.Errorf("htmltable: parse html: %w", err)
	}

	selector := opt.String("selector", "table")
	hm := opt.StringMap("header_map")

	table := doc.Find(selector).First()
	if table.Length() == 0 {
		return fmt.Errorf("htmltable: no table matches selector %q", selector)
	}

	rows := table.Find("tr")
	if rows.Length() == 0 {
		return nil
	}

	colIx := make([]int, len(columns))
	for i := range colIx {
		colIx[i] = -1
	}

	headerDone := false
	line := 0
	var streamErr error

	rows.EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		select {
		case <-ctx.Done():
			streamErr = ctx.Err()
			return false
		default:
		}

		cells := tr.Find("th, td")
		if cells.Length() == 0 {
			return true
		}

		if !headerDone {
			headerDone = true
			srcToIdx := make(map[string]int, cells.Length())
			cells.Each(func(i int, c *goquery.Selection) {
				h := strings.TrimSpace(c.Text())
				if mapped, ok := hm[h]; ok {
					h = mapped
				} else {
					h = strings.ReplaceAll(strings.ToLower(h), " ", "_")
				}
				srcToIdx[h] = i
			})
			for t, target := range columns {
				if si, ok := srcToIdx[target]; ok {
					colIx[t] = si
				}
			}
			return true
		}

		line++
		vals := make([]string, cells.Length())
		cells.Each(func(i int, c *goquery.Selection) {
			vals[i] = strings.TrimSpace(c.Text())
		})

		row := source.GetRow(len(columns))
		row.Line = line
		for t := range columns {
			si := colIx[t]
			if si < 0 || si >= len(vals) || vals[si] == "" {
				row.V[t] = nil
				continue
			}
			row.V[t] = vals[si]
		}

		select {
		case out <- row:
			return true
		case <-ctx.Done():
			row.Drop()
			streamErr = ctx.Err()
			return false
		}
	})

	return streamErr
}
