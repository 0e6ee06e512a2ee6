// Package json streams rows out of JSON exports: a root array of objects, a
// single object, or an envelope object whose first array-of-objects field
// (in sorted key order) holds the records.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"integrator/internal/config"
	"integrator/internal/source"
)

func init() {
	source.Register("json", StreamRows)
}

// StreamRows parses JSON from src and streams records as *source.Row.
//
// Streaming behavior:
//   - If the root is a JSON array, each object element is streamed one-by-one.
//   - If the root is an object containing an array-of-objects field, the
//     first such field in sorted key order is streamed (envelope pattern).
//   - Otherwise the root object itself is emitted as a single record.
//
// Options:
//   - header_map: map original key -> canonical column
//
// Numbers are decoded with UseNumber so values reach the normalizer as their
// original text, not a float64 round-trip.
func StreamRows(
	ctx context.Context,
	src io.ReadCloser,
	columns []string,
	opt config.Options,
	out chan<- *source.Row,
	onErr func(line int, err error),
) error {
	defer src.Close()

	dec := json.NewDecoder(src)
	dec.UseNumber()

	hm := opt.StringMap("header_map")

	line := 0
	emitObject := func(obj map[string]any) error {
		line++

		row := source.GetRow(len(columns))
		row.Line = line
		fillRow(row, columns, obj, hm)

		select {
		case out <- row:
			return nil
		case <-ctx.Done():
			row.Drop()
			return ctx.Err()
		}
	}

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("json: read first token: %w", err)
	}

	d, ok := tok.(json.Delim)
	if !ok {
		return fmt.Errorf("json: root must be an array or object, got %v", tok)
	}

	switch d {
	case '[':
		for dec.More() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var obj map[string]any
			if err := dec.Decode(&obj); err != nil {
				if onErr != nil {
					onErr(line+1, fmt.Errorf("json: element: %w", err))
				}
				return fmt.Errorf("json: element %d: %w", line+1, err)
			}
			if err := emitObject(obj); err != nil {
				return err
			}
		}
		return nil

	case '{':
		// Buffer the root object, then stream its first array-of-objects
		// field in sorted key order, or the object itself.
		root := map[string]any{}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return fmt.Errorf("json: object key: %w", err)
			}
			key, _ := keyTok.(string)
			var val any
			if err := dec.Decode(&val); err != nil {
				return fmt.Errorf("json: field %q: %w", key, err)
			}
			root[key] = val
		}

		// Walk fields in sorted key order so envelopes with more than
		// one array field pick the same one on every run.
		keys := make([]string, 0, len(root))
		for k := range root {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			arr, ok := root[k].([]any)
			if !ok || len(arr) == 0 {
				continue
			}
			if _, ok := arr[0].(map[string]any); !ok {
				continue
			}
			for _, el := range arr {
				obj, ok := el.(map[string]any)
				if !ok {
					line++
					if onErr != nil {
						onErr(line, fmt.Errorf("json: non-object array element"))
					}
					continue
				}
				if err := emitObject(obj); err != nil {
					return err
				}
			}
			return nil
		}

		return emitObject(root)

	default:
		return fmt.Errorf("json: unexpected delimiter %v", d)
	}
}

// fillRow aligns one decoded object to the target columns, applying the
// header map and flattening scalars to their raw string form.
func fillRow(row *source.Row, columns []string, obj map[string]any, hm map[string]string) {
	byColumn := make(map[string]any, len(obj))
	for k, v := range obj {
		col := k
		if mapped, ok := hm[k]; ok {
			col = mapped
		} else {
			col = strings.ReplaceAll(strings.ToLower(col), " ", "_")
		}
		byColumn[col] = v
	}

	for t, col := range columns {
		v, ok := byColumn[col]
		if !ok || v == nil {
			row.V[t] = nil
			continue
		}
		row.V[t] = scalarString(v)
	}
}

func scalarString(v any) any {
	switch t := v.(type) {
	case string:
		if source.HasEdgeSpace(t) {
			t = strings.TrimSpace(t)
		}
		if t == "" {
			return nil
		}
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}
