// Package export renders analysis payloads as CSV files in the exports
// directory and builds the public links the bot sends back to groups.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Table is a header row plus data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// BuildTable lays out a payload as a table.
//
// An object with a non-empty "items" array, or a non-empty array, becomes one
// row per entry with the sorted union of entry keys as columns. Any other
// object becomes Field,Value pairs. Anything else is a single Value cell.
func BuildTable(payload any) Table {
	if obj, ok := payload.(map[string]any); ok {
		if items, ok := obj["items"].([]any); ok && len(items) > 0 {
			return recordsTable(items)
		}
		return fieldValueTable(obj)
	}
	if arr, ok := payload.([]any); ok && len(arr) > 0 {
		return recordsTable(arr)
	}
	return Table{Header: []string{"Value"}, Rows: [][]string{{cell(payload)}}}
}

func recordsTable(records []any) Table {
	keys := make(map[string]struct{})
	for _, r := range records {
		if m, ok := r.(map[string]any); ok {
			for k := range m {
				keys[k] = struct{}{}
			}
		}
	}
	header := make([]string, 0, len(keys))
	for k := range keys {
		header = append(header, k)
	}
	sort.Strings(header)

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		m, _ := r.(map[string]any)
		row := make([]string, len(header))
		for i, k := range header {
			row[i] = cell(m[k])
		}
		rows = append(rows, row)
	}
	return Table{Header: header, Rows: rows}
}

func fieldValueTable(obj map[string]any) Table {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		v := obj[k]
		if v == nil {
			continue
		}
		if arr, ok := v.([]any); ok && !hasObjectHead(arr) {
			parts := make([]string, len(arr))
			for i, el := range arr {
				parts[i] = cell(el)
			}
			rows = append(rows, []string{k, strings.Join(parts, "; ")})
			continue
		}
		rows = append(rows, []string{k, cell(v)})
	}
	return Table{Header: []string{"Field", "Value"}, Rows: rows}
}

func hasObjectHead(arr []any) bool {
	if len(arr) == 0 {
		return false
	}
	switch arr[0].(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// cell renders one value. Nulls become empty cells; nested values are JSON.
func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// Write encodes t as RFC 4180 CSV.
func (t Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write csv rows: %w", err)
	}
	return nil
}

// ReadTable parses CSV written by Write.
func ReadTable(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return Table{}, nil
	}
	return Table{Header: records[0], Rows: records[1:]}, nil
}
