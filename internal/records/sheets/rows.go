package sheets

import (
	"fmt"
	"strings"
)

// rowsToObjects turns a values matrix into one object per data row, keyed by
// the header row. Empty cells are omitted and blank rows are skipped.
func rowsToObjects(values [][]interface{}) []map[string]any {
	out := make([]map[string]any, 0)
	if len(values) == 0 {
		return out
	}

	headers := toStrings(values[0])
	for i := 1; i < len(values); i++ {
		row := values[i]
		obj := make(map[string]any, len(headers))
		for col, name := range headers {
			if name == "" || col >= len(row) {
				continue
			}
			cell := row[col]
			if s, ok := cell.(string); ok {
				s = strings.TrimSpace(s)
				if s == "" {
					continue
				}
				cell = s
			}
			if cell == nil {
				continue
			}
			obj[name] = cell
		}
		if len(obj) == 0 {
			continue
		}
		out = append(out, obj)
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
