// This file implements conversion between document values and column values.
package sqlite

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

// prepareRow normalizes doc against the table's fields and returns the
// bound values in field order. Empty strings and missing optional fields
// become null, and doc is updated so it reflects what will be stored.
// Missing required fields are reported together.
func prepareRow(t *types.Table, doc types.Document) ([]any, error) {
	values := make([]any, len(t.Fields))
	var missing []string
	for i, f := range t.Fields {
		raw := doc[f.Name]
		if s, ok := raw.(string); ok && s == "" {
			raw = nil
		}
		if raw == nil {
			if f.Required && !f.EmptyValuePermitted {
				missing = append(missing, f.Name)
				continue
			}
			doc[f.Name] = nil
			continue
		}
		v, err := bindValue(t.Name, f, raw)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	if len(missing) > 0 {
		return nil, types.Validationf(t.Name, strings.Join(missing, ","), nil,
			"the following field(s) are missing from %s object: %s", t.Name, strings.Join(missing, ", "))
	}
	return values, nil
}

// bindValue converts one non-null document value to its driver value.
func bindValue(table string, f types.Field, raw any) (any, error) {
	switch f.Type {
	case types.FieldInteger:
		n, ok := types.Int64(raw)
		if !ok {
			return nil, types.Validationf(table, f.Name, raw, "%s.%s must be an integer, got %v", table, f.Name, raw)
		}
		return n, nil
	case types.FieldDouble:
		x, ok := types.Float64(raw)
		if !ok {
			return nil, types.Validationf(table, f.Name, raw, "%s.%s must be a number, got %v", table, f.Name, raw)
		}
		return x, nil
	case types.FieldTime:
		if s, ok := raw.(string); ok && strings.Contains(s, ":") {
			if secs, ok := parseClock(s); ok {
				return secs, nil
			}
		} else if n, ok := types.Int64(raw); ok {
			return n, nil
		}
		return nil, types.Validationf(table, f.Name, raw, "%s.%s must be seconds or HH:MM:SS, got %v", table, f.Name, raw)
	case types.FieldStringList:
		list, err := stringList(raw)
		if err != nil {
			return nil, types.Validationf(table, f.Name, raw, "%s.%s: %v", table, f.Name, err)
		}
		data, err := json.Marshal(list)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	default:
		if _, nested := raw.([]any); nested {
			return nil, types.Validationf(table, f.Name, raw, "%s.%s must be a scalar", table, f.Name)
		}
		return types.Text(raw), nil
	}
}

// parseClock parses HH:MM:SS into seconds since midnight. Hours past 23 are
// allowed for service running after midnight.
func parseClock(s string) (int64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	var total int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 || (i > 0 && n > 59) {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// stringList accepts []string, []any of scalars, or a comma-delimited
// string.
func stringList(raw any) ([]string, error) {
	switch x := raw.(type) {
	case []string:
		return x, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if item == nil {
				continue
			}
			out = append(out, types.Text(item))
		}
		return out, nil
	case string:
		var out []string
		for _, s := range strings.Split(x, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of strings, got %T", raw)
}

// decodeList reads a stored list column.
func decodeList(v any) []string {
	var text string
	switch x := v.(type) {
	case string:
		text = x
	case []byte:
		text = string(x)
	default:
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil
	}
	return out
}

// documentValue converts a scanned column back to its document form.
func documentValue(f types.Field, v any) any {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch f.Type {
	case types.FieldInteger, types.FieldTime:
		if n, ok := types.Int64(v); ok {
			return n
		}
	case types.FieldDouble:
		if x, ok := types.Float64(v); ok {
			return x
		}
	case types.FieldStringList:
		return decodeList(v)
	default:
		return types.Text(v)
	}
	return v
}
