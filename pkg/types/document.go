package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Document is one entity keyed by field name. Child collections are stored
// under the child table's name as []any or []Document.
type Document map[string]any

// IDField holds the store-assigned surrogate id.
const IDField = "id"

// ID returns the surrogate id when the document carries one.
func (d Document) ID() (int64, bool) {
	v, ok := d[IDField]
	if !ok || v == nil {
		return 0, false
	}
	return Int64(v)
}

// Text returns the value of field rendered as a string. Missing and null
// values report false.
func (d Document) Text(field string) (string, bool) {
	v, ok := d[field]
	if !ok || v == nil {
		return "", false
	}
	return Text(v), true
}

// Children returns the child collection stored under name. present is false
// when the key is missing, null, or not an array.
func (d Document) Children(name string) (children []Document, present bool, err error) {
	raw, ok := d[name]
	if !ok || raw == nil {
		return nil, false, nil
	}
	switch list := raw.(type) {
	case []Document:
		return list, true, nil
	case []map[string]any:
		out := make([]Document, len(list))
		for i, m := range list {
			out[i] = Document(m)
		}
		return out, true, nil
	case []any:
		out := make([]Document, len(list))
		for i, item := range list {
			switch m := item.(type) {
			case map[string]any:
				out[i] = Document(m)
			case Document:
				out[i] = m
			default:
				return nil, true, fmt.Errorf("%s[%d] is not an object", name, i)
			}
		}
		return out, true, nil
	default:
		return nil, false, nil
	}
}

// ParseDocuments decodes a JSON object or array of objects. Numbers are kept
// as json.Number so integer fields survive without float rounding.
func ParseDocuments(data []byte) (docs []Document, isArray bool, err error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := dec.Decode(&docs); err != nil {
			return nil, true, fmt.Errorf("decoding document array: %w", err)
		}
		return docs, true, nil
	}
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, false, fmt.Errorf("decoding document: %w", err)
	}
	if doc == nil {
		return nil, false, fmt.Errorf("decoding document: null input")
	}
	return []Document{doc}, false, nil
}

// Text renders a scalar document value as a string.
func Text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// Int64 converts an integral document value. Fractional numbers and
// non-numeric strings report false.
func Int64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x != float64(int64(x)) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		f, err := x.Float64()
		if err != nil || f != float64(int64(f)) {
			return 0, false
		}
		return int64(f), true
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Float64 converts a numeric document value.
func Float64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
