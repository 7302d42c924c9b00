package pipeline

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Record is a document-shaped row flowing through a pipeline.
type Record map[string]any

// sensitiveFields are removed from every record a pipeline emits, at any depth.
var sensitiveFields = []string{"password", "passwordHash", "refreshToken"}

// Value resolves a dotted path. Lists encountered along the way are plucked,
// so "subscribers.subscriberId" yields the list of subscriber ids.
func (r Record) Value(path string) (any, bool) {
	return lookup(r, path)
}

func lookup(v any, path string) (any, bool) {
	if path == "" {
		return v, v != nil
	}
	switch t := v.(type) {
	case Record:
		return lookupField(t, path)
	case map[string]any:
		return lookupField(t, path)
	}
	list, ok := asList(v)
	if !ok {
		return nil, false
	}
	out := make([]any, 0, len(list))
	for _, elem := range list {
		got, ok := lookup(elem, path)
		if !ok {
			continue
		}
		if nested, isList := asList(got); isList {
			out = append(out, nested...)
			continue
		}
		out = append(out, got)
	}
	return out, true
}

func lookupField(m map[string]any, path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")
	next, ok := m[head]
	if !ok {
		return nil, false
	}
	if !nested {
		return next, true
	}
	return lookup(next, rest)
}

// asList normalizes the slice shapes records carry into []any.
func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []any:
		return t, true
	case []Record:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = Record(t[i])
		}
		return out, true
	case []string:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	case string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// valuesOf returns v as a list of scalars: lists as-is, scalars wrapped, nil empty.
func valuesOf(v any) []any {
	if v == nil {
		return nil
	}
	if list, ok := asList(v); ok {
		return list
	}
	return []any{v}
}

// keyOf renders a scalar as a comparable map key.
func keyOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	}
	if f, ok := toFloat(v); ok {
		return fmt.Sprintf("%g", f)
	}
	return fmt.Sprint(v)
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return keyOf(a) == keyOf(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// compare orders nil first, then numbers, strings, times and bools by value.
// Mismatched types fall back to their string forms.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(keyOf(a), keyOf(b))
}

func cloneRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		return cloneRecord(t)
	case map[string]any:
		return cloneRecord(t)
	case []Record:
		out := make([]Record, len(t))
		for i := range t {
			out[i] = cloneRecord(t[i])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// sanitize strips credential and session fields in place.
func sanitize(v any) {
	switch t := v.(type) {
	case Record:
		for _, f := range sensitiveFields {
			delete(t, f)
		}
		for _, nested := range t {
			sanitize(nested)
		}
	case map[string]any:
		sanitize(Record(t))
	case []Record:
		for _, r := range t {
			sanitize(r)
		}
	case []any:
		for _, e := range t {
			sanitize(e)
		}
	}
}

// toRecord accepts records stored as plain maps as well.
func toRecord(v any) (Record, bool) {
	switch t := v.(type) {
	case Record:
		return t, true
	case map[string]any:
		return Record(t), true
	}
	return nil, false
}
