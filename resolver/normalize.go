package resolver

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// normalize reduces a value to a comparison key. Strings are trimmed and
// case-folded, numbers are written in canonical decimal form and collections
// are compared regardless of element order.
func normalize(v any) string {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return ""
	}
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		if d, err := decimal.NewFromString(s); err == nil {
			return d.String()
		}
		return s
	case bool:
		if x {
			return "true"
		}
		return "false"
	case decimal.Decimal:
		return x.String()
	case json.Number:
		return normalize(x.String())
	case float64:
		return decimal.NewFromFloat(x).String()
	case float32:
		return decimal.NewFromFloat32(x).String()
	case int:
		return decimal.NewFromInt(int64(x)).String()
	case int64:
		return decimal.NewFromInt(x).String()
	case int32:
		return decimal.NewFromInt32(x).String()
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return normalize(x.String())
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		keys := make([]string, rv.Len())
		for i := range keys {
			keys[i] = normalize(rv.Index(i).Interface())
		}
		sort.Strings(keys)
		return "[" + strings.Join(keys, "\x1f") + "]"
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			keys = append(keys, normalize(iter.Key().Interface())+"="+normalize(iter.Value().Interface()))
		}
		sort.Strings(keys)
		return "{" + strings.Join(keys, "\x1f") + "}"
	case reflect.Pointer:
		return normalize(rv.Elem().Interface())
	}
	return strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
}

// equal compares two candidates after normalization.
func equal(a, b *SourceValue) bool {
	return normalize(a.Value) == normalize(b.Value)
}
