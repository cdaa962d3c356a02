package criteria

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/liamcoop/precheck/validators"
	"github.com/shopspring/decimal"
)

// Symbolic date references.
const (
	RefProjectStart = "project_start"
	RefProjectEnd   = "project_end"
	RefToday        = "today"
)

// lookupField resolves a dot path such as "supplier.address.city" in data.
// Keys of a nested map win over its "value" key; an extracted-field envelope
// ({"value": ...}) is only stepped into when the next key is not a sibling,
// and the final value is unwrapped.
func lookupField(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		next, ok := child(cur, part)
		if !ok {
			next, ok = child(unwrap(cur), part)
		}
		if !ok {
			return nil, false
		}
		cur = next
	}
	return unwrap(cur), true
}

func child(v any, key string) (any, bool) {
	m, ok := asMap(v)
	if !ok {
		return nil, false
	}
	c, ok := m[key]
	return c, ok
}

// unwrap returns the inner value of a {"value": ...} envelope.
func unwrap(v any) any {
	if m, ok := asMap(v); ok {
		if inner, has := m["value"]; has {
			return inner
		}
	}
	return v
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	}
	return nil, false
}

// asList returns v as a slice of values when it is any kind of slice or array.
func asList(v any) ([]any, bool) {
	if l, ok := v.([]any); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// isEmpty extends validators.IsAbsent to empty collections.
func isEmpty(v any) bool {
	if validators.IsAbsent(v) {
		return true
	}
	if l, ok := asList(v); ok {
		return len(l) == 0
	}
	if m, ok := asMap(v); ok {
		return len(m) == 0
	}
	return false
}

// toNumber converts numeric values and numeric strings. Plain decimal
// strings ("1234.56") are tried before locale-aware amount parsing.
func toNumber(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Decimal{}, false
	case decimal.Decimal:
		return t, true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		s := strings.TrimSpace(t)
		if d, err := decimal.NewFromString(s); err == nil {
			return d, true
		}
		return validators.ParseAmount(s, validators.LocaleDE)
	case bool:
		return decimal.Decimal{}, false
	}
	return validators.ParseAmount(v, validators.LocaleDE)
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number, decimal.Decimal:
		return true
	}
	return false
}

// toText renders a value for string comparison.
func toText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case time.Time:
		return t.Format(time.DateOnly)
	}
	if d, ok := toNumber(v); ok && isNumeric(v) {
		return d.String()
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// resolveDate turns a reference token or a literal into a date.
func (en *Engine) resolveDate(ref any) (time.Time, error) {
	if s, ok := ref.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case RefProjectStart:
			if en.project.StartDate == nil {
				return time.Time{}, fmt.Errorf("reference %s: project has no start date", RefProjectStart)
			}
			return dateOnly(*en.project.StartDate), nil
		case RefProjectEnd:
			if en.project.EndDate == nil {
				return time.Time{}, fmt.Errorf("reference %s: project has no end date", RefProjectEnd)
			}
			return dateOnly(*en.project.EndDate), nil
		case RefToday:
			return dateOnly(en.now()), nil
		}
	}
	d, ok := validators.ParseDate(ref)
	if !ok {
		return time.Time{}, fmt.Errorf("cannot parse date %v", ref)
	}
	return d, nil
}

func isDateRef(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case RefProjectStart, RefProjectEnd, RefToday:
		return true
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
