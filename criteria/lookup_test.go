package criteria

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLookupField(t *testing.T) {
	data := map[string]any{
		"order":    map[string]any{"value": 100, "currency": "EUR"},
		"supplier": map[string]any{"value": map[string]any{"name": "ACME GmbH"}, "confidence": 0.9},
		"gross":    map[string]any{"value": "119,00", "raw_text": "119,00 EUR"},
		"address":  map[string]any{"city": map[string]any{"value": "Berlin"}},
	}

	tests := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"order.currency", "EUR", true},
		{"order.value", 100, true},
		{"order", 100, true},
		{"supplier.name", "ACME GmbH", true},
		{"supplier.confidence", 0.9, true},
		{"gross", "119,00", true},
		{"address.city", "Berlin", true},
		{"order.amount", nil, false},
		{"missing", nil, false},
		{"", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := lookupField(data, tt.path)
			if ok != tt.wantOK {
				t.Fatalf("lookupField(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("lookupField(%q) mismatch (-want +got):\n%s", tt.path, diff)
			}
		})
	}
}
