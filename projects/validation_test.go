package projects

import (
	"strings"
	"testing"
	"time"
)

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestValidateProject(t *testing.T) {
	tests := []struct {
		name    string
		project Project
		wantErr string
	}{
		{"valid", Project{ID: "p-2025.01", Name: "Research grant", StartDate: day("2025-01-01"), EndDate: day("2025-12-31")}, ""},
		{"open ended", Project{ID: "p1", Name: "Open", StartDate: day("2025-01-01")}, ""},
		{"single day", Project{ID: "p1", Name: "One day", StartDate: day("2025-05-05"), EndDate: day("2025-05-05")}, ""},
		{"empty id", Project{Name: "x"}, "cannot be empty"},
		{"long id", Project{ID: strings.Repeat("a", 101), Name: "x"}, "maximum of 100"},
		{"bad id", Project{ID: "-p1", Name: "x"}, "must match pattern"},
		{"space in id", Project{ID: "p 1", Name: "x"}, "must match pattern"},
		{"empty name", Project{ID: "p1", Name: "  "}, "name cannot be empty"},
		{"long name", Project{ID: "p1", Name: strings.Repeat("n", 201)}, "maximum of 200"},
		{"reversed dates", Project{ID: "p1", Name: "x", StartDate: day("2025-12-31"), EndDate: day("2025-01-01")}, "before start_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProject(tt.project)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateProject() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateProject() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
