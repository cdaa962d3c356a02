package projects

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateProject checks a project before it is stored.
func ValidateProject(p Project) error {
	if err := validateIdentifier(p.ID); err != nil {
		return fmt.Errorf("invalid project id %q: %w", p.ID, err)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project %q: name cannot be empty", p.ID)
	}
	if len(p.Name) > 200 {
		return fmt.Errorf("project %q: name length %d exceeds maximum of 200 characters", p.ID, len(p.Name))
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return fmt.Errorf("project %q: end_date %s is before start_date %s",
			p.ID, p.EndDate.Format("2006-01-02"), p.StartDate.Format("2006-01-02"))
	}
	return nil
}

// validateIdentifier accepts 1-100 characters starting with a letter or digit,
// followed by letters, digits, '_', '.' or '-'.
func validateIdentifier(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(id) > 100 {
		return fmt.Errorf("identifier length %d exceeds maximum of 100 characters", len(id))
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("must match pattern %s", identifierPattern)
	}
	return nil
}
