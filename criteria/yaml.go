package criteria

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout for criteria definitions:
//
//	criteria:
//	  - name: Invoice inside project period
//	    logic_type: DATE_RANGE
//	    severity: error
//	    is_active: true
//	    rule_config:
//	      field: invoice_date
//	      min_date: project_start
//	      max_date: project_end
type File struct {
	Criteria []*Criterion `yaml:"criteria"`
}

// LoadYAML decodes criteria from r. Unknown keys are rejected.
func LoadYAML(r io.Reader) ([]*Criterion, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode criteria: %w", err)
	}
	return f.Criteria, nil
}

// LoadYAMLFile reads criteria from a file path.
func LoadYAMLFile(path string) ([]*Criterion, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open criteria file: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}
