package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a violation.
type Kind string

const (
	KindSchema                 Kind = "schema_violation"
	KindNameCollision          Kind = "name_collision"
	KindUnsupportedIntegration Kind = "unsupported_integration_type"
	KindPolicyDenied           Kind = "policy_denied"
)

// Violation is one problem found in a configuration document.
type Violation struct {
	Kind   Kind   `json:"kind" yaml:"kind"`
	Entity string `json:"entity,omitempty" yaml:"entity,omitempty"`
	Path   string `json:"path" yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
	// Other is the location of the first declaration for a name collision.
	Other string `json:"other,omitempty" yaml:"other,omitempty"`
}

func (v Violation) String() string {
	if v.Entity != "" {
		return fmt.Sprintf("%s [%s]: %s", v.Path, v.Entity, v.Reason)
	}
	return fmt.Sprintf("%s: %s", v.Path, v.Reason)
}

// ViolationError carries every violation found by one validation pass.
type ViolationError struct {
	Violations []Violation
}

func (e *ViolationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("configuration has %d violation(s): %s", len(e.Violations), strings.Join(parts, "; "))
}

// Count returns the number of violations of the given kind.
func (e *ViolationError) Count(kind Kind) int {
	n := 0
	for _, v := range e.Violations {
		if v.Kind == kind {
			n++
		}
	}
	return n
}

// AsViolations extracts the violation list from err, if it carries one.
func AsViolations(err error) ([]Violation, bool) {
	var ve *ViolationError
	if errors.As(err, &ve) {
		return ve.Violations, true
	}
	return nil, false
}
