package graph

import (
	"errors"
	"fmt"
)

// ErrIntegrity marks a defect in graph construction, never a user input error.
var ErrIntegrity = errors.New("graph integrity violation")

type IntegrityError struct {
	Reason     string
	Node       NodeID
	Dependency NodeID
}

func (e *IntegrityError) Error() string {
	if e.Dependency != "" {
		return fmt.Sprintf("%s: %s (node %s, dependency %s)", ErrIntegrity, e.Reason, e.Node, e.Dependency)
	}
	return fmt.Sprintf("%s: %s (node %s)", ErrIntegrity, e.Reason, e.Node)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }
