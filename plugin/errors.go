package plugin

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is checks across the lifecycle error taxonomy.
var (
	ErrInvalidDeclaration   = errors.New("invalid plugin declaration")
	ErrInitialization       = errors.New("plugin initialization failed")
	ErrInterrupt            = errors.New("plugin interrupt failed")
	ErrUnresolvedDependency = errors.New("unresolved plugin dependencies")
	ErrActiveDependants     = errors.New("plugin has active dependants")
	ErrStrategyNotFound     = errors.New("initializer strategy not found")
)

// DeclarationError reports a structurally invalid declaration: malformed
// identity, self dependency, direct mutual dependency, or unsatisfied
// metadata requirements.
type DeclarationError struct {
	Class  Class
	Reason string
}

func (e *DeclarationError) Error() string {
	return fmt.Sprintf("declaration %s: %s", e.Class, e.Reason)
}

func (e *DeclarationError) Is(target error) bool {
	return target == ErrInvalidDeclaration
}

// InitializationError wraps a failure raised while starting a record.
type InitializationError struct {
	Class Class
	Err   error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Class, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

func (e *InitializationError) Is(target error) bool {
	return target == ErrInitialization
}

// InterruptError wraps a failure raised while closing a record. The record is
// still forced back to idle after the failed teardown.
type InterruptError struct {
	Class Class
	Err   error
}

func (e *InterruptError) Error() string {
	return fmt.Sprintf("close %s: %v", e.Class, e.Err)
}

func (e *InterruptError) Unwrap() error { return e.Err }

func (e *InterruptError) Is(target error) bool {
	return target == ErrInterrupt
}

// DependencyError reports a load batch that cannot make progress: the Stuck
// classes form a cycle or depend on classes that are neither running nor part
// of the batch.
type DependencyError struct {
	Stuck []Class
}

func (e *DependencyError) Error() string {
	names := make([]string, 0, len(e.Stuck))
	for _, c := range e.Stuck {
		names = append(names, c.String())
	}
	return fmt.Sprintf("cyclic or unsatisfiable dependencies among [%s]",
		strings.Join(names, ", "))
}

func (e *DependencyError) Is(target error) bool {
	return target == ErrUnresolvedDependency
}

// DependantError reports a close refused because other running plugins still
// depend on the record.
type DependantError struct {
	Class  Class
	Active []Class
}

func (e *DependantError) Error() string {
	names := make([]string, 0, len(e.Active))
	for _, c := range e.Active {
		names = append(names, c.String())
	}
	return fmt.Sprintf("close %s refused, active dependants [%s]",
		e.Class, strings.Join(names, ", "))
}

func (e *DependantError) Is(target error) bool {
	return target == ErrActiveDependants
}
