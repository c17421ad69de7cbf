package aop

import "fmt"

// NilArgumentError represents a required argument that was nil or zero.
type NilArgumentError struct {
	Name string
}

func (e *NilArgumentError) Error() string {
	return fmt.Sprintf("nil argument: %s", e.Name)
}

// InvalidArgumentError represents an argument that is present but unusable.
type InvalidArgumentError struct {
	Name   string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Name, e.Reason)
}

// InvalidTypeError represents a type that fails a structural requirement.
type InvalidTypeError struct {
	Name   string
	Type   string
	Reason string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("invalid %s %s: %s", e.Name, e.Type, e.Reason)
}

// InvalidSortOrderError represents an explicit sort order below one.
type InvalidSortOrderError struct {
	SortOrder int
}

func (e *InvalidSortOrderError) Error() string {
	return fmt.Sprintf("sort order must be a positive integer, got %d", e.SortOrder)
}

// NoServiceRegisteredError represents an aspect added before any service.
type NoServiceRegisteredError struct {
	Aspect string
}

func (e *NoServiceRegisteredError) Error() string {
	return fmt.Sprintf("a service must be registered to apply aspect %s to", e.Aspect)
}

// UnsupportedOperationError represents an operation the receiver cannot perform.
type UnsupportedOperationError struct {
	Operation string
	Reason    string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s is not supported: %s", e.Operation, e.Reason)
}

// MethodNotFoundError represents a method name missing from a contract.
type MethodNotFoundError struct {
	Contract string
	Method   string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("method %s not found on %s", e.Method, e.Contract)
}

// CircularDependencyError represents a circular dependency detection error.
type CircularDependencyError struct {
	Type string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected for type: %s", e.Type)
}

// BindingNotFoundError represents a missing binding error.
type BindingNotFoundError struct {
	Type string
}

func (e *BindingNotFoundError) Error() string {
	return fmt.Sprintf("no binding found for type: %s", e.Type)
}

// InitializationError represents a service initialization failure.
type InitializationError struct {
	Type string
	Err  error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialization failed for type %s: %v", e.Type, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// MissingContextValueError represents a missing required context value.
type MissingContextValueError struct {
	Key string
}

func (e *MissingContextValueError) Error() string {
	return fmt.Sprintf("required context value not found: %s", e.Key)
}

// TypeMismatchError represents a type assertion failure.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Got)
}

// ShutdownError represents a service shutdown failure.
type ShutdownError struct {
	Type string
	Err  error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("shutdown failed for type %s: %v", e.Type, e.Err)
}

func (e *ShutdownError) Unwrap() error {
	return e.Err
}

// ProxyNotRegisteredError represents a contract with aspects but no proxy constructor.
type ProxyNotRegisteredError struct {
	Contract string
}

func (e *ProxyNotRegisteredError) Error() string {
	return fmt.Sprintf("no proxy registered for contract: %s", e.Contract)
}

// AspectCreationError represents a factory that failed to produce its aspect.
type AspectCreationError struct {
	Factory string
	Err     error
}

func (e *AspectCreationError) Error() string {
	return fmt.Sprintf("aspect creation failed for factory %s: %v", e.Factory, e.Err)
}

func (e *AspectCreationError) Unwrap() error {
	return e.Err
}
