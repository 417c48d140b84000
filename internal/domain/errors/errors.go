// Package errors defines the domain-level error taxonomy: UsageError,
// DomainError, EngineError, and TimeoutError. Each captures a stack
// trace at construction (via runtime/debug.Stack, not a third-party
// backtrace library — the teacher repo has none in its dependency set
// and stdlib already gives byte-for-byte what the spec asks for: "each
// error captures a stack/backtrace at construction").
package errors

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ResourceKind names the kind of resource a DomainError refers to.
type ResourceKind string

// ResourceKindDataset is the only resource kind the core model knows about.
const ResourceKindDataset ResourceKind = "Dataset"

// UsageError reports an invalid CLI argument combination.
type UsageError struct {
	Message string
	stack   string
}

// NewUsageError constructs a UsageError with a captured stack trace.
func NewUsageError(message string) *UsageError {
	return &UsageError{Message: message, stack: string(debug.Stack())}
}

func (e *UsageError) Error() string { return e.Message }

// Stack returns the captured backtrace.
func (e *UsageError) Stack() string { return e.stack }

// DomainErrorKind discriminates the DomainError variants.
type DomainErrorKind int

// DomainError kinds.
const (
	DoesNotExist DomainErrorKind = iota
	AlreadyExists
	MissingReference
	DanglingReference
)

// FromIDs is one (kind, id) pair referencing a dataset, used by
// DanglingReference to list every dependent.
type FromIDs struct {
	Kind ResourceKind
	ID   string
}

// DomainError reports a repository consistency violation.
type DomainError struct {
	Kind         DomainErrorKind
	ResourceKind ResourceKind
	ID           string
	FromKind     ResourceKind
	FromID       string
	ToKind       ResourceKind
	ToID         string
	FromKindsIDs []FromIDs
	stack        string
}

func (e *DomainError) Error() string {
	switch e.Kind {
	case DoesNotExist:
		return fmt.Sprintf("%s %s does not exist", e.ResourceKind, e.ID)
	case AlreadyExists:
		return fmt.Sprintf("%s %s already exists", e.ResourceKind, e.ID)
	case MissingReference:
		return fmt.Sprintf("%s %s references non existent %s %s", e.FromKind, e.FromID, e.ToKind, e.ToID)
	case DanglingReference:
		return fmt.Sprintf("%s %s is referenced by %v", e.ToKind, e.ToID, e.FromKindsIDs)
	default:
		return "domain error"
	}
}

// Stack returns the captured backtrace.
func (e *DomainError) Stack() string { return e.stack }

// NewDoesNotExist builds a DoesNotExist DomainError.
func NewDoesNotExist(kind ResourceKind, id string) *DomainError {
	return &DomainError{Kind: DoesNotExist, ResourceKind: kind, ID: id, stack: string(debug.Stack())}
}

// NewAlreadyExists builds an AlreadyExists DomainError.
func NewAlreadyExists(kind ResourceKind, id string) *DomainError {
	return &DomainError{Kind: AlreadyExists, ResourceKind: kind, ID: id, stack: string(debug.Stack())}
}

// NewMissingReference builds a MissingReference DomainError.
func NewMissingReference(fromKind ResourceKind, fromID string, toKind ResourceKind, toID string) *DomainError {
	return &DomainError{
		Kind: MissingReference, FromKind: fromKind, FromID: fromID,
		ToKind: toKind, ToID: toID, stack: string(debug.Stack()),
	}
}

// NewDanglingReference builds a DanglingReference DomainError.
func NewDanglingReference(fromKindsIDs []FromIDs, toKind ResourceKind, toID string) *DomainError {
	return &DomainError{
		Kind: DanglingReference, FromKindsIDs: fromKindsIDs,
		ToKind: toKind, ToID: toID, stack: string(debug.Stack()),
	}
}

// EngineErrorKind discriminates the failure modes of an engine invocation.
type EngineErrorKind int

// EngineError kinds.
const (
	EngineNotFound EngineErrorKind = iota
	EngineProcessError
	EngineContractError
	EngineIoError
	EngineInternal
)

// EngineError reports a failure while invoking the out-of-process engine.
type EngineError struct {
	Kind  EngineErrorKind
	Name  string
	Cause error
	stack string
}

func (e *EngineError) Error() string {
	switch e.Kind {
	case EngineNotFound:
		return fmt.Sprintf("engine %q not found", e.Name)
	case EngineProcessError:
		return fmt.Sprintf("engine %q process error: %v", e.Name, e.Cause)
	case EngineContractError:
		return fmt.Sprintf("engine %q contract error: %v", e.Name, e.Cause)
	case EngineIoError:
		return fmt.Sprintf("engine %q io error: %v", e.Name, e.Cause)
	default:
		return fmt.Sprintf("engine %q internal error: %v", e.Name, e.Cause)
	}
}

func (e *EngineError) Unwrap() error { return e.Cause }

// Stack returns the captured backtrace.
func (e *EngineError) Stack() string { return e.stack }

// NewEngineError builds an EngineError of the given kind.
func NewEngineError(kind EngineErrorKind, name string, cause error) *EngineError {
	return &EngineError{Kind: kind, Name: name, Cause: cause, stack: string(debug.Stack())}
}

// CircularDependencyError reports a batch of dataset snapshots whose
// dependency-ordering pass made no progress for a full rotation of the
// queue (the literal queue/requeue loop never terminates
// on a cycle, so a no-progress full pass is treated as a cycle).
type CircularDependencyError struct {
	IDs   []string
	stack string
}

// NewCircularDependencyError builds a CircularDependencyError for the
// given (still pending) dataset ids.
func NewCircularDependencyError(ids []string) *CircularDependencyError {
	return &CircularDependencyError{IDs: ids, stack: string(debug.Stack())}
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency among datasets: %v", e.IDs)
}

// Stack returns the captured backtrace.
func (e *CircularDependencyError) Stack() string { return e.stack }

// TimeoutError reports a bounded-wait failure for an external resource.
type TimeoutError struct {
	Resource string
	stack    string
}

// NewTimeoutError builds a TimeoutError.
func NewTimeoutError(resource string) *TimeoutError {
	return &TimeoutError{Resource: resource, stack: string(debug.Stack())}
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s", e.Resource)
}

// Stack returns the captured backtrace.
func (e *TimeoutError) Stack() string { return e.stack }

// IngestError wraps a failure from the ingest pipeline, annotated with
// the dataset id at the presentation layer by the caller.
type IngestError struct {
	DatasetID string
	Cause     error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.DatasetID, e.Cause)
}

func (e *IngestError) Unwrap() error { return e.Cause }

// TransformError wraps a failure from the transform pipeline, annotated
// with the dataset id at the presentation layer by the caller.
type TransformError struct {
	DatasetID string
	Cause     error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %v", e.DatasetID, e.Cause)
}

func (e *TransformError) Unwrap() error { return e.Cause }

// Internal wraps an unexpected I/O or invariant-violation error. By convention,
// repository inconsistencies (missing summary, broken manifest) are
// fatal asserts, not user errors; callers should still propagate them
// through the normal error path so the pull executor can report them.
func Internal(context string, cause error) error {
	return fmt.Errorf("internal error: %s: %w", context, cause)
}

// As is re-exported for callers that want errors.As without importing
// both this package and the standard errors package.
func As(err error, target any) bool { return errors.As(err, target) }

// Is is re-exported for callers that want errors.Is without importing
// both this package and the standard errors package.
func Is(err, target error) bool { return errors.Is(err, target) }
