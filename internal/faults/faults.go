// Package faults defines the error taxonomy shared by the graph engine,
// the summarization pipeline and the storage layer.
//
// Every failure that crosses a tool boundary is a *Error carrying a
// Category (what kind of failure) and a Code (which rule failed). Codes
// are comparable sentinels, so callers can write:
//
//	if errors.Is(err, faults.ContainmentCycle) { ... }
package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Category groups codes into the handful of outcomes callers branch on.
type Category string

const (
	CategoryContract    Category = "contract_violation"
	CategoryPatch       Category = "patch_failure"
	CategoryAncestry    Category = "ancestry_failure"
	CategoryPersistence Category = "persistence_failure"
	CategoryUnsupported Category = "unsupported"
	CategoryNotFound    Category = "not_found"
)

// Code identifies a single failure rule. The zero value is not a valid code.
type Code struct {
	name     string
	category Category
}

// Name returns the code's identifier, e.g. "SelfContainment".
func (c Code) Name() string { return c.name }

// Category returns the category the code belongs to.
func (c Code) Category() Category { return c.category }

func (c Code) Error() string { return c.name }

// Contract violations.
var (
	InvalidNodeType        = Code{"InvalidNodeType", CategoryContract}
	InvalidStatus          = Code{"InvalidStatus", CategoryContract}
	InvalidParentReference = Code{"InvalidParentReference", CategoryContract}
	MissingGraphMembership = Code{"MissingGraphMembership", CategoryContract}
	SelfContainment        = Code{"SelfContainment", CategoryContract}
	UnknownGraphContainer  = Code{"UnknownGraphContainer", CategoryContract}
	ContainmentCycle       = Code{"ContainmentCycle", CategoryContract}
	CausalCycle            = Code{"CausalCycle", CategoryContract}
	InvalidNode            = Code{"InvalidNode", CategoryContract}
	InvalidDocument        = Code{"InvalidDocument", CategoryContract}
)

// Patch failures.
var (
	PatchApplicationError = Code{"PatchApplicationError", CategoryPatch}
	MalformedPatch        = Code{"MalformedPatch", CategoryPatch}
)

// Ancestry failures.
var (
	MessageNotFound      = Code{"MessageNotFound", CategoryAncestry}
	ConversationMismatch = Code{"ConversationMismatch", CategoryAncestry}
	CircularAncestry     = Code{"CircularAncestry", CategoryAncestry}
)

// Persistence failures.
var (
	StorageError  = Code{"StorageError", CategoryPersistence}
	StaleDocument = Code{"StaleDocument", CategoryPersistence}
)

// Input the core does not understand.
var (
	UnsupportedMode  = Code{"UnsupportedMode", CategoryUnsupported}
	UnsupportedLevel = Code{"UnsupportedLevel", CategoryUnsupported}
	// InvalidArgument marks a tool argument that is missing or malformed.
	InvalidArgument = Code{"InvalidArgument", CategoryUnsupported}
)

// Lookups that found nothing.
var (
	VersionNotFound = Code{"VersionNotFound", CategoryNotFound}
)

// Error is the concrete error type produced by this module's core packages.
type Error struct {
	Code    Code
	Message string
	// Path holds ids involved in the failure in traversal order, e.g. the
	// nodes forming a containment cycle.
	Path []string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.name)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Path) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Path, " -> "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is this error's code.
func (e *Error) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.Code
}

// New builds an *Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around a cause. A nil cause yields nil.
func Wrap(code Code, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithPath attaches a diagnostic id path to an *Error.
func (e *Error) WithPath(path ...string) *Error {
	e.Path = append([]string(nil), path...)
	return e
}

// Storage wraps a storage collaborator failure. The storage-provided detail
// is kept verbatim in the wrapped error. Errors that already carry a code
// are returned unchanged.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Code: StorageError, Message: op, Err: err}
}

// CodeOf returns the code carried by err, if any.
func CodeOf(err error) (Code, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code, true
	}
	var c Code
	if errors.As(err, &c) {
		return c, true
	}
	return Code{}, false
}
