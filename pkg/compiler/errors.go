package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass names the pipeline stage a compile failure belongs to. The
// class is recorded per device in the run ledger and labels the error
// counter, so two runs that fail the same way aggregate the same way.
type ErrorClass string

const (
	// ErrorClassConfig indicates a malformed configuration file or an
	// unusable command line, such as a selector that does not parse.
	ErrorClassConfig ErrorClass = "config"

	// ErrorClassInventory indicates a device or context blob that could
	// not be loaded, or a selection naming a device the inventory does
	// not have.
	ErrorClassInventory ErrorClass = "inventory"

	// ErrorClassResolve indicates a context merge failure: an ambiguous
	// equal-weight tie on the deciding tier, or a blob payload that does
	// not decode.
	ErrorClassResolve ErrorClass = "resolve"

	// ErrorClassValidate indicates a resolved record missing required
	// fields or violating a structural invariant.
	ErrorClassValidate ErrorClass = "validate"

	// ErrorClassRender indicates the renderer refused the record. The
	// renderer only refuses dangling references, so this class usually
	// points at a validation gap.
	ErrorClassRender ErrorClass = "render"

	// ErrorClassPolicy indicates a blocking policy violation.
	ErrorClassPolicy ErrorClass = "policy"

	// ErrorClassArtifact indicates the artifact directory could not be
	// read, diffed, or written.
	ErrorClassArtifact ErrorClass = "artifact"

	// ErrorClassStore indicates the run ledger rejected a write.
	ErrorClassStore ErrorClass = "store"

	// ErrorClassMirror indicates an artifact transfer failure.
	ErrorClassMirror ErrorClass = "mirror"

	// ErrorClassInternal indicates a cancelled run or a bug.
	ErrorClassInternal ErrorClass = "internal"
)

// CompileError is a classified error with device and record-path context.
type CompileError struct {
	// Class is the pipeline stage that failed.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Device is the hostname the failure is scoped to, if any.
	Device string `json:"device,omitempty"`

	// Path is the record path the failure points at, if any.
	Path string `json:"path,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Class, e.Message)
	switch {
	case e.Device != "" && e.Path != "":
		fmt.Fprintf(&b, " (device=%s, path=%s)", e.Device, e.Path)
	case e.Device != "":
		fmt.Fprintf(&b, " (device=%s)", e.Device)
	case e.Path != "":
		fmt.Fprintf(&b, " (path=%s)", e.Path)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *CompileError) Is(target error) bool {
	t, ok := target.(*CompileError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewError creates a classified compile error.
func NewError(class ErrorClass, message string, err error) *CompileError {
	return &CompileError{
		Class:   class,
		Message: message,
		Err:     err,
	}
}

// WithDevice adds device context to an error.
func (e *CompileError) WithDevice(hostname string) *CompileError {
	e.Device = hostname
	return e
}

// WithPath adds record-path context to an error.
func (e *CompileError) WithPath(path string) *CompileError {
	e.Path = path
	return e
}

// WithCode adds an error code to an error.
func (e *CompileError) WithCode(code string) *CompileError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *CompileError) WithDetail(key string, value interface{}) *CompileError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// AsCompileError extracts a CompileError from an error chain.
func AsCompileError(err error) (*CompileError, bool) {
	var e *CompileError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsClass reports whether the error carries the given class.
func IsClass(err error, class ErrorClass) bool {
	if e, ok := AsCompileError(err); ok {
		return e.Class == class
	}
	return false
}

// ClassOf returns the error's class. Unclassified errors fall back to
// internal, so every failure gets a ledger class and a metric label.
func ClassOf(err error) ErrorClass {
	if e, ok := AsCompileError(err); ok {
		return e.Class
	}
	return ErrorClassInternal
}

// Common error codes.
const (
	ErrCodeBadSelector   = "BAD_SELECTOR"
	ErrCodeUnknownDevice = "UNKNOWN_DEVICE"
	ErrCodeAmbiguous     = "AMBIGUOUS_CONTEXT"
	ErrCodeParse         = "PARSE_ERROR"
	ErrCodeMissingPaths  = "MISSING_PATHS"
	ErrCodeInvalidValue  = "INVALID_VALUE"
	ErrCodeDanglingRef   = "DANGLING_REFERENCE"
	ErrCodePolicyDenied  = "POLICY_DENIED"
	ErrCodeWriteFailed   = "WRITE_FAILED"
	ErrCodeCancelled     = "CANCELLED"
	ErrCodeInternal      = "INTERNAL_ERROR"
)
