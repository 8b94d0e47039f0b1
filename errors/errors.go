package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error represents a synchronization failure with context about the operation that failed.
// It wraps the underlying error from the object store, filesystem, or parser.
type Error struct {
	// Op is the operation that failed (e.g., "parseFeed", "loadManifest", "download")
	Op string

	// Code classifies the failure. Derived from Err when not set explicitly.
	Code ErrorCode

	// Entity is the entity identifier (if applicable)
	Entity string

	// Key is the object key or local path (if applicable)
	Key string

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Entity != "" && e.Key != "" {
		return fmt.Sprintf("feedsync.%s entity %s %s: %v", e.Op, e.Entity, e.Key, e.Err)
	}
	if e.Entity != "" {
		return fmt.Sprintf("feedsync.%s entity %s: %v", e.Op, e.Entity, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("feedsync.%s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("feedsync.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithEntity adds entity context to an existing error.
func (e *Error) WithEntity(entity string) *Error {
	e.Entity = entity
	return e
}

// WithKey adds object key or path context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// WithCode overrides the derived error code.
func (e *Error) WithCode(code ErrorCode) *Error {
	e.Code = code
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:   op,
		Code: CodeOf(err),
		Err:  err,
	}
}

// NewEntityError creates a new Error with entity context.
func NewEntityError(op, entity string, err error) *Error {
	return NewError(op, err).WithEntity(entity)
}

// Sentinel errors for synchronization failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrMissingConfig indicates a mandatory configuration key is absent
	ErrMissingConfig = errors.New("feedsync: missing configuration")

	// ErrSchemaMismatch indicates a tracked entity has no discovered schema bucket
	ErrSchemaMismatch = errors.New("feedsync: schema not found for entity")

	// ErrMalformedRow indicates a delimited row has the wrong shape
	ErrMalformedRow = errors.New("feedsync: malformed row")

	// ErrManifestIntegrity indicates a manifest row references an unconfigured entity
	ErrManifestIntegrity = errors.New("feedsync: manifest references unknown entity")

	// ErrTimestampParse indicates a manifest key lacks a parsable trailing timestamp
	ErrTimestampParse = errors.New("feedsync: manifest timestamp not parsable")

	// ErrTransfer indicates a failure reading from the object store or writing locally
	ErrTransfer = errors.New("feedsync: transfer failed")

	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("feedsync: object not found")

	// ErrEntityNotFound indicates that the requested entity is not tracked
	ErrEntityNotFound = errors.New("feedsync: entity not found")

	// ErrAccessDenied indicates that access to the object store was denied
	ErrAccessDenied = errors.New("feedsync: access denied")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("feedsync: invalid input")

	// ErrInvalidState indicates an operation was called before its prerequisite phase
	ErrInvalidState = errors.New("feedsync: invalid cycle state")
)

// CodeOf returns the error code for err, walking the wrap chain.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingConfig):
		return CodeInvalidConfig
	case errors.Is(err, ErrSchemaMismatch):
		return CodeSchemaMismatch
	case errors.Is(err, ErrMalformedRow):
		return CodeMalformedRow
	case errors.Is(err, ErrManifestIntegrity):
		return CodeManifestIntegrity
	case errors.Is(err, ErrTimestampParse):
		return CodeTimestampParse
	case errors.Is(err, ErrObjectNotFound), errors.Is(err, ErrEntityNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAccessDenied):
		return CodeForbidden
	case errors.Is(err, ErrTransfer):
		return CodeTransfer
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	default:
		return CodeUnknown
	}
}

// ConfigError reports every missing mandatory configuration key at once.
type ConfigError struct {
	Missing []string
	Invalid map[string]string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing mandatory keys: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		keys := make([]string, 0, len(e.Invalid))
		for k := range e.Invalid {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, e.Invalid[k]))
		}
	}
	return "feedsync: invalid configuration: " + strings.Join(parts, "; ")
}

// Is makes ConfigError match ErrMissingConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrMissingConfig
}

// IsFatal reports whether err aborts the current synchronization cycle.
func IsFatal(err error) bool {
	return CodeOf(err).Fatal()
}

// IsObjectNotFound checks if an error indicates that an object was not found.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// IsSchemaMismatch checks if an error indicates a missing schema bucket.
func IsSchemaMismatch(err error) bool {
	return errors.Is(err, ErrSchemaMismatch)
}

// IsManifestIntegrity checks if an error indicates a manifest integrity failure.
func IsManifestIntegrity(err error) bool {
	return errors.Is(err, ErrManifestIntegrity)
}

// IsTransfer checks if an error indicates a transfer failure.
func IsTransfer(err error) bool {
	return errors.Is(err, ErrTransfer)
}
