// Package errors provides error types and classification for feed synchronization.
// It pairs an operation-scoped Error type with stable error codes so callers can
// distinguish fatal cycle conditions from transport failures.
package errors

// ErrorCode identifies the category of a synchronization failure.
// Codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Configuration errors.

	// CodeInvalidConfig indicates a missing or invalid configuration key.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// Schema errors.

	// CodeSchemaMismatch indicates a tracked entity has no matching schema bucket.
	CodeSchemaMismatch ErrorCode = "SCHEMA_MISMATCH"

	// CodeMalformedRow indicates a delimited row could not be parsed.
	CodeMalformedRow ErrorCode = "MALFORMED_ROW"

	// Manifest errors.

	// CodeManifestIntegrity indicates a manifest references an unknown entity.
	CodeManifestIntegrity ErrorCode = "MANIFEST_INTEGRITY"

	// CodeTimestampParse indicates a manifest key has no parsable timestamp.
	CodeTimestampParse ErrorCode = "TIMESTAMP_PARSE"

	// Transfer errors.

	// CodeTransfer indicates reading from the object store or writing locally failed.
	CodeTransfer ErrorCode = "TRANSFER_FAILED"

	// CodeNotFound indicates a requested object or entity does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeForbidden indicates the credentials lack permission for the operation.
	CodeForbidden ErrorCode = "FORBIDDEN"

	// Usage errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidState indicates an operation was invoked out of cycle order.
	CodeInvalidState ErrorCode = "INVALID_STATE"

	// CodeInternal indicates an internal error occurred.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Fatal reports whether errors with this code abort the current synchronization cycle.
func (c ErrorCode) Fatal() bool {
	switch c {
	case CodeInvalidConfig, CodeSchemaMismatch, CodeMalformedRow,
		CodeManifestIntegrity, CodeTimestampParse:
		return true
	default:
		return false
	}
}
