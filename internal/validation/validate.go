// Package validation checks bucket names, object keys and local file names
// before they reach the object store or the staging area.
package validation

import (
	"path"
	"strings"
	"unicode"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
)

const maxKeyLength = 1024

// ValidateBucketName validates that a bucket name is DNS-compliant according to S3 rules.
func ValidateBucketName(bucket string) error {
	invalid := func(msg string) error {
		return ferrors.NewError("validateBucketName", ferrors.ErrInvalidInput).
			WithKey(bucket).
			WithMessage(msg)
	}

	if bucket == "" {
		return invalid("bucket name cannot be empty")
	}
	if len(bucket) < 3 || len(bucket) > 63 {
		return invalid("bucket name must be between 3 and 63 characters long")
	}
	for _, char := range bucket {
		if !isValidBucketChar(char) {
			return invalid("bucket name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}
	if bucket[0] == '-' || bucket[0] == '.' || bucket[len(bucket)-1] == '-' || bucket[len(bucket)-1] == '.' {
		return invalid("bucket name cannot start or end with a hyphen or dot")
	}
	if isIPAddress(bucket) {
		return invalid("bucket name cannot be formatted as an IP address")
	}
	if strings.Contains(bucket, "..") {
		return invalid("bucket name cannot contain two adjacent periods")
	}
	return nil
}

// ValidateKey validates an object key read from configuration or a manifest.
func ValidateKey(key string) error {
	if key == "" {
		return ferrors.NewError("validateKey", ferrors.ErrInvalidInput).
			WithMessage("object key cannot be empty")
	}
	return validateKeyText("validateKey", key)
}

// ValidatePrefix validates a listing prefix. An empty prefix lists the whole bucket.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	return validateKeyText("validatePrefix", prefix)
}

// ValidateLocalName validates a file name derived from an object key before it
// is joined under the staging root.
func ValidateLocalName(name string) error {
	switch {
	case name == "", name == ".", name == "..", name == "/":
		return ferrors.NewError("validateLocalName", ferrors.ErrInvalidInput).
			WithKey(name).
			WithMessage("object key does not name a file")
	case strings.ContainsAny(name, `/\`):
		return ferrors.NewError("validateLocalName", ferrors.ErrInvalidInput).
			WithKey(name).
			WithMessage("local name cannot contain path separators")
	case hasControlCharacters(name):
		return ferrors.NewError("validateLocalName", ferrors.ErrInvalidInput).
			WithKey(name).
			WithMessage("local name cannot contain control characters")
	}
	return nil
}

func validateKeyText(op, key string) error {
	if len(key) > maxKeyLength {
		return ferrors.NewError(op, ferrors.ErrInvalidInput).
			WithKey(key).
			WithMessage("object key cannot exceed 1024 characters")
	}
	if hasPathTraversal(key) {
		return ferrors.NewError(op, ferrors.ErrInvalidInput).
			WithKey(key).
			WithMessage("object key cannot contain path traversal sequences")
	}
	if hasControlCharacters(key) {
		return ferrors.NewError(op, ferrors.ErrInvalidInput).
			WithKey(key).
			WithMessage("object key cannot contain control characters")
	}
	return nil
}

func isValidBucketChar(char rune) bool {
	return (char >= '0' && char <= '9') || (char >= 'a' && char <= 'z') || char == '.' || char == '-'
}

// isIPAddress checks if a string is formatted as an IPv4 address
func isIPAddress(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}

	for _, part := range parts {
		if part == "" {
			return true
		}
		num := 0
		for _, char := range part {
			if char < '0' || char > '9' {
				return false
			}
			num = num*10 + int(char-'0')
		}
		if num > 255 {
			return false
		}
	}
	return true
}

// hasPathTraversal reports keys that climb out of their prefix or are absolute.
func hasPathTraversal(key string) bool {
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return true
		}
	}
	return strings.HasPrefix(path.Clean(key), "/")
}

func hasControlCharacters(key string) bool {
	for _, char := range key {
		if unicode.IsControl(char) {
			return true
		}
	}
	return false
}
