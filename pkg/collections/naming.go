// Package collections validates the names clients give to collections,
// partitions, fields and indexes.
//
// Collection, field and index names start with a letter or underscore and
// continue with letters, digits and underscores. Partition tags are free
// text but may not be blank. Every name is at most MaxNameLength bytes.
//
// Example:
//
//	if err := collections.ValidateCollectionName("book_embeddings"); err != nil {
//	    return err
//	}
package collections

import (
	"errors"
	"fmt"
	"strings"
)

// MaxNameLength bounds every name and tag.
const MaxNameLength = 255

var (
	// ErrInvalidCollectionName indicates a malformed collection name
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrInvalidFieldName indicates a malformed field name
	ErrInvalidFieldName = errors.New("invalid field name")

	// ErrInvalidIndexName indicates a malformed index name
	ErrInvalidIndexName = errors.New("invalid index name")

	// ErrInvalidPartitionTag indicates a blank or oversized partition tag
	ErrInvalidPartitionTag = errors.New("invalid partition tag")
)

// ValidateCollectionName checks a collection name.
func ValidateCollectionName(name string) error {
	return validateIdentifier(name, ErrInvalidCollectionName)
}

// ValidateFieldName checks a field name.
func ValidateFieldName(name string) error {
	return validateIdentifier(name, ErrInvalidFieldName)
}

// ValidateIndexName checks an index name. An empty name is allowed and
// means the engine picks one.
func ValidateIndexName(name string) error {
	if name == "" {
		return nil
	}
	return validateIdentifier(name, ErrInvalidIndexName)
}

// ValidatePartitionTag checks a partition tag.
//
// Example:
//
//	tag, err := collections.NormalizePartitionTag("  2024-q1 ")
//	// tag = "2024-q1"
func ValidatePartitionTag(tag string) error {
	_, err := NormalizePartitionTag(tag)
	return err
}

// NormalizePartitionTag trims surrounding spaces from tag and validates it.
func NormalizePartitionTag(tag string) (string, error) {
	trimmed := strings.TrimSpace(tag)
	if trimmed == "" {
		return "", fmt.Errorf("%w: partition tag should not be empty", ErrInvalidPartitionTag)
	}
	if len(trimmed) > MaxNameLength {
		return "", fmt.Errorf("%w: partition tag exceeds %d characters", ErrInvalidPartitionTag, MaxNameLength)
	}
	return trimmed, nil
}

func validateIdentifier(name string, kind error) error {
	if name == "" {
		return fmt.Errorf("%w: name should not be empty", kind)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %q exceeds %d characters", kind, name, MaxNameLength)
	}
	if c := name[0]; c != '_' && !isLetter(c) {
		return fmt.Errorf("%w: %q must start with a letter or underscore", kind, name)
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if c != '_' && !isLetter(c) && !isDigit(c) {
			return fmt.Errorf("%w: %q may only contain letters, digits and underscores", kind, name)
		}
	}
	return nil
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
