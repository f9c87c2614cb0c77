package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Sentinel errors translated to HTTP statuses at the controller boundary.
var (
	// ErrNotFound - a referenced entity does not exist (404)
	ErrNotFound = errors.New("record not found")
	// ErrConflict - a duplicate of an existing record was submitted (409)
	ErrConflict = errors.New("record already exists")
	// ErrValidation - the submitted payload violates a domain rule (400)
	ErrValidation = errors.New("validation failed")
)

// isDuplicateKey reports whether err is a uniqueness-constraint violation.
// GORM translates driver errors when TranslateError is on; the string checks
// cover drivers that bypass the translation.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
