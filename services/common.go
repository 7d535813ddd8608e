package services

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sahilchouksey/univast-api/database"
	"github.com/sahilchouksey/univast-api/utils/apperrors"
	"gorm.io/gorm"
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

// SystemClock is the default Clock
func SystemClock() time.Time {
	return time.Now().UTC()
}

// storageError passes domain errors through and wraps everything else
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Storage(op, err)
}

// lookupError maps a missing row onto NotFound
func lookupError(entity string, key interface{}, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(entity, key)
	}
	return storageError("load "+entity, err)
}

// writeError maps a unique violation onto DuplicateIdentity for field
func writeError(op, field string, err error) error {
	if database.IsUniqueViolation(err) {
		return apperrors.Duplicate(field)
	}
	return storageError(op, err)
}

func tooLong(s string, max int) bool {
	return utf8.RuneCountInString(s) > max
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// likePattern matches q as a literal substring; queries pair it with ESCAPE '\'
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}
