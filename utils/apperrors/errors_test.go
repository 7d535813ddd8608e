package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := NotFound("applicant", 7)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrDuplicateIdentity))

	wrapped := fmt.Errorf("handler: %w", Duplicate("email"))
	assert.True(t, errors.Is(wrapped, ErrDuplicateIdentity))
	assert.Equal(t, KindDuplicateIdentity, KindOf(wrapped))
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "applicant not found: 7", NotFound("applicant", 7).Error())

	err := Validation(map[string]string{"name": "name is required", "email": "Invalid email format"})
	assert.Equal(t, "validation failed (email: Invalid email format; name: name is required)", err.Error())

	cause := errors.New("disk full")
	storage := Storage("store attachment", cause)
	assert.Equal(t, "store attachment: disk full", storage.Error())
	assert.True(t, errors.Is(storage, cause))
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, KindStorageFailure, KindOf(errors.New("boom")))
	assert.Nil(t, FieldsOf(errors.New("boom")))
	assert.Equal(t, map[string]string{"status": "bad"}, FieldsOf(ValidationField("status", "bad")))
}
