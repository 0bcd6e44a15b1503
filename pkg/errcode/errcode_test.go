package errcode

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		code Code
		kind Kind
	}{
		{InvalidName, KindValidation},
		{OwnerNotFound, KindNotFound},
		{DuplicateCorrelationID, KindConflict},
		{SaveIsDisabled, KindPreconditionFailed},
		{SizeMismatch, KindIntegrity},
		{StateStoreUnavailable, KindDependency},
		{InternalError, KindInternal},
		{Code("SomethingNew"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, KindOf(tt.code), string(tt.code))
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(InvalidName))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(BranchNotFound))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(StateStoreUnavailable))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(InternalError))
}

func TestErrorIsMatchesOnCode(t *testing.T) {
	err := New(BranchNotFound, "corr-1")
	assert.True(t, errors.Is(err, New(BranchNotFound, "other-corr")))
	assert.False(t, errors.Is(err, New(OwnerNotFound, "corr-1")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(StateStoreUnavailable, "corr-2", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Equal(t, "disk full", err.Properties["exception"])
	assert.Contains(t, err.Error(), "disk full")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, TagIsDisabled, CodeOf(New(TagIsDisabled, "c")))
	assert.Equal(t, InternalError, CodeOf(fmt.Errorf("plain")))
}

func TestEveryCodeHasMessage(t *testing.T) {
	for code := range kinds {
		assert.NotEmpty(t, Message(code), string(code))
	}
}
