package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"record not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"foreign key", gorm.ErrForeignKeyViolated, ErrNotFound},
		{"duplicate key", gorm.ErrDuplicatedKey, ErrConflict},
		{"wrapped duplicate", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), ErrConflict},
		{"unknown driver error", errors.New("sql: database is closed"), ErrStorageUnavailable},
		{"already typed", fmt.Errorf("%w: title", ErrInvalidInput), ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Translate(tt.in), tt.want)
		})
	}
	assert.NoError(t, Translate(nil))
}

func TestFail(t *testing.T) {
	err := Fail("edit", "post", 3, ErrForbidden)

	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "edit post 3: forbidden", err.Error())
	assert.ErrorIs(t, err, ErrForbidden)

	// an OpError is not wrapped twice
	assert.Same(t, opErr, Fail("outer", "thing", 1, err))
	assert.NoError(t, Fail("noop", "post", 1, nil))
}

func TestOpError_WithoutID(t *testing.T) {
	err := Fail("list", "posts", 0, gorm.ErrInvalidDB)
	assert.Contains(t, err.Error(), "list posts: storage unavailable")
}

func TestTranslate_ContextErrorsPassThrough(t *testing.T) {
	for _, in := range []error{
		context.Canceled,
		context.DeadlineExceeded,
		fmt.Errorf("query: %w", context.Canceled),
	} {
		got := Translate(in)
		assert.Equal(t, in, got)
		assert.NotErrorIs(t, got, ErrStorageUnavailable)
	}

	err := Fail("register", "user", 0, context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "register user: context canceled", err.Error())
}
