package identity_test

import (
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/penstand/go-identity"
	"github.com/stretchr/testify/assert"
)

func TestIsTokenExpiredError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Sentinel expired error",
			err:      identity.ErrTokenExpired,
			expected: true,
		},
		{
			name:     "Wrapped sentinel",
			err:      goerrors.Wrap(identity.ErrTokenExpired, goerrors.CategoryAuth, "validation failed"),
			expected: true,
		},
		{
			name:     "Library message",
			err:      errors.New("token is expired"),
			expected: true,
		},
		{
			name:     "Other error",
			err:      errors.New("something else"),
			expected: false,
		},
		{
			name:     "Nil",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, identity.IsTokenExpiredError(tt.err))
		})
	}
}

func TestIsMalformedError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Sentinel malformed error",
			err:      identity.ErrTokenMalformed,
			expected: true,
		},
		{
			name:     "Library message",
			err:      errors.New("token is malformed: bad segments"),
			expected: true,
		},
		{
			name:     "Middleware message",
			err:      errors.New("missing or malformed JWT"),
			expected: true,
		},
		{
			name:     "Other error",
			err:      errors.New("boom"),
			expected: false,
		},
		{
			name:     "Nil",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, identity.IsMalformedError(tt.err))
		})
	}
}

func TestIsDuplicateIdentityError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Sentinel duplicate error",
			err:      identity.ErrDuplicateIdentity,
			expected: true,
		},
		{
			name:     "SQLite unique constraint",
			err:      errors.New("constraint failed: UNIQUE constraint failed: users.email"),
			expected: true,
		},
		{
			name:     "Postgres duplicate key",
			err:      errors.New(`duplicate key value violates unique constraint "idx_users_email"`),
			expected: true,
		},
		{
			name:     "Other error",
			err:      errors.New("connection refused"),
			expected: false,
		},
		{
			name:     "Nil",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, identity.IsDuplicateIdentityError(tt.err))
		})
	}
}

func TestErrorCodes(t *testing.T) {
	// every public sentinel carries the HTTP status clients should see
	assert.Equal(t, 401, identity.ErrInvalidCredentials.Code)
	assert.Equal(t, 401, identity.ErrTokenExpired.Code)
	assert.Equal(t, 403, identity.ErrForbidden.Code)
	assert.Equal(t, 403, identity.ErrAccountUnverified.Code)
	assert.Equal(t, 404, identity.ErrIdentityNotFound.Code)
	assert.Equal(t, 409, identity.ErrDuplicateIdentity.Code)
	assert.Equal(t, 409, identity.ErrAlreadyVerified.Code)
	assert.Equal(t, 429, identity.ErrTooManyLoginAttempts.Code)
}
