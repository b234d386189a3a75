package domain

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

// Kind is the stable, machine-checkable class of a failure.
type Kind string

const (
	KindValidation    Kind = "validation_error"
	KindInvalidToken  Kind = "invalid_token"
	KindTokenExpired  Kind = "token_expired"
	KindBadCredential Kind = "bad_credential"
	KindForbidden     Kind = "forbidden"
	KindNotFound      Kind = "not_found"
	KindTimeout       Kind = "timeout"
	KindInternal      Kind = "internal"
)

var (
	ErrTokenInvalid  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrBadCredential = errors.New("invalid credentials")
	ErrForbidden     = errors.New("admin access required")
	ErrNotFound      = errors.New("user not found")
	ErrTimeout       = errors.New("dependency timed out")
)

// ValidationError maps field names to a human readable problem. It is
// returned before any mutation happens.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError from field/message pairs.
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))

	var b strings.Builder
	b.WriteString("validation failed")
	for i, k := range keys {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(" ")
		b.WriteString(e.Fields[k])
	}
	return b.String()
}

// KindOf maps err to its Kind. Unknown errors are internal.
func KindOf(err error) Kind {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return KindValidation
	case errors.Is(err, ErrTokenExpired):
		return KindTokenExpired
	case errors.Is(err, ErrTokenInvalid):
		return KindInvalidToken
	case errors.Is(err, ErrBadCredential):
		return KindBadCredential
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	default:
		return KindInternal
	}
}
