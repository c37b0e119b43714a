package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInternal     = errors.New("internal error")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoRecipient means neither a channel id nor a resolvable user id was available.
	ErrNoRecipient = errors.New("no recipient channel")
	ErrInvalidJob  = errors.New("invalid job")
)

func NewInternal(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, a...))
}

func NewNotFound(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, a...))
}

func NewConflict(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, a...))
}

func NewInvalidInput(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, a...))
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidJob)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
