package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found constructor", NewNotFound("log %s", "abc"), IsNotFound, true},
		{"wrapped not found", fmt.Errorf("store: %w", ErrNotFound), IsNotFound, true},
		{"conflict", NewConflict("dup"), IsConflict, true},
		{"internal", NewInternal("boom: %v", "x"), IsInternal, true},
		{"invalid input", NewInvalidInput("bad"), IsInvalidInput, true},
		{"invalid job counts as invalid input", fmt.Errorf("job: %w", ErrInvalidJob), IsInvalidInput, true},
		{"internal is not not-found", NewInternal("x"), IsNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestConstructorMessage(t *testing.T) {
	err := NewNotFound("notification log %s", "42")
	assert.Equal(t, "not found: notification log 42", err.Error())
}
