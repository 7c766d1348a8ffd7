package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("matches by code", func(t *testing.T) {
		err := NewDomainError(CodeNotFound, "grievance not found")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		err := fmt.Errorf("lookup: %w", ErrConcurrencyConflict)
		assert.True(t, errors.Is(err, ErrConcurrencyConflict))
		assert.False(t, errors.Is(err, ErrNotFound))
	})

	t.Run("different codes do not match", func(t *testing.T) {
		assert.False(t, errors.Is(NewValidationError("bad"), ErrForbidden))
	})
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2, 3}, 21, 1, 10)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, int64(21), p.Total)

	empty := NewPaginated([]int{}, 0, 1, 0)
	assert.Equal(t, 0, empty.TotalPages)
}
