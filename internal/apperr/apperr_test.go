package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsMatchThroughWrapping(t *testing.T) {
	err := fmt.Errorf("mark attendance: %w", New(ErrConflict, "Already checked in today"))

	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Already checked in today", Message(err))
	assert.True(t, IsKnown(err))
}

func TestMessageHidesInternalErrors(t *testing.T) {
	err := errors.New("pq: connection refused")

	assert.Equal(t, "Something went wrong", Message(err))
	assert.False(t, IsKnown(err))
}

func TestInvalidCarriesField(t *testing.T) {
	err := Invalid("checkOut", "Check-out cannot be before check-in")

	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, map[string]string{"checkOut": "Check-out cannot be before check-in"}, Fields(err))
}

func TestNotFound(t *testing.T) {
	err := NotFound("Staff")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Staff not found", err.Error())
}
