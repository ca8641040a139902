package bulk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"attendance/internal/apperr"
)

func TestResultTally(t *testing.T) {
	var r Result
	r.Record("a", nil)
	r.Record("b", apperr.NotFound("Attendance record"))
	r.Record("c", errors.New("dial tcp: refused"))

	assert.Equal(t, 1, r.Succeeded)
	assert.Equal(t, 2, r.Failed)
	assert.Equal(t, "Attendance record not found", r.Items[1].Message)
	assert.Equal(t, "Something went wrong", r.Items[2].Message)
	assert.Equal(t, "Deleted: 1 successful, 2 failed", r.Summary("Deleted"))
}
