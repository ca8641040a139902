package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Pagination
		want Pagination
	}{
		{"defaults", Pagination{}, Pagination{Limit: DefaultLimit}},
		{"clamps limit", Pagination{Limit: 5000, Skip: 20}, Pagination{Limit: MaxLimit, Skip: 20}},
		{"negative skip", Pagination{Limit: 5, Skip: -3}, Pagination{Limit: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestWindow(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{3, 4}, Window(all, Pagination{Limit: 2, Skip: 2}))
	assert.Equal(t, []int{5}, Window(all, Pagination{Limit: 2, Skip: 4}))
	assert.Empty(t, Window(all, Pagination{Limit: 2, Skip: 10}))
}

func TestNewPageNeverNil(t *testing.T) {
	p := NewPage[string](nil, 0, 3, Pagination{Limit: 10})

	assert.NotNil(t, p.Items)
	assert.Equal(t, int64(3), p.TotalAll)
}

func TestLikeEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\% off\_x%`, Like(" 50% off_x "))
}

func TestInRange(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	assert.True(t, InRange(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), &from, &to))
	assert.True(t, InRange(time.Date(2024, 3, 31, 23, 30, 0, 0, time.UTC), &from, &to))
	assert.False(t, InRange(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), &from, &to))
	assert.False(t, InRange(time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC), &from, &to))
	assert.True(t, InRange(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC), nil, nil))
}
