// Package query holds the pagination and filter helpers shared by every
// list endpoint.
package query

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Pagination is the skip/limit pair sent by list screens.
type Pagination struct {
	Limit int `form:"limit" json:"limit"`
	Skip  int `form:"skip" json:"skip"`
}

// Normalize clamps limit to [1, MaxLimit] and skip to >= 0.
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Skip < 0 {
		p.Skip = 0
	}
	return p
}

// Scope applies the page window to a GORM chain.
func (p Pagination) Scope(db *gorm.DB) *gorm.DB {
	p = p.Normalize()
	return db.Limit(p.Limit).Offset(p.Skip)
}

// Page is one window of a filtered listing. Total counts rows matching the
// filter, TotalAll counts rows visible to the caller with no filter.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	TotalAll int64 `json:"totalAll"`
	Limit    int   `json:"limit"`
	Skip     int   `json:"skip"`
}

// NewPage builds a Page, never returning a nil Items slice.
func NewPage[T any](items []T, total, totalAll int64, p Pagination) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, TotalAll: totalAll, Limit: p.Limit, Skip: p.Skip}
}

// Window slices an already filtered, already ordered list. Used by the
// in-memory store.
func Window[T any](all []T, p Pagination) []T {
	p = p.Normalize()
	if p.Skip >= len(all) {
		return []T{}
	}
	end := p.Skip + p.Limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]T, end-p.Skip)
	copy(out, all[p.Skip:end])
	return out
}

// Like turns a user search term into an ILIKE pattern, escaping the
// wildcard characters.
func Like(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(term)) + "%"
}

// Contains is the in-memory counterpart of an ILIKE substring match.
func Contains(haystack, term string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(term)))
}

// InRange reports whether t falls inside the optional date window: on or
// after from, and before the end of to's calendar day.
func InRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(EndOfDay(*to)) {
		return false
	}
	return true
}

// EndOfDay returns the midnight that closes t's calendar day, so an
// inclusive "to" date becomes an exclusive upper bound.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
