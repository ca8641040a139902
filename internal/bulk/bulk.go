// Package bulk tallies sequential batch operations. Batches are applied
// one item at a time and are not atomic: a failure is recorded and the
// batch moves on.
package bulk

import (
	"fmt"

	"attendance/internal/apperr"
)

// Item is the outcome for one id in a batch.
type Item struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Result aggregates a batch.
type Result struct {
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Items     []Item `json:"items"`
}

// Record adds the outcome of one item.
func (r *Result) Record(id string, err error) {
	if err != nil {
		r.Failed++
		r.Items = append(r.Items, Item{ID: id, Message: apperr.Message(err)})
		return
	}
	r.Succeeded++
	r.Items = append(r.Items, Item{ID: id, Success: true})
}

// Summary renders "<action>: N successful, M failed".
func (r Result) Summary(action string) string {
	return fmt.Sprintf("%s: %d successful, %d failed", action, r.Succeeded, r.Failed)
}
