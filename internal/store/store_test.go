package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelsOrder(t *testing.T) {
	models := Models()
	assert.Len(t, models, 4)
}

func TestNilHandlesAreSafe(t *testing.T) {
	var db *DB
	var r *Redis
	assert.False(t, db.Healthy(context.Background()))
	assert.NoError(t, db.Close())
	assert.False(t, r.Healthy(context.Background()))
	assert.NoError(t, r.Close())
}
