package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewInMemory(4)

	first, err := NewMessage("general", map[string]string{"to": "a@example.com"})
	require.NoError(t, err)
	second, err := NewMessage("invoice", map[string]string{"to": "b@example.com"})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, first))
	require.NoError(t, q.Publish(ctx, second))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	got := []string{(<-ch).Type, (<-ch).Type}
	assert.Equal(t, []string{"general", "invoice"}, got)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer channel not closed after cancel")
	}
}

func TestPublishRespectsContextWhenFull(t *testing.T) {
	q := NewInMemory(1)
	msg, err := NewMessage("general", nil)
	require.NoError(t, err)
	require.NoError(t, q.Publish(context.Background(), msg))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Publish(ctx, msg), context.DeadlineExceeded)
}

func TestDeserialize(t *testing.T) {
	msg, err := NewMessage("welcome", map[string]string{"name": "Jane"})
	require.NoError(t, err)
	raw, err := serialize(msg)
	require.NoError(t, err)

	got, err := deserialize(raw)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)
	assert.JSONEq(t, `{"name":"Jane"}`, string(got.Body))

	_, err = deserialize("general|legacy body")
	assert.Error(t, err)
	_, err = deserialize(`{"id":"x"}`)
	assert.Error(t, err)
}
