package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDeliversInOrder(t *testing.T) {
	q := NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, Message{Type: "a", Body: []byte("1")}))
	require.NoError(t, q.Publish(ctx, Message{Type: "b", Body: []byte("2")}))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", (<-msgs).Type)
	assert.Equal(t, "b", (<-msgs).Type)
}

func TestInMemoryFullBuffer(t *testing.T) {
	q := NewInMemory(1)
	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, Message{Type: "a"}))
	assert.ErrorIs(t, q.Publish(ctx, Message{Type: "b"}), ErrFull)
}

func TestInMemoryConsumeStopsWithContext(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: "attendance.recorded", Body: []byte(`{"id":"r1","studentName":"A|B"}`)}
	assert.Equal(t, msg, deserialize(serialize(msg)))
	assert.Equal(t, Message{Body: []byte("legacy")}, deserialize("legacy"))
}

func TestRedisQueueDefaultKey(t *testing.T) {
	assert.Equal(t, "presensure:events", NewRedisQueue(nil, "").key)
	assert.Equal(t, "custom", NewRedisQueue(nil, "custom").key)
}
