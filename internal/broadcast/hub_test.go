package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoscraper/tile-service/internal/tasks"
	"github.com/geoscraper/tile-service/internal/types"
)

func TestHubFanOut(t *testing.T) {
	hub := NewHub()
	a, cancelA := hub.Subscribe(4)
	b, cancelB := hub.Subscribe(4)
	defer cancelB()

	task := &types.Task{ID: 7, Name: "alps", Status: types.StatusRunning, Progress: 40}
	require.NoError(t, hub.Publish(context.Background(), task))

	for _, ch := range []<-chan []byte{a, b} {
		var got types.Task
		require.NoError(t, json.Unmarshal(<-ch, &got))
		assert.Equal(t, int64(7), got.ID)
		assert.Equal(t, 40, got.Progress)
	}

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, hub.Subscribers())
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Broadcast([]byte("one"))
	hub.Broadcast([]byte("two"))

	assert.Equal(t, "one", string(<-ch))
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %q", msg)
	default:
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(1)
	hub.Close()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	late, _ := hub.Subscribe(1)
	_, open = <-late
	assert.False(t, open)
}

type fakeExec struct {
	sql  string
	args []any
	err  error
}

func (f *fakeExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = sql
	f.args = args
	return pgconn.CommandTag{}, f.err
}

func TestPGNotifierPublish(t *testing.T) {
	db := &fakeExec{}
	n := NewPGNotifier(db, "")

	require.NoError(t, n.Publish(context.Background(), &types.Task{ID: 3, Name: "x"}))
	assert.Equal(t, "SELECT pg_notify($1, $2)", db.sql)
	require.Len(t, db.args, 2)
	assert.Equal(t, DefaultChannel, db.args[0])
	assert.Contains(t, db.args[1], `"id":3`)

	db.err = errors.New("connection reset")
	assert.Error(t, n.Publish(context.Background(), &types.Task{ID: 3}))
}

func TestMultiJoinsErrors(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	failing := tasks.PublisherFunc(func(context.Context, *types.Task) error { return errors.New("down") })
	err := Multi{failing, hub}.Publish(context.Background(), &types.Task{ID: 1})

	assert.Error(t, err)
	assert.NotEmpty(t, <-ch)
}
