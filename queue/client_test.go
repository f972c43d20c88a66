package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/itinerary/grading"
)

// setupTestClient creates a miniredis instance and returns a connected RedisClient.
func setupTestClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := NewRedisClient(RedisOptions{
		URL:            fmt.Sprintf("redis://%s", mr.Addr()),
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		PopTimeout:     100 * time.Millisecond,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, mr
}

func testItem(i, total int) WorkItem {
	return WorkItem{
		JobID:       "job-123",
		Index:       i,
		Total:       total,
		Kind:        KindMeeting,
		ExampleID:   fmt.Sprintf("example_%d", i),
		Example:     json.RawMessage(`{"num_people": 1}`),
		SubmittedAt: time.Now().UnixMilli(),
	}
}

func TestNewRedisClient(t *testing.T) {
	t.Run("successful connection", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := NewRedisClient(RedisOptions{URL: fmt.Sprintf("redis://%s", mr.Addr())})
		require.NoError(t, err)
		defer client.Close()
	})

	t.Run("connection failure", func(t *testing.T) {
		_, err := NewRedisClient(RedisOptions{
			URL:            "redis://localhost:1",
			ConnectTimeout: 100 * time.Millisecond,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to Redis")
	})

	t.Run("invalid URL", func(t *testing.T) {
		_, err := NewRedisClient(RedisOptions{URL: "invalid://url"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse Redis URL")
	})
}

func TestPushPop(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		client, _ := setupTestClient(t)
		ctx := context.Background()
		q := QueueName(KindMeeting)

		item := testItem(0, 1)
		require.NoError(t, client.Push(ctx, q, item))

		n, err := client.Len(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		popped, err := client.Pop(ctx, q)
		require.NoError(t, err)
		require.NotNil(t, popped)
		assert.Equal(t, item.JobID, popped.JobID)
		assert.Equal(t, item.ExampleID, popped.ExampleID)
		assert.JSONEq(t, string(item.Example), string(popped.Example))
		assert.Equal(t, item.SubmittedAt, popped.SubmittedAt)
	})

	t.Run("FIFO order", func(t *testing.T) {
		client, _ := setupTestClient(t)
		ctx := context.Background()
		q := QueueName(KindTrip)

		for i := 0; i < 3; i++ {
			require.NoError(t, client.Push(ctx, q, testItem(i, 3)))
		}
		for i := 0; i < 3; i++ {
			popped, err := client.Pop(ctx, q)
			require.NoError(t, err)
			require.NotNil(t, popped)
			assert.Equal(t, i, popped.Index)
		}
	})

	t.Run("empty queue times out with nil", func(t *testing.T) {
		client, _ := setupTestClient(t)
		popped, err := client.Pop(context.Background(), QueueName(KindMeeting))
		require.NoError(t, err)
		assert.Nil(t, popped)
	})

	t.Run("garbage payload", func(t *testing.T) {
		client, mr := setupTestClient(t)
		q := QueueName(KindMeeting)
		_, err := mr.Lpush(q, "not json")
		require.NoError(t, err)

		_, err = client.Pop(context.Background(), q)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal work item")
	})
}

func TestPublishSubscribe(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	channel := ResultChannel("job-123")
	results, err := client.Subscribe(ctx, channel)
	require.NoError(t, err)

	want := Result{
		JobID:       "job-123",
		Index:       2,
		Grade:       grading.Grade{ID: "example_2", Size: 3, Correct: true, Score: 3, GoldenScore: 3},
		WorkerID:    "w1",
		StartedAt:   1000,
		CompletedAt: 1250,
	}
	require.NoError(t, client.Publish(ctx, channel, want))

	select {
	case got := <-results:
		assert.Equal(t, want, got)
		assert.Equal(t, 250*time.Millisecond, got.Duration())
		assert.False(t, got.HasError())
	case <-ctx.Done():
		t.Fatal("timed out waiting for result")
	}
}

func TestHeartbeat(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	ok, err := client.Healthy(ctx, "w1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.Heartbeat(ctx, "w1"))
	ok, err = client.Healthy(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, HeartbeatTTL, mr.TTL(healthKey("w1")))

	mr.FastForward(HeartbeatTTL + time.Second)
	ok, err = client.Healthy(ctx, "w1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWorkerCount(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	n, err := client.GetWorkerCount(ctx, KindMeeting)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, client.IncrementWorkerCount(ctx, KindMeeting))
	require.NoError(t, client.IncrementWorkerCount(ctx, KindMeeting))
	require.NoError(t, client.DecrementWorkerCount(ctx, KindMeeting))

	n, err = client.GetWorkerCount(ctx, KindMeeting)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSubmit(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// echo worker: publishes a result per popped item, in reverse order of arrival
	go func() {
		var items []*WorkItem
		for len(items) < 3 {
			item, err := client.Pop(ctx, QueueName(KindTrip))
			if err != nil || ctx.Err() != nil {
				return
			}
			if item != nil {
				items = append(items, item)
			}
		}
		for i := len(items) - 1; i >= 0; i-- {
			_ = client.Publish(ctx, ResultChannel(items[i].JobID), Result{
				JobID:    items[i].JobID,
				Index:    items[i].Index,
				Grade:    grading.Grade{ID: items[i].ExampleID},
				WorkerID: "echo",
			})
		}
	}()

	entries := []Entry{
		{ID: "a", Example: map[string]any{"cities": "A"}},
		{ID: "b", Example: map[string]any{"cities": "B"}},
		{ID: "c", Example: map[string]any{"cities": "C"}},
	}
	results, err := Submit(ctx, client, KindTrip, entries)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, entries[i].ID, r.Grade.ID)
	}
}

func TestCollect(t *testing.T) {
	t.Run("keeps first of duplicates", func(t *testing.T) {
		ch := make(chan Result, 3)
		ch <- Result{Index: 1, WorkerID: "first"}
		ch <- Result{Index: 1, WorkerID: "second"}
		ch <- Result{Index: 0}

		got, err := Collect(context.Background(), ch, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "first", got[1].WorkerID)
	})

	t.Run("context ends early", func(t *testing.T) {
		ch := make(chan Result, 1)
		ch <- Result{Index: 0}
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		got, err := Collect(ctx, ch, 2)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Len(t, got, 1)
	})

	t.Run("closed channel", func(t *testing.T) {
		ch := make(chan Result)
		close(ch)
		_, err := Collect(context.Background(), ch, 1)
		assert.Error(t, err)
	})
}

func TestWorkItemIsValid(t *testing.T) {
	valid := testItem(0, 1)
	assert.NoError(t, valid.IsValid())

	tests := []struct {
		name   string
		mutate func(*WorkItem)
		want   string
	}{
		{"no job id", func(w *WorkItem) { w.JobID = "" }, "job_id is required"},
		{"negative index", func(w *WorkItem) { w.Index = -1 }, "index must be non-negative"},
		{"zero total", func(w *WorkItem) { w.Total = 0 }, "total must be positive"},
		{"index out of bounds", func(w *WorkItem) { w.Index = 1 }, "out of bounds"},
		{"unknown kind", func(w *WorkItem) { w.Kind = "flight" }, "unknown kind"},
		{"no example", func(w *WorkItem) { w.Example = nil }, "example is required"},
		{"no timestamp", func(w *WorkItem) { w.SubmittedAt = 0 }, "submitted_at must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testItem(0, 1)
			tt.mutate(&w)
			err := w.IsValid()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWorkItemAge(t *testing.T) {
	w := WorkItem{SubmittedAt: time.Now().Add(-2 * time.Second).UnixMilli()}
	assert.GreaterOrEqual(t, w.Age(), 2*time.Second)
	assert.Equal(t, time.Duration(0), (&WorkItem{}).Age())
}
