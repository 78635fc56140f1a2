package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_DrainIsFIFO(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	assert.Equal(t, 5, q.Len())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, q.Drain())
	assert.Empty(t, q.Drain())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_ConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	type item struct{ producer, seq int }
	q := New[item]()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				q.Push(item{p, i})
			}
		}(p)
	}
	wg.Wait()

	items := q.Drain()
	require.Len(t, items, 1000)
	last := map[int]int{0: -1, 1: -1, 2: -1, 3: -1}
	for _, it := range items {
		assert.Equal(t, last[it.producer]+1, it.seq)
		last[it.producer] = it.seq
	}
}

func TestQueue_Wait(t *testing.T) {
	q := New[string]()

	done := make(chan error, 1)
	go func() {
		done <- q.Wait(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push("x")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Push")
	}
	assert.Equal(t, []string{"x"}, q.Drain())
}

func TestQueue_WaitCancelled(t *testing.T) {
	q := New[string]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, q.Wait(ctx), context.Canceled)
}
