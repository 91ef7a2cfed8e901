package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPushPopOrder(t *testing.T) {
	q := New[int](4)
	for i := 0; i < 4; i++ {
		assert.True(t, q.Push(i))
	}
	for i := 0; i < 4; i++ {
		v, ok := q.Pop()
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestCapacityClamped(t *testing.T) {
	assert.Equal(t, minCapacity, New[int](0).Capacity())
	assert.Equal(t, minCapacity, New[int](-5).Capacity())
	assert.Equal(t, maxCapacity, New[int](1000).Capacity())
	assert.Equal(t, 7, New[int](7).Capacity())
}

func TestPushBlocksWhenFull(t *testing.T) {
	q := New[int](1)
	assert.True(t, q.Push(1))

	done := make(chan struct{})
	go func() {
		q.Push(2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Push should have blocked while full")
	case <-time.After(50 * time.Millisecond):
	}

	v, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Push did not unblock after Pop freed a slot")
	}
}

func TestPopBlocksWhenEmpty(t *testing.T) {
	q := New[int](2)
	done := make(chan int)
	go func() {
		v, _ := q.Pop()
		done <- v
	}()

	select {
	case <-done:
		t.Fatal("Pop should have blocked while empty")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push(42)
	select {
	case v := <-done:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Push")
	}
}

func TestCancelWakesBlockedWaiters(t *testing.T) {
	q := New[int](1)
	q.Push(1) // fill it so a second Push blocks
	empty := New[int](1) // left empty so a Pop blocks

	var wg sync.WaitGroup
	results := make([]bool, 2)
	wg.Add(2)
	go func() { defer wg.Done(); results[0] = q.Push(2) }()
	go func() {
		defer wg.Done()
		_, ok := empty.Pop()
		results[1] = ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Cancel()
	empty.Cancel()
	wg.Wait()

	assert.False(t, results[0])
	assert.False(t, results[1])
	assert.True(t, q.Cancelled())
}

func TestCancelIsSticky(t *testing.T) {
	q := New[int](4)
	q.Push(1)
	q.Cancel()

	_, ok := q.Pop()
	assert.False(t, ok, "cancellation discards items still queued")
	assert.False(t, q.Push(2))
}

func TestLenTracksPushPop(t *testing.T) {
	q := New[int](4)
	assert.Equal(t, 0, q.Len())
	q.Push(1)
	q.Push(2)
	assert.Equal(t, 2, q.Len())
	q.Pop()
	assert.Equal(t, 1, q.Len())
}
