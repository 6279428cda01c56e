package relay

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestInboundQueue_FIFO(t *testing.T) {
	q := newInboundQueue()
	ctx := context.Background()

	for i := byte(0); i < 5; i++ {
		q.Push(InboundChunk{PCM: []byte{i}})
	}

	for i := byte(0); i < 5; i++ {
		c, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		if c.PCM[0] != i {
			t.Errorf("expected chunk %d, got %d", i, c.PCM[0])
		}
	}
}

func TestInboundQueue_PopBlocksUntilPush(t *testing.T) {
	q := newInboundQueue()
	ctx := context.Background()

	got := make(chan InboundChunk, 1)
	go func() {
		c, err := q.Pop(ctx)
		if err != nil {
			return
		}
		got <- c
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before Push")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(InboundChunk{PCM: []byte{42}})

	select {
	case c := <-got:
		if c.PCM[0] != 42 {
			t.Errorf("unexpected chunk: %v", c.PCM)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not observe Push")
	}
}

func TestInboundQueue_PopCancelled(t *testing.T) {
	q := newInboundQueue()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Pop(ctx)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock on cancel")
	}
}

func TestInboundQueue_DrainEmptiesQueue(t *testing.T) {
	q := newInboundQueue()

	for i := 0; i < 5; i++ {
		q.Push(InboundChunk{PCM: []byte{byte(i)}})
	}

	if n := q.Drain(); n != 5 {
		t.Errorf("expected 5 discarded, got %d", n)
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", q.Len())
	}

	// Drain on an empty queue is a no-op.
	if n := q.Drain(); n != 0 {
		t.Errorf("expected 0 discarded, got %d", n)
	}
}

func TestInboundQueue_ConcurrentPushPop(t *testing.T) {
	q := newInboundQueue()
	ctx := context.Background()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Push(InboundChunk{PCM: []byte{byte(i)}})
		}
	}()

	for i := 0; i < n; i++ {
		c, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		if c.PCM[0] != byte(i) {
			t.Fatalf("out of order at %d: got %d", i, c.PCM[0])
		}
	}
	wg.Wait()
}
