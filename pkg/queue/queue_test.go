package queue

import (
	"context"
	"testing"
	"time"
)

func TestChannel_EnqueueThenDequeuePreservesOrder(t *testing.T) {
	q := NewChannel(4)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, id); err != nil {
			t.Fatalf("unexpected error enqueueing %s: %v", id, err)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("unexpected error dequeuing: %v", err)
		}
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}

func TestChannel_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewChannel(1)
	ctx := context.Background()
	done := make(chan string, 1)

	go func() {
		id, err := q.Dequeue(ctx)
		if err != nil {
			t.Errorf("unexpected dequeue error: %v", err)
			return
		}
		done <- id
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("expected Dequeue to still be blocked with nothing enqueued")
	default:
	}

	if err := q.Enqueue(ctx, "incident-1"); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}
	select {
	case id := <-done:
		if id != "incident-1" {
			t.Errorf("expected incident-1, got %s", id)
		}
	case <-time.After(time.Second):
		t.Fatal("expected Dequeue to unblock after Enqueue")
	}
}

func TestChannel_DequeueReturnsErrorWhenContextCancelled(t *testing.T) {
	q := NewChannel(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Dequeue(ctx); err == nil {
		t.Error("expected an error from Dequeue on an already-cancelled context")
	}
}

func TestChannel_DequeueReturnsErrorAfterCloseAndDrain(t *testing.T) {
	q := NewChannel(1)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "last"); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}
	q.Close()

	id, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("unexpected error draining the last item: %v", err)
	}
	if id != "last" {
		t.Errorf("expected last, got %s", id)
	}

	if _, err := q.Dequeue(ctx); err == nil {
		t.Error("expected an error once the closed queue is fully drained")
	}
}

func TestChannel_EnqueueBlocksWhenFullUntilContextCancelled(t *testing.T) {
	q := NewChannel(1)
	ctx := context.Background()
	if err := q.Enqueue(ctx, "first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	blockedCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(blockedCtx, "second"); err == nil {
		t.Error("expected Enqueue to block and then fail once the full queue's capacity isn't freed in time")
	}
}

type fakeClaimer struct {
	ids []string
}

func (f *fakeClaimer) ClaimDetected(ctx context.Context) (string, bool, error) {
	if len(f.ids) == 0 {
		return "", false, nil
	}
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id, true, nil
}

func TestPoller_DequeueReturnsClaimedID(t *testing.T) {
	claimer := &fakeClaimer{ids: []string{"incident-9"}}
	p := NewPoller(claimer, 5*time.Millisecond)

	id, err := p.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "incident-9" {
		t.Errorf("expected incident-9, got %s", id)
	}
}

func TestPoller_DequeueReturnsErrorWhenContextCancelled(t *testing.T) {
	p := NewPoller(&fakeClaimer{}, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := p.Dequeue(ctx); err == nil {
		t.Error("expected an error once the context is cancelled while polling")
	}
}

func TestPoller_EnqueueIsNoOp(t *testing.T) {
	p := NewPoller(&fakeClaimer{}, time.Second)
	if err := p.Enqueue(context.Background(), "whatever"); err != nil {
		t.Errorf("expected Enqueue to be a no-op, got %v", err)
	}
}
