// Package queue is the minimal worker-queue abstraction sitting between
// incident creation and the out-of-band pkg/analysis task: an Enqueue/
// Dequeue boundary narrow enough to be satisfied either by the in-process
// channel implementation here or by a real broker later (§6).
package queue

import (
	"context"
	"time"

	"github.com/sentinelops/sentinel/internal/errors"
)

// Queue is the interface pkg/analysis's worker pool consumes. Dequeue
// blocks until an item is available or ctx is cancelled.
type Queue interface {
	Enqueue(ctx context.Context, incidentID string) error
	Dequeue(ctx context.Context) (string, error)
	Close()
}

// Channel is an in-process, fixed-capacity Queue backed by a buffered
// channel. Enqueue beyond capacity blocks (applies backpressure) rather
// than dropping work; Close makes pending and future Dequeue calls return
// an error once the buffer is drained.
type Channel struct {
	ch chan string
}

// NewChannel builds a Channel with room for capacity pending incident ids.
func NewChannel(capacity int) *Channel {
	return &Channel{ch: make(chan string, capacity)}
}

// Enqueue submits incidentID, blocking if the queue is full until a slot
// frees up or ctx is cancelled.
func (q *Channel) Enqueue(ctx context.Context, incidentID string) error {
	select {
	case q.ch <- incidentID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks for the next incident id, or returns an error if ctx is
// cancelled or the queue has been closed and drained.
func (q *Channel) Dequeue(ctx context.Context) (string, error) {
	select {
	case id, ok := <-q.ch:
		if !ok {
			return "", errors.FailedToWithDetails("dequeue", "queue", "channel", nil)
		}
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops accepting further sends; callers must not Enqueue after
// Close.
func (q *Channel) Close() {
	close(q.ch)
}

// DefaultPollInterval is how often a Poller retries an empty claim.
const DefaultPollInterval = 2 * time.Second

// Claimer is the narrow datastore operation a Poller needs: atomically
// claim and return the next unit of work, or ("", false, nil) if none is
// pending.
type Claimer interface {
	ClaimDetected(ctx context.Context) (string, bool, error)
}

// Poller is a Queue backed by repeatedly polling a datastore claim
// operation instead of an in-process channel, so a standalone worker
// process can pull work without sharing memory with whatever produced it.
// Enqueue is a no-op: a row becoming claimable is itself the enqueue
// signal, driven by whatever transitioned it into the claimable status.
type Poller struct {
	Claimer  Claimer
	Interval time.Duration
}

// NewPoller builds a Poller over claimer, polling every interval
// (DefaultPollInterval if interval <= 0) when no work is immediately
// available.
func NewPoller(claimer Claimer, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{Claimer: claimer, Interval: interval}
}

// Enqueue is a no-op: see Poller's doc comment.
func (p *Poller) Enqueue(ctx context.Context, incidentID string) error {
	return nil
}

// Dequeue blocks, retrying on Interval, until a claim succeeds or ctx is
// cancelled.
func (p *Poller) Dequeue(ctx context.Context) (string, error) {
	for {
		id, ok, err := p.Claimer.ClaimDetected(ctx)
		if err != nil {
			return "", err
		}
		if ok {
			return id, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.Interval):
		}
	}
}

// Close is a no-op; a Poller owns no resource of its own.
func (p *Poller) Close() {}
