package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/adapter"
)

var _ adapter.WorkerChannel = (*InProc)(nil)

// InProc is an in-process worker channel. Workers connect with a
// pubkey and get a private assignment queue; all inbound frames funnel
// into one stream the coordinator drains via Recv. Used by the dev
// binary and the test harness; a network transport would sit behind
// the same interface.
type InProc struct {
	inbound chan adapter.WorkerMessage

	mu      sync.RWMutex
	outbox  map[string]chan adapter.Assignment
	sendCap int
}

func NewInProc() *InProc {
	return &InProc{
		inbound: make(chan adapter.WorkerMessage, 256),
		outbox:  make(map[string]chan adapter.Assignment),
		sendCap: 8,
	}
}

func (c *InProc) Recv(ctx context.Context) (adapter.WorkerMessage, error) {
	select {
	case <-ctx.Done():
		return adapter.WorkerMessage{}, ctx.Err()
	case msg, ok := <-c.inbound:
		if !ok {
			return adapter.WorkerMessage{}, fmt.Errorf("worker channel closed")
		}
		return msg, nil
	}
}

func (c *InProc) Send(ctx context.Context, workerPubkey string, a adapter.Assignment) error {
	c.mu.RLock()
	out, ok := c.outbox[workerPubkey]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("send assignment: worker %s: %w", workerPubkey, domain.ErrNotFound)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- a:
		return nil
	}
}

// Connect registers a worker-side endpoint and returns its assignment
// queue. Reconnecting with the same pubkey replaces the queue; frames
// queued on the old one are dropped with it.
func (c *InProc) Connect(workerPubkey string) <-chan adapter.Assignment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(chan adapter.Assignment, c.sendCap)
	c.outbox[workerPubkey] = out
	return out
}

// Disconnect removes the worker's queue so later sends fail fast.
func (c *InProc) Disconnect(workerPubkey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.outbox, workerPubkey)
}

// Deliver injects an inbound frame as if the worker had sent it.
func (c *InProc) Deliver(ctx context.Context, msg adapter.WorkerMessage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case c.inbound <- msg:
		return nil
	}
}
