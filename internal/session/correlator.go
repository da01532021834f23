package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/meshctl/internal/wire"
)

// outcome is the single terminal result of one pending request.
type outcome struct {
	env *wire.Envelope
	err error
}

// Pending is one in-flight request awaiting its reply.
type Pending struct {
	ID       uint32
	Deadline time.Time
	done     chan outcome
}

// Correlator matches device replies to outstanding requests by
// envelope id. Every submitted id resolves exactly once: the entry is
// removed from the table under the lock before its waiter is signaled,
// so a racing timeout and reply cannot both win.
type Correlator struct {
	mu      sync.Mutex
	nextID  uint32
	pending map[uint32]*Pending
}

func NewCorrelator() *Correlator {
	return &Correlator{
		nextID:  1,
		pending: make(map[uint32]*Pending),
	}
}

// NextID returns a fresh request id, skipping zero and any id still
// awaiting a reply.
func (c *Correlator) NextID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextIDLocked()
}

func (c *Correlator) nextIDLocked() uint32 {
	for {
		id := c.nextID
		c.nextID++
		if c.nextID == 0 {
			c.nextID = 1
		}
		if id == 0 {
			continue
		}
		if _, busy := c.pending[id]; busy {
			continue
		}
		return id
	}
}

// Submit registers a fresh id and returns its pending handle.
func (c *Correlator) Submit(deadline time.Time) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := &Pending{
		ID:       c.nextIDLocked(),
		Deadline: deadline,
		done:     make(chan outcome, 1),
	}
	c.pending[p.ID] = p
	return p
}

// Resolve delivers a reply to the waiter for id. It reports whether a
// waiter existed; replies to unknown ids are the caller's to drop.
func (c *Correlator) Resolve(id uint32, env *wire.Envelope) bool {
	p := c.take(id)
	if p == nil {
		return false
	}
	p.done <- outcome{env: env}
	return true
}

// Fail terminates the waiter for id with err.
func (c *Correlator) Fail(id uint32, err error) bool {
	p := c.take(id)
	if p == nil {
		return false
	}
	p.done <- outcome{err: err}
	return true
}

// Cancel removes id without signaling; a reply arriving later is
// treated as unknown and dropped.
func (c *Correlator) Cancel(id uint32) {
	c.take(id)
}

// FailAll terminates every waiter with err. Used on disconnect.
func (c *Correlator) FailAll(err error) {
	c.mu.Lock()
	all := make([]*Pending, 0, len(c.pending))
	for _, p := range c.pending {
		all = append(all, p)
	}
	c.pending = make(map[uint32]*Pending)
	c.mu.Unlock()
	for _, p := range all {
		p.done <- outcome{err: err}
	}
}

// Sweep fails every waiter whose deadline has passed.
func (c *Correlator) Sweep(now time.Time) int {
	c.mu.Lock()
	var expired []*Pending
	for id, p := range c.pending {
		if !p.Deadline.IsZero() && now.After(p.Deadline) {
			delete(c.pending, id)
			expired = append(expired, p)
		}
	}
	c.mu.Unlock()
	for _, p := range expired {
		log.Debug().Uint32("id", p.ID).Msg("session: request expired")
		p.done <- outcome{err: ErrTimedOut}
	}
	return len(expired)
}

// PendingCount reports the number of requests still in flight.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) take(id uint32) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return p
}

// Await blocks until p resolves, fails, or ctx ends. On context
// cancellation the entry is withdrawn so a late reply cannot leak.
func (c *Correlator) Await(ctx context.Context, p *Pending) (*wire.Envelope, error) {
	select {
	case out := <-p.done:
		return out.env, out.err
	case <-ctx.Done():
		c.Cancel(p.ID)
		// The resolver may have won the race; drain without blocking.
		select {
		case out := <-p.done:
			return out.env, out.err
		default:
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimedOut
		}
		return nil, ErrCancelled
	}
}
