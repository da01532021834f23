package session

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/meshctl/internal/wire"
)

// subscriberBuffer is the per-subscriber channel depth. A consumer
// that falls this far behind starts losing envelopes rather than
// stalling the reader loop.
const subscriberBuffer = 64

// bus fans every device envelope out to subscribers. Delivery is
// best-effort: slow consumers drop, they never block.
type bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan *wire.Envelope
	closed bool
}

func newBus() *bus {
	return &bus{subs: make(map[int]chan *wire.Envelope)}
}

// Subscribe returns a receive channel and an unsubscribe func. The
// channel closes on unsubscribe or session teardown.
func (b *bus) Subscribe() (<-chan *wire.Envelope, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		ch := make(chan *wire.Envelope)
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	ch := make(chan *wire.Envelope, subscriberBuffer)
	b.subs[id] = ch

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, unsub
}

func (b *bus) Publish(env *wire.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- env:
		default:
			log.Warn().Int("subscriber", id).Msg("session: slow subscriber, dropping envelope")
		}
	}
}

// CloseAll closes every subscriber channel. Further subscribes get an
// already-closed channel.
func (b *bus) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
