package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/meshctl/internal/testutil/testlog"
	"github.com/danmuck/meshctl/internal/wire"
)

func TestCorrelatorResolve(t *testing.T) {
	testlog.Start(t)

	c := NewCorrelator()
	p := c.Submit(time.Now().Add(time.Second))

	reply := &wire.Envelope{ID: p.ID, Kind: wire.KindAdminAck}
	if !c.Resolve(p.ID, reply) {
		t.Fatal("Resolve found no waiter")
	}

	env, err := c.Await(context.Background(), p)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if env.ID != p.ID {
		t.Fatalf("reply id = %d, want %d", env.ID, p.ID)
	}
	if c.PendingCount() != 0 {
		t.Fatalf("pending = %d after resolve, want 0", c.PendingCount())
	}
}

func TestCorrelatorUnknownReplyDropped(t *testing.T) {
	testlog.Start(t)

	c := NewCorrelator()
	if c.Resolve(42, &wire.Envelope{ID: 42}) {
		t.Fatal("Resolve matched an id that was never submitted")
	}
}

func TestCorrelatorExactlyOnce(t *testing.T) {
	testlog.Start(t)

	c := NewCorrelator()
	p := c.Submit(time.Now().Add(time.Second))

	var wg sync.WaitGroup
	wins := make(chan string, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if c.Resolve(p.ID, &wire.Envelope{ID: p.ID}) {
			wins <- "resolve"
		}
	}()
	go func() {
		defer wg.Done()
		if c.Fail(p.ID, ErrTimedOut) {
			wins <- "fail"
		}
	}()
	wg.Wait()
	close(wins)

	var n int
	for range wins {
		n++
	}
	if n != 1 {
		t.Fatalf("terminal resolutions = %d, want exactly 1", n)
	}

	// Await must observe whichever side won, and only that one.
	if _, err := c.Await(context.Background(), p); err != nil && err != ErrTimedOut {
		t.Fatalf("Await: unexpected error %v", err)
	}
}

func TestCorrelatorSweep(t *testing.T) {
	testlog.Start(t)

	c := NewCorrelator()
	expired := c.Submit(time.Now().Add(-time.Millisecond))
	alive := c.Submit(time.Now().Add(time.Hour))

	if n := c.Sweep(time.Now()); n != 1 {
		t.Fatalf("Sweep expired %d, want 1", n)
	}
	if _, err := c.Await(context.Background(), expired); err != ErrTimedOut {
		t.Fatalf("expired Await = %v, want %v", err, ErrTimedOut)
	}
	if c.PendingCount() != 1 {
		t.Fatalf("pending = %d, want 1", c.PendingCount())
	}
	c.Cancel(alive.ID)
}

func TestCorrelatorFailAll(t *testing.T) {
	testlog.Start(t)

	c := NewCorrelator()
	a := c.Submit(time.Now().Add(time.Hour))
	b := c.Submit(time.Now().Add(time.Hour))

	c.FailAll(ErrDisconnected)

	for _, p := range []*Pending{a, b} {
		if _, err := c.Await(context.Background(), p); err != ErrDisconnected {
			t.Fatalf("Await = %v, want %v", err, ErrDisconnected)
		}
	}
}

func TestCorrelatorCancelDropsLateReply(t *testing.T) {
	testlog.Start(t)

	c := NewCorrelator()
	p := c.Submit(time.Now().Add(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Await(ctx, p); err != ErrCancelled {
		t.Fatalf("Await = %v, want %v", err, ErrCancelled)
	}
	if c.Resolve(p.ID, &wire.Envelope{ID: p.ID}) {
		t.Fatal("late reply matched a cancelled request")
	}
}

func TestCorrelatorIDSkipsPending(t *testing.T) {
	testlog.Start(t)

	c := NewCorrelator()
	seen := make(map[uint32]bool)
	for i := 0; i < 64; i++ {
		p := c.Submit(time.Now().Add(time.Hour))
		if p.ID == 0 {
			t.Fatal("allocated id 0")
		}
		if seen[p.ID] {
			t.Fatalf("id %d allocated twice while pending", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestCorrelatorIDWraparound(t *testing.T) {
	testlog.Start(t)

	c := NewCorrelator()
	c.nextID = 0xFFFFFFFF
	first := c.NextID()
	second := c.NextID()
	if first != 0xFFFFFFFF {
		t.Fatalf("first = %d, want max uint32", first)
	}
	if second == 0 {
		t.Fatal("id wrapped to 0")
	}
	if second != 1 {
		t.Fatalf("second = %d, want 1", second)
	}
}
