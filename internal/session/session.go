// Package session owns one live connection to a mesh device: the
// handshake, the single reader loop, request/reply correlation, and
// the mirrored device state. All device I/O goes through here; callers
// above it never see frames or raw bytes.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/meshctl/internal/radio"
	"github.com/danmuck/meshctl/internal/wire"
)

const readBufferSize = 4096

// RequestOptions tunes one Request call. Zero values fall back to the
// session config; MaxRetries < 0 sends exactly one attempt.
type RequestOptions struct {
	ExpectReply bool
	Timeout     time.Duration
	MaxRetries  int
}

// NoRetry is the RequestOptions.MaxRetries value for a single-attempt
// request regardless of the session default.
const NoRetry = -1

// Session is one connected device. It is safe for concurrent use; all
// writes to the transport are serialized and all reads happen on the
// session's own reader goroutine.
type Session struct {
	cfg       Config
	transport radio.Transport
	codec     *wire.Codec
	corr      *Correlator
	store     *Store
	bus       *bus
	rng       *rand.Rand

	writeMu sync.Mutex

	mu        sync.Mutex
	ready     bool
	closeErr  error
	nonce     uint32
	handshake chan uint32

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Connect opens the transport described by d and completes the
// handshake. The returned session is ready for requests.
func Connect(ctx context.Context, d radio.Descriptor, cfg Config) (*Session, error) {
	if d.ConnectTimeout <= 0 {
		d.ConnectTimeout = cfg.ConnectTimeout
	}
	t, err := radio.Open(d)
	if err != nil {
		return nil, err
	}
	s, err := Attach(ctx, t, cfg)
	if err != nil {
		t.Close()
		return nil, err
	}
	return s, nil
}

// Attach runs the session over an already-open transport. On error
// the transport is left to the caller to close.
func Attach(ctx context.Context, t radio.Transport, cfg Config) (*Session, error) {
	s := &Session{
		cfg:       cfg,
		transport: t,
		codec:     wire.NewCodec(),
		corr:      NewCorrelator(),
		store:     NewStore(),
		bus:       newBus(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		handshake: make(chan uint32, 1),
		closed:    make(chan struct{}),
	}
	s.store.Reset()

	s.wg.Add(2)
	go s.readLoop()
	go s.tickLoop()

	if err := s.runHandshake(ctx); err != nil {
		s.teardown(err)
		return nil, err
	}
	log.Info().Str("transport", t.Kind().String()).Msg("session: established")
	return s, nil
}

// runHandshake requests the device's full state and waits for the
// enumeration to finish. The nonce ties the ConfigComplete sentinel
// to this particular request.
func (s *Session) runHandshake(ctx context.Context) error {
	nonce := s.rng.Uint32()
	if nonce == 0 {
		nonce = 1
	}
	s.mu.Lock()
	s.nonce = nonce
	s.mu.Unlock()

	if err := s.writeEnvelope(wire.NewWantConfigEnvelope(nonce)); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	timeout := s.cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().HandshakeTimeout
	}
	for {
		select {
		case got := <-s.handshake:
			if got != nonce {
				log.Debug().Uint32("nonce", got).Msg("session: stale handshake nonce")
				continue
			}
			s.mu.Lock()
			s.ready = true
			s.mu.Unlock()
			return nil
		case <-time.After(timeout):
			return ErrHandshake
		case <-ctx.Done():
			return ErrCancelled
		case <-s.closed:
			return s.closeReason()
		}
	}
}

// readLoop is the only reader of the transport and the only writer of
// the store.
func (s *Session) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.transport.Read(buf)
		if n > 0 {
			s.codec.Push(buf[:n])
			for {
				env, ok := s.codec.Next()
				if !ok {
					break
				}
				s.dispatch(env)
			}
		}
		if err != nil {
			select {
			case <-s.closed:
			default:
				log.Warn().Err(err).Msg("session: link lost")
			}
			s.teardown(ErrDisconnected)
			return
		}
	}
}

// dispatch routes one decoded envelope: resolve any waiting request,
// fold it into the store, then fan it out to subscribers.
func (s *Session) dispatch(env *wire.Envelope) {
	if env.Kind == wire.KindConfigComplete {
		if nonce, err := wire.Nonce(env); err == nil {
			select {
			case s.handshake <- nonce:
			default:
			}
		}
	}

	if env.ID != 0 {
		s.corr.Resolve(env.ID, env)
	}
	if env.Kind == wire.KindRouting {
		if r, err := wire.DecodeRouting(env); err == nil && r.AckFor != 0 {
			s.corr.Resolve(r.AckFor, env)
		}
	}

	s.store.Apply(env, time.Now())
	s.bus.Publish(env)
}

// tickLoop drives the request sweep and the link heartbeat.
func (s *Session) tickLoop() {
	defer s.wg.Done()
	sweepEvery := s.cfg.SweepInterval
	if sweepEvery <= 0 {
		sweepEvery = DefaultConfig().SweepInterval
	}
	sweep := time.NewTicker(sweepEvery)
	defer sweep.Stop()

	var heartbeat <-chan time.Time
	if s.cfg.HeartbeatInterval > 0 {
		hb := time.NewTicker(s.cfg.HeartbeatInterval)
		defer hb.Stop()
		heartbeat = hb.C
	}

	for {
		select {
		case <-sweep.C:
			s.corr.Sweep(time.Now())
		case <-heartbeat:
			if !s.Ready() {
				continue
			}
			if err := s.writeEnvelope(wire.NewHeartbeatEnvelope()); err != nil {
				log.Warn().Err(err).Msg("session: heartbeat write failed")
				s.teardown(ErrDisconnected)
				return
			}
		case <-s.closed:
			return
		}
	}
}

// Request sends env and, when a reply is expected, blocks for it.
// Each retry goes out under a fresh envelope id so a late reply to an
// earlier attempt cannot satisfy a newer one.
func (s *Session) Request(ctx context.Context, env *wire.Envelope, opts RequestOptions) (*wire.Envelope, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.cfg.RequestTimeout
	}
	retries := opts.MaxRetries
	if retries == 0 {
		retries = s.cfg.MaxRetries
	}
	if retries < 0 {
		retries = 0
	}

	if !opts.ExpectReply {
		env.ID = s.corr.NextID()
		return nil, s.writeEnvelope(env)
	}

	attempts := retries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		p := s.corr.Submit(time.Now().Add(timeout))
		env.ID = p.ID

		if err := s.writeEnvelope(env); err != nil {
			s.corr.Cancel(p.ID)
			return nil, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		reply, err := s.corr.Await(attemptCtx, p)
		cancel()
		if err == nil {
			return reply, nil
		}
		if err != ErrTimedOut {
			return nil, err
		}
		lastErr = err
		if attempt < attempts {
			delay := NextBackoffDelay(s.cfg.Backoff, attempt, s.rng)
			log.Debug().
				Uint32("id", p.ID).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("session: request retry")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ErrCancelled
			case <-s.closed:
				return nil, s.closeReason()
			}
		}
	}
	return nil, lastErr
}

// SendText transmits a text message. With wantAck the call blocks
// until the mesh acknowledges delivery.
func (s *Session) SendText(ctx context.Context, to uint32, channel uint8, body string, wantAck bool) error {
	env := wire.NewTextEnvelope(to, channel, wire.Text{Body: body, WantAck: wantAck})
	_, err := s.Request(ctx, env, RequestOptions{ExpectReply: wantAck})
	if err != nil {
		return err
	}
	my, _ := s.store.MyInfo()
	s.store.RecordSent(MessageRecord{
		From:       my.Num,
		To:         to,
		Channel:    channel,
		Body:       body,
		ReceivedAt: time.Now(),
	})
	return nil
}

// Traceroute asks the mesh for the hop path to dest.
func (s *Session) Traceroute(ctx context.Context, dest uint32) ([]uint32, error) {
	reply, err := s.Request(ctx, wire.NewTracerouteEnvelope(dest), RequestOptions{ExpectReply: true})
	if err != nil {
		return nil, err
	}
	r, err := wire.DecodeRouting(reply)
	if err != nil {
		return nil, err
	}
	if r.HasError {
		return nil, fmt.Errorf("session: traceroute failed, reason %d", r.ErrorReason)
	}
	return r.Route, nil
}

// Subscribe registers for the raw envelope stream.
func (s *Session) Subscribe() (<-chan *wire.Envelope, func()) {
	return s.bus.Subscribe()
}

// Nodes returns the current node mirror, ordered by node number.
func (s *Session) Nodes() []NodeRecord { return s.store.SnapshotNodes() }

// Node returns one node record by number.
func (s *Session) Node(num uint32) (NodeRecord, bool) { return s.store.Node(num) }

// NodeTelemetry returns the latest telemetry reported by a node.
func (s *Session) NodeTelemetry(num uint32) (wire.Telemetry, bool) {
	rec, ok := s.store.Node(num)
	if !ok || !rec.HasTelemetry {
		return wire.Telemetry{}, false
	}
	return rec.Telemetry, true
}

// Channels returns the committed channel list.
func (s *Session) Channels() []wire.ChannelInfo { return s.store.SnapshotChannels() }

// Config returns all device settings reported so far.
func (s *Session) Config() map[string]string { return s.store.SnapshotConfig() }

// Messages returns the retained text history.
func (s *Session) Messages() []MessageRecord { return s.store.Messages() }

// MyInfo returns the connected device's identity.
func (s *Session) MyInfo() (wire.MyInfo, bool) { return s.store.MyInfo() }

// Ready reports whether the handshake has completed and the session
// is still up.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready && s.closeErr == nil
}

// Close shuts the session down. Pending requests fail with ErrClosed.
func (s *Session) Close() error {
	s.teardown(ErrClosed)
	s.wg.Wait()
	return nil
}

func (s *Session) checkReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr != nil {
		return s.closeErr
	}
	if !s.ready {
		return ErrNotReady
	}
	return nil
}

func (s *Session) closeReason() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr != nil {
		return s.closeErr
	}
	return ErrClosed
}

func (s *Session) writeEnvelope(env *wire.Envelope) error {
	frame, err := wire.EncodeFrame(env)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	select {
	case <-s.closed:
		return s.closeReason()
	default:
	}
	if _, err := s.transport.Write(frame); err != nil {
		return fmt.Errorf("session: write: %w", err)
	}
	return nil
}

// teardown runs exactly once: it stops the loops, fails every pending
// request, and closes all subscriber channels.
func (s *Session) teardown(reason error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.ready = false
		s.closeErr = reason
		s.mu.Unlock()

		close(s.closed)
		s.transport.Close()
		s.corr.FailAll(reason)
		s.bus.CloseAll()
		log.Info().Err(reason).Msg("session: closed")
	})
}
