package session

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/meshctl/internal/wire"
)

// maxMessageHistory bounds the retained text history per session.
const maxMessageHistory = 256

// NodeRecord is the store's merged view of one mesh node. Position
// and telemetry arrive in separate envelopes and are folded into the
// same record keyed by node number.
type NodeRecord struct {
	Num       uint32
	LongName  string
	ShortName string
	HwModel   string
	LastHeard uint32
	SNR       float32
	HasSNR    bool
	HopsAway  uint8
	HasHops   bool

	Position     wire.Position
	HasPosition  bool
	Telemetry    wire.Telemetry
	HasTelemetry bool

	UpdatedAt time.Time
}

// MessageRecord is one received or sent text message.
type MessageRecord struct {
	From       uint32
	To         uint32
	Channel    uint8
	Body       string
	RxSNR      float32
	RxRSSI     int32
	ReceivedAt time.Time
}

// Store mirrors the device's reported state. Only the session's
// reader loop writes; snapshots serve any number of readers. Channel
// slots enumerated during a handshake are staged in device-sent order
// and swapped in as one unit when ConfigComplete lands, so readers
// never observe a half-rebuilt list.
type Store struct {
	mu sync.RWMutex

	my    wire.MyInfo
	hasMy bool

	nodes    map[uint32]*NodeRecord
	channels []wire.ChannelInfo
	staged   []wire.ChannelInfo
	config   map[string]string
	messages []MessageRecord
}

func NewStore() *Store {
	return &Store{
		nodes:  make(map[uint32]*NodeRecord),
		config: make(map[string]string),
	}
}

// Reset discards all device state. Called at the start of every
// connect; the handshake enumeration rebuilds everything.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.my = wire.MyInfo{}
	s.hasMy = false
	s.nodes = make(map[uint32]*NodeRecord)
	s.channels = nil
	s.staged = nil
	s.config = make(map[string]string)
	s.messages = nil
}

// Apply folds one device envelope into the mirror. Unknown and
// request-only kinds are ignored; decode failures are logged and
// skipped so one malformed envelope cannot poison the stream.
func (s *Store) Apply(env *wire.Envelope, now time.Time) {
	switch env.Kind {
	case wire.KindNodeInfo:
		n, err := wire.DecodeNodeInfo(env)
		if err != nil {
			log.Debug().Err(err).Uint32("from", env.From).Msg("store: bad node_info")
			return
		}
		s.applyNodeInfo(n, now)
	case wire.KindPosition:
		p, err := wire.DecodePosition(env)
		if err != nil {
			log.Debug().Err(err).Uint32("from", env.From).Msg("store: bad position")
			return
		}
		s.applyPosition(env.From, p, now)
	case wire.KindTelemetry:
		tm, err := wire.DecodeTelemetry(env)
		if err != nil {
			log.Debug().Err(err).Uint32("from", env.From).Msg("store: bad telemetry")
			return
		}
		s.applyTelemetry(env.From, tm, now)
	case wire.KindConfig:
		c, err := wire.DecodeConfig(env)
		if err != nil {
			log.Debug().Err(err).Msg("store: bad config entry")
			return
		}
		s.mu.Lock()
		s.config[c.Key] = c.Value
		s.mu.Unlock()
	case wire.KindChannelInfo:
		c, err := wire.DecodeChannelInfo(env)
		if err != nil {
			log.Debug().Err(err).Msg("store: bad channel_info")
			return
		}
		s.stageChannel(c)
	case wire.KindConfigComplete:
		s.commitChannels()
	case wire.KindText:
		t, err := wire.DecodeText(env)
		if err != nil {
			log.Debug().Err(err).Uint32("from", env.From).Msg("store: bad text")
			return
		}
		s.appendMessage(MessageRecord{
			From:       env.From,
			To:         env.To,
			Channel:    env.Channel,
			Body:       t.Body,
			RxSNR:      t.RxSNR,
			RxRSSI:     t.RxRSSI,
			ReceivedAt: now,
		})
	case wire.KindMyInfo:
		m, err := wire.DecodeMyInfo(env)
		if err != nil {
			log.Debug().Err(err).Msg("store: bad my_info")
			return
		}
		s.mu.Lock()
		s.my = m
		s.hasMy = true
		s.mu.Unlock()
	}
}

func (s *Store) applyNodeInfo(n wire.NodeInfo, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.nodeLocked(n.Num)
	rec.LongName = n.LongName
	rec.ShortName = n.ShortName
	if n.HwModel != "" {
		rec.HwModel = n.HwModel
	}
	if n.LastHeard != 0 {
		rec.LastHeard = n.LastHeard
	}
	if n.HasSNR {
		rec.SNR = n.SNR
		rec.HasSNR = true
	}
	if n.HasHops {
		rec.HopsAway = n.HopsAway
		rec.HasHops = true
	}
	rec.UpdatedAt = now
}

func (s *Store) applyPosition(from uint32, p wire.Position, now time.Time) {
	if from == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.nodeLocked(from)
	rec.Position = p
	rec.HasPosition = true
	rec.UpdatedAt = now
}

func (s *Store) applyTelemetry(from uint32, tm wire.Telemetry, now time.Time) {
	if from == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.nodeLocked(from)
	rec.Telemetry = tm
	rec.HasTelemetry = true
	rec.UpdatedAt = now
}

// nodeLocked returns the record for num, creating a skeleton if the
// node has not introduced itself yet.
func (s *Store) nodeLocked(num uint32) *NodeRecord {
	rec, ok := s.nodes[num]
	if !ok {
		rec = &NodeRecord{Num: num}
		s.nodes[num] = rec
	}
	return rec
}

func (s *Store) stageChannel(c wire.ChannelInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.staged {
		if s.staged[i].Index == c.Index {
			s.staged[i] = c
			return
		}
	}
	s.staged = append(s.staged, c)
}

func (s *Store) commitChannels() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged == nil {
		return
	}
	// Device send-order is authoritative; the staged slice already
	// holds first-seen order with in-place upserts.
	s.channels = s.staged
	s.staged = nil
	log.Debug().Int("channels", len(s.channels)).Msg("store: channel list committed")
}

func (s *Store) appendMessage(m MessageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	if len(s.messages) > maxMessageHistory {
		s.messages = s.messages[len(s.messages)-maxMessageHistory:]
	}
}

// RecordSent adds a locally sent text to the history.
func (s *Store) RecordSent(m MessageRecord) {
	s.appendMessage(m)
}

// MyInfo returns the connected device's identity, if reported.
func (s *Store) MyInfo() (wire.MyInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.my, s.hasMy
}

// SnapshotNodes returns a copy of every known node, ordered by node
// number.
func (s *Store) SnapshotNodes() []NodeRecord {
	s.mu.RLock()
	out := make([]NodeRecord, 0, len(s.nodes))
	for _, rec := range s.nodes {
		out = append(out, *rec)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out
}

// Node returns a copy of one node record.
func (s *Store) Node(num uint32) (NodeRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.nodes[num]
	if !ok {
		return NodeRecord{}, false
	}
	return *rec, true
}

// SnapshotChannels returns the committed channel list.
func (s *Store) SnapshotChannels() []wire.ChannelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]wire.ChannelInfo, len(s.channels))
	copy(out, s.channels)
	return out
}

// ConfigValue returns one device setting by key.
func (s *Store) ConfigValue(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.config[key]
	return v, ok
}

// SnapshotConfig returns a copy of all known settings.
func (s *Store) SnapshotConfig() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.config))
	for k, v := range s.config {
		out[k] = v
	}
	return out
}

// Messages returns the retained text history, oldest first.
func (s *Store) Messages() []MessageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MessageRecord, len(s.messages))
	copy(out, s.messages)
	return out
}
