package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/danmuck/meshctl/internal/testutil/testlog"
	"github.com/danmuck/meshctl/internal/wire"
)

func TestStoreNodeMerge(t *testing.T) {
	testlog.Start(t)

	s := NewStore()
	now := time.Now()

	env, err := wire.NewNodeInfoEnvelope(0x1001, wire.NodeInfo{
		Num: 0x1001, LongName: "Ridge Repeater", ShortName: "RDG",
	})
	if err != nil {
		t.Fatalf("node_info envelope: %v", err)
	}
	s.Apply(env, now)

	// Position and telemetry for the same node fold into one record.
	s.Apply(wire.NewPositionEnvelope(0x1001, wire.Position{
		LatitudeI: 478112345, LongitudeI: -1223345678, Altitude: 120,
	}), now)
	s.Apply(wire.NewTelemetryEnvelope(0x1001, wire.Telemetry{
		Battery: 87, Voltage: 4.01,
	}), now)

	rec, ok := s.Node(0x1001)
	if !ok {
		t.Fatal("node 0x1001 missing")
	}
	if rec.LongName != "Ridge Repeater" {
		t.Fatalf("long name = %q", rec.LongName)
	}
	if !rec.HasPosition || rec.Position.LatitudeI != 478112345 {
		t.Fatalf("position not merged: %+v", rec.Position)
	}
	if !rec.HasTelemetry || rec.Telemetry.Battery != 87 {
		t.Fatalf("telemetry not merged: %+v", rec.Telemetry)
	}
}

func TestStorePositionBeforeNodeInfo(t *testing.T) {
	testlog.Start(t)

	s := NewStore()
	s.Apply(wire.NewPositionEnvelope(0x2002, wire.Position{LatitudeI: 1, LongitudeI: 2}), time.Now())

	rec, ok := s.Node(0x2002)
	if !ok {
		t.Fatal("skeleton record not created")
	}
	if rec.LongName != "" || !rec.HasPosition {
		t.Fatalf("unexpected skeleton: %+v", rec)
	}
}

func TestStoreSnapshotNodesSorted(t *testing.T) {
	testlog.Start(t)

	s := NewStore()
	now := time.Now()
	for _, num := range []uint32{0x30, 0x10, 0x20} {
		env, err := wire.NewNodeInfoEnvelope(num, wire.NodeInfo{
			Num: num, LongName: fmt.Sprintf("node-%x", num), ShortName: "N",
		})
		if err != nil {
			t.Fatalf("envelope: %v", err)
		}
		s.Apply(env, now)
	}

	nodes := s.SnapshotNodes()
	if len(nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(nodes))
	}
	for i := 1; i < len(nodes); i++ {
		if nodes[i-1].Num >= nodes[i].Num {
			t.Fatalf("snapshot not sorted: %d before %d", nodes[i-1].Num, nodes[i].Num)
		}
	}

	// Mutating the snapshot must not touch the store.
	nodes[0].LongName = "clobbered"
	rec, _ := s.Node(0x10)
	if rec.LongName == "clobbered" {
		t.Fatal("snapshot aliases store memory")
	}
}

func TestStoreChannelStaging(t *testing.T) {
	testlog.Start(t)

	s := NewStore()
	now := time.Now()

	stage := func(idx uint8, name string) {
		env, err := wire.NewChannelInfoEnvelope(1, wire.ChannelInfo{Index: idx, Name: name})
		if err != nil {
			t.Fatalf("channel envelope: %v", err)
		}
		s.Apply(env, now)
	}

	stage(1, "secondary")
	stage(0, "primary")

	// Nothing visible until the enumeration completes.
	if got := s.SnapshotChannels(); len(got) != 0 {
		t.Fatalf("channels visible before commit: %d", len(got))
	}

	s.Apply(wire.NewConfigCompleteEnvelope(99), now)

	got := s.SnapshotChannels()
	if len(got) != 2 {
		t.Fatalf("channels = %d, want 2", len(got))
	}
	// Device send-order is authoritative, not slot index order.
	if got[0].Name != "secondary" || got[1].Name != "primary" {
		t.Fatalf("channel order wrong: %+v", got)
	}

	// A second enumeration replaces the list wholesale.
	stage(0, "renamed")
	s.Apply(wire.NewConfigCompleteEnvelope(100), now)
	got = s.SnapshotChannels()
	if len(got) != 1 || got[0].Name != "renamed" {
		t.Fatalf("recommit wrong: %+v", got)
	}
}

func TestStoreChannelDeviceOrder(t *testing.T) {
	testlog.Start(t)

	s := NewStore()
	now := time.Now()
	sent := []wire.ChannelInfo{
		{Index: 2, Name: "gamma"},
		{Index: 0, Name: "alpha"},
		{Index: 1, Name: "beta"},
	}
	for _, c := range sent {
		env, err := wire.NewChannelInfoEnvelope(1, c)
		if err != nil {
			t.Fatalf("envelope: %v", err)
		}
		s.Apply(env, now)
	}
	s.Apply(wire.NewConfigCompleteEnvelope(7), now)

	got := s.SnapshotChannels()
	if len(got) != len(sent) {
		t.Fatalf("channels = %d, want %d", len(got), len(sent))
	}
	for i := range sent {
		if got[i].Index != sent[i].Index || got[i].Name != sent[i].Name {
			t.Fatalf("slot %d = %+v, want %+v", i, got[i], sent[i])
		}
	}
}

func TestStoreChannelRestage(t *testing.T) {
	testlog.Start(t)

	s := NewStore()
	now := time.Now()
	for _, name := range []string{"first", "second"} {
		env, err := wire.NewChannelInfoEnvelope(1, wire.ChannelInfo{Index: 0, Name: name})
		if err != nil {
			t.Fatalf("envelope: %v", err)
		}
		s.Apply(env, now)
	}
	s.Apply(wire.NewConfigCompleteEnvelope(1), now)

	got := s.SnapshotChannels()
	if len(got) != 1 || got[0].Name != "second" {
		t.Fatalf("restaged slot wrong: %+v", got)
	}
}

func TestStoreConfigAndMyInfo(t *testing.T) {
	testlog.Start(t)

	s := NewStore()
	now := time.Now()

	env, err := wire.NewConfigEnvelope(1, wire.ConfigEntry{Key: "lora.region", Value: "US"})
	if err != nil {
		t.Fatalf("config envelope: %v", err)
	}
	s.Apply(env, now)
	s.Apply(wire.NewMyInfoEnvelope(wire.MyInfo{Num: 0xDEAD, RebootCount: 3}), now)

	if v, ok := s.ConfigValue("lora.region"); !ok || v != "US" {
		t.Fatalf("config = %q, %v", v, ok)
	}
	my, ok := s.MyInfo()
	if !ok || my.Num != 0xDEAD {
		t.Fatalf("my_info = %+v, %v", my, ok)
	}
}

func TestStoreMessageHistoryBounded(t *testing.T) {
	testlog.Start(t)

	s := NewStore()
	now := time.Now()
	for i := 0; i < maxMessageHistory+10; i++ {
		env := wire.NewTextEnvelope(wire.Broadcast, 0, wire.Text{Body: fmt.Sprintf("msg %d", i)})
		env.From = 0x42
		s.Apply(env, now)
	}

	msgs := s.Messages()
	if len(msgs) != maxMessageHistory {
		t.Fatalf("history = %d, want %d", len(msgs), maxMessageHistory)
	}
	if msgs[len(msgs)-1].Body != fmt.Sprintf("msg %d", maxMessageHistory+9) {
		t.Fatalf("newest message wrong: %q", msgs[len(msgs)-1].Body)
	}
}

func TestStoreReset(t *testing.T) {
	testlog.Start(t)

	s := NewStore()
	now := time.Now()
	env, err := wire.NewNodeInfoEnvelope(9, wire.NodeInfo{Num: 9, LongName: "gone", ShortName: "G"})
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	s.Apply(env, now)
	s.Reset()

	if len(s.SnapshotNodes()) != 0 {
		t.Fatal("nodes survived reset")
	}
	if _, ok := s.MyInfo(); ok {
		t.Fatal("my_info survived reset")
	}
}
