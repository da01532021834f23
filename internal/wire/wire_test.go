package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/meshctl/internal/testutil/testlog"
)

func TestEnvelopeRoundTripNodeInfo(t *testing.T) {
	testlog.Start(t)
	env, err := NewNodeInfoEnvelope(0xAABBCCDD, NodeInfo{
		Num:       0xAABBCCDD,
		LongName:  "Base",
		ShortName: "BASE",
		HwModel:   "TBEAM",
		LastHeard: 1700000000,
		SNR:       7.25,
		HasSNR:    true,
		HopsAway:  2,
		HasHops:   true,
	})
	if err != nil {
		t.Fatalf("new node_info: %v", err)
	}
	env.ID = 41

	payload, err := EncodeEnvelope(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeEnvelope(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != 41 || got.From != 0xAABBCCDD || got.Kind != KindNodeInfo {
		t.Fatalf("unexpected header: %+v", got)
	}
	n, err := DecodeNodeInfo(got)
	if err != nil {
		t.Fatalf("decode node_info: %v", err)
	}
	if n.Num != 0xAABBCCDD || n.LongName != "Base" || n.ShortName != "BASE" {
		t.Fatalf("unexpected node_info: %+v", n)
	}
	if !n.HasSNR || n.SNR != 7.25 || !n.HasHops || n.HopsAway != 2 {
		t.Fatalf("optional fields lost: %+v", n)
	}
}

func TestEnvelopeRoundTripText(t *testing.T) {
	testlog.Start(t)
	env := NewTextEnvelope(Broadcast, 3, Text{Body: "hello mesh", WantAck: true})
	env.ID = 9
	payload, err := EncodeEnvelope(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeEnvelope(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.To != Broadcast || got.Channel != 3 {
		t.Fatalf("unexpected routing: %+v", got)
	}
	msg, err := DecodeText(got)
	if err != nil {
		t.Fatalf("decode text: %v", err)
	}
	if msg.Body != "hello mesh" || !msg.WantAck {
		t.Fatalf("unexpected text: %+v", msg)
	}
}

func TestEnvelopeRoundTripRoutingRoute(t *testing.T) {
	testlog.Start(t)
	env := NewRoutingEnvelope(7, Routing{AckFor: 55, Route: []uint32{1, 2, 0xDEADBEEF}})
	payload, err := EncodeEnvelope(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeEnvelope(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, err := DecodeRouting(got)
	if err != nil {
		t.Fatalf("decode routing: %v", err)
	}
	if r.AckFor != 55 || len(r.Route) != 3 || r.Route[2] != 0xDEADBEEF {
		t.Fatalf("unexpected routing: %+v", r)
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	testlog.Start(t)
	env := NewHeartbeatEnvelope()
	payload, err := EncodeEnvelope(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	payload[13] = 0xEE
	if _, err := DecodeEnvelope(payload); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestDecodeRejectsMissingRequiredField(t *testing.T) {
	testlog.Start(t)
	env := &Envelope{Kind: KindConfig, Fields: []Field{
		NewFieldString(FieldKey, "lora.region"),
		NewFieldString(FieldValue, "US"),
	}}
	payload, err := EncodeEnvelope(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeEnvelope(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	c, err := DecodeConfig(got)
	if err != nil || c.Key != "lora.region" || c.Value != "US" {
		t.Fatalf("unexpected config: %+v err=%v", c, err)
	}

	bare := &Envelope{Kind: KindConfig}
	payload, err = EncodeEnvelope(bare)
	if err != nil {
		t.Fatalf("encode bare: %v", err)
	}
	if _, err := DecodeEnvelope(payload); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestValidateKindUnknownFieldsPass(t *testing.T) {
	testlog.Start(t)
	fields := []Field{
		NewFieldUint32(FieldNonce, 1),
		NewFieldBytes(9999, []byte{0xAA}), // future field id
	}
	if err := ValidateKind(KindConfigComplete, fields); err != nil {
		t.Fatalf("unknown field must pass: %v", err)
	}
}

func TestCodecByteAtATimeMatchesWholeBuffer(t *testing.T) {
	testlog.Start(t)
	first, err := EncodeFrame(NewPositionEnvelope(3, Position{LatitudeI: 374220000, LongitudeI: -1220840000, Altitude: 30}))
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	cfg, err := NewConfigEnvelope(0, ConfigEntry{Key: "lora.region", Value: "US"})
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	second, err := EncodeFrame(cfg)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	stream := append(append([]byte{}, first...), second...)

	var whole Codec
	whole.Push(stream)
	wholeOut := drainCodec(&whole)

	var split Codec
	var splitOut []*Envelope
	for _, b := range stream {
		split.Push([]byte{b})
		splitOut = append(splitOut, drainCodec(&split)...)
	}

	if len(wholeOut) != 2 || len(splitOut) != 2 {
		t.Fatalf("envelope counts: whole=%d split=%d", len(wholeOut), len(splitOut))
	}
	for i := range wholeOut {
		a, _ := EncodeEnvelope(wholeOut[i])
		b, _ := EncodeEnvelope(splitOut[i])
		if !bytes.Equal(a, b) {
			t.Fatalf("envelope %d differs", i)
		}
	}
}

func TestCodecResyncAfterCorruptEnvelope(t *testing.T) {
	testlog.Start(t)
	bad, err := EncodeFrame(NewHeartbeatEnvelope())
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	// Corrupt the kind byte inside an otherwise valid frame.
	bad[4+13] = 0xEE

	good, err := EncodeFrame(NewTextEnvelope(Broadcast, 0, Text{Body: "after corruption"}))
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}

	var c Codec
	c.Push(bad)
	c.Push(good)
	out := drainCodec(&c)
	if len(out) != 1 {
		t.Fatalf("expected exactly the surviving envelope, got %d", len(out))
	}
	msg, err := DecodeText(out[0])
	if err != nil || msg.Body != "after corruption" {
		t.Fatalf("unexpected survivor: %+v err=%v", msg, err)
	}
}

func drainCodec(c *Codec) []*Envelope {
	var out []*Envelope
	for {
		env, ok := c.Next()
		if !ok {
			return out
		}
		out = append(out, env)
	}
}
