package frame

import (
	"bytes"
	"testing"
)

func TestEncodeProducesPreambleAndLength(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	b, err := Encode(payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{PreambleA, PreambleB, 0x00, 0x04, 0xDE, 0xAD, 0xBE, 0xEF}
	if !bytes.Equal(b, want) {
		t.Fatalf("unexpected frame: %x", b)
	}
}

func TestEncodeRejectsOversizePayload(t *testing.T) {
	if _, err := Encode(make([]byte, MaxPayload+1)); err == nil {
		t.Fatalf("expected oversize error")
	}
	if _, err := Encode(nil); err == nil {
		t.Fatalf("expected empty payload error")
	}
}

func TestDecoderWholeBufferAndByteAtATime(t *testing.T) {
	one, err := Encode([]byte("first"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	two, err := Encode([]byte("second"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	stream := append(append([]byte{}, one...), two...)

	var whole Decoder
	whole.Push(stream)
	wholeOut := drain(t, &whole)

	var split Decoder
	var splitOut [][]byte
	for _, b := range stream {
		split.Push([]byte{b})
		splitOut = append(splitOut, drain(t, &split)...)
	}

	if len(wholeOut) != 2 || len(splitOut) != 2 {
		t.Fatalf("frame counts: whole=%d split=%d", len(wholeOut), len(splitOut))
	}
	for i := range wholeOut {
		if !bytes.Equal(wholeOut[i], splitOut[i]) {
			t.Fatalf("frame %d differs: %x vs %x", i, wholeOut[i], splitOut[i])
		}
	}
	if string(wholeOut[0]) != "first" || string(wholeOut[1]) != "second" {
		t.Fatalf("unexpected payloads: %q %q", wholeOut[0], wholeOut[1])
	}
}

func TestDecoderSkipsLeadingGarbage(t *testing.T) {
	fr, err := Encode([]byte("payload"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var d Decoder
	d.Push([]byte{0x00, 0x42, PreambleA, 0x13})
	d.Push(fr)
	out := drain(t, &d)
	if len(out) != 1 || string(out[0]) != "payload" {
		t.Fatalf("unexpected frames: %v", out)
	}
}

func TestDecoderResyncAfterCorruptLength(t *testing.T) {
	good, err := Encode([]byte("survivor"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Valid preamble advertising an impossible length.
	corrupt := []byte{PreambleA, PreambleB, 0xFF, 0xFF}

	var d Decoder
	d.Push(corrupt)
	d.Push(good)
	out := drain(t, &d)
	if len(out) != 1 || string(out[0]) != "survivor" {
		t.Fatalf("resync failed: %v", out)
	}
}

func TestDecoderRejectRecoversSecondFrame(t *testing.T) {
	one, err := Encode([]byte("bad"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	two, err := Encode([]byte("good"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var d Decoder
	d.Push(one)
	d.Push(two)

	payload, ok := d.Peek()
	if !ok || string(payload) != "bad" {
		t.Fatalf("expected first payload, got %q ok=%v", payload, ok)
	}
	// Caller decided the payload is malformed.
	d.Reject()

	payload, ok = d.Peek()
	if !ok || string(payload) != "good" {
		t.Fatalf("expected second payload after reject, got %q ok=%v", payload, ok)
	}
	d.Commit()
	if _, ok := d.Peek(); ok {
		t.Fatalf("expected empty decoder")
	}
}

func TestDecoderPreambleSplitAcrossChunks(t *testing.T) {
	fr, err := Encode([]byte("split"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var d Decoder
	d.Push(fr[:1])
	if _, ok := d.Peek(); ok {
		t.Fatalf("incomplete frame must not decode")
	}
	d.Push(fr[1:])
	out := drain(t, &d)
	if len(out) != 1 || string(out[0]) != "split" {
		t.Fatalf("unexpected frames: %v", out)
	}
}

func drain(t *testing.T, d *Decoder) [][]byte {
	t.Helper()
	var out [][]byte
	for {
		payload, ok := d.Peek()
		if !ok {
			return out
		}
		cp := make([]byte, len(payload))
		copy(cp, payload)
		out = append(out, cp)
		d.Commit()
	}
}
