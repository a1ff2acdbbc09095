package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestEncodePrependsBigEndianLength(t *testing.T) {
	payload := []byte(`{"type":"restart"}`)
	frame := Encode(payload)

	if len(frame) != HeaderSize+len(payload) {
		t.Fatalf("expected frame length %d, got %d", HeaderSize+len(payload), len(frame))
	}
	if got := binary.BigEndian.Uint32(frame); got != uint32(len(payload)) {
		t.Fatalf("expected header %d, got %d", len(payload), got)
	}
	if !bytes.Equal(frame[HeaderSize:], payload) {
		t.Fatalf("expected payload %q, got %q", payload, frame[HeaderSize:])
	}
}

func TestFeedRetainsIncompleteFrame(t *testing.T) {
	frame := Encode([]byte(`{"type":"input"}`))

	msgs, rest := Feed(nil, frame[:3])
	if len(msgs) != 0 || len(rest) != 3 {
		t.Fatalf("expected header fragment retained, got %d msgs and %d bytes", len(msgs), len(rest))
	}
	msgs, rest = Feed(rest, frame[3:len(frame)-1])
	if len(msgs) != 0 || len(rest) != len(frame)-1 {
		t.Fatalf("expected body fragment retained, got %d msgs and %d bytes", len(msgs), len(rest))
	}
	msgs, rest = Feed(rest, frame[len(frame)-1:])
	if len(msgs) != 1 || len(rest) != 0 {
		t.Fatalf("expected one complete message, got %d msgs and %d bytes", len(msgs), len(rest))
	}
	if string(msgs[0]) != `{"type":"input"}` {
		t.Fatalf("unexpected payload %q", msgs[0])
	}
}

func TestFeedSplitDeliveryMatchesWholeDelivery(t *testing.T) {
	payloads := [][]byte{
		[]byte(`{"type":"input","left":true}`),
		[]byte(`{}`),
		[]byte(``),
		[]byte(`{"type":"change_room","room_id":3}`),
		bytes.Repeat([]byte("x"), 5000),
	}
	var stream []byte
	for _, p := range payloads {
		stream = append(stream, Encode(p)...)
	}

	whole, rest := Feed(nil, stream)
	if len(rest) != 0 {
		t.Fatalf("expected empty remainder, got %d bytes", len(rest))
	}

	for _, chunk := range []int{1, 2, 3, 5, 7, 4096} {
		var got [][]byte
		var buf []byte
		for off := 0; off < len(stream); off += chunk {
			end := off + chunk
			if end > len(stream) {
				end = len(stream)
			}
			var msgs [][]byte
			msgs, buf = Feed(buf, stream[off:end])
			got = append(got, msgs...)
		}
		if len(buf) != 0 {
			t.Fatalf("chunk %d: expected empty remainder, got %d bytes", chunk, len(buf))
		}
		if len(got) != len(whole) || len(got) != len(payloads) {
			t.Fatalf("chunk %d: expected %d messages, got %d", chunk, len(payloads), len(got))
		}
		for i := range payloads {
			if !bytes.Equal(got[i], payloads[i]) || !bytes.Equal(got[i], whole[i]) {
				t.Fatalf("chunk %d: message %d mismatch", chunk, i)
			}
		}
	}
}

func TestDecoderRejectsOversizedFrame(t *testing.T) {
	d := NewDecoder(16)
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header, 17)

	if _, err := d.Write(header); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestDecoderByteAtATime(t *testing.T) {
	d := NewDecoder(0)
	stream := append(Encode([]byte(`{"type":"restart"}`)), Encode([]byte(`{"type":"input"}`))...)

	var got []string
	for _, b := range stream {
		msgs, err := d.Write([]byte{b})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, m := range msgs {
			got = append(got, string(m))
		}
	}
	if len(got) != 2 || got[0] != `{"type":"restart"}` || got[1] != `{"type":"input"}` {
		t.Fatalf("unexpected messages %q", got)
	}
	if d.Buffered() != 0 {
		t.Fatalf("expected empty buffer, got %d bytes", d.Buffered())
	}
}
