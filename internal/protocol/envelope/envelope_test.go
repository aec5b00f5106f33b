package envelope

import (
	"bytes"
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		env  Envelope
	}{
		{"empty payload", Envelope{Cmd: 20480, Sequence: 0}},
		{"small", Envelope{Cmd: 20513, Sequence: 7, Payload: []byte{0x01, 0x02, 0x03}}},
		{"negative ids", Envelope{Cmd: -1, Sequence: -42, Payload: []byte("x")}},
		{"large", Envelope{Cmd: 1, Sequence: 1, Payload: bytes.Repeat([]byte{0xAB}, 1<<16)}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			frame := Encode(c.env)
			if len(frame) != HeaderSize+len(c.env.Payload) {
				t.Fatalf("frame length = %d", len(frame))
			}
			got, err := Decode(frame)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.Cmd != c.env.Cmd || got.Sequence != c.env.Sequence {
				t.Errorf("header = (%d,%d); want (%d,%d)", got.Cmd, got.Sequence, c.env.Cmd, c.env.Sequence)
			}
			if !bytes.Equal(got.Payload, c.env.Payload) {
				t.Errorf("payload mismatch: %d bytes vs %d", len(got.Payload), len(c.env.Payload))
			}
		})
	}
}

func TestDecode_ZeroLengthPayloadIsNil(t *testing.T) {
	got, err := Decode(Encode(Envelope{Cmd: 3, Payload: []byte{}}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Payload != nil {
		t.Errorf("payload = %v; want nil", got.Payload)
	}
}

func TestDecode_Corruption(t *testing.T) {
	good := Encode(Envelope{Cmd: 1, Sequence: 2, Payload: []byte("abcd")})

	cases := []struct {
		name         string
		frame        []byte
		wantDeclared int
		wantActual   int
	}{
		{"short header", good[:5], -1, 5},
		{"truncated payload", good[:len(good)-1], 4, 3},
		{"trailing bytes", append(append([]byte{}, good...), 0xFF), 4, 5},
		{"negative length", []byte{0, 0, 0, 1, 0, 0, 0, 1, 0xFF, 0xFF, 0xFF, 0xFF}, -1, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Decode(c.frame)
			var fce *FrameCorruptionError
			if !errors.As(err, &fce) {
				t.Fatalf("expected FrameCorruptionError, got %v", err)
			}
			if fce.Declared != c.wantDeclared || fce.Actual != c.wantActual {
				t.Errorf("got declared=%d actual=%d; want %d/%d", fce.Declared, fce.Actual, c.wantDeclared, c.wantActual)
			}
		})
	}
}

func TestSequencer_StrictlyIncreasing(t *testing.T) {
	s := NewSequencer(1)
	prev := s.Next()
	if prev != 1 {
		t.Fatalf("first = %d; want 1", prev)
	}
	for i := 0; i < 100; i++ {
		n := s.Next()
		if n <= prev {
			t.Fatalf("sequence went from %d to %d", prev, n)
		}
		prev = n
	}
	if s.Last() != prev {
		t.Errorf("Last = %d; want %d", s.Last(), prev)
	}
}
