package protocol

import (
	"bytes"
	"errors"
	"testing"
)

type matchRecorder struct {
	commands []Command
	errors   []ErrorCode
}

func (r *matchRecorder) onCommand(cmd Command) bool {
	r.commands = append(r.commands, cmd)
	return true
}

func (r *matchRecorder) onError(code ErrorCode) {
	r.errors = append(r.errors, code)
}

func TestMatcher_GetCurrentState(t *testing.T) {
	rec := &matchRecorder{}
	m := NewMatcher(rec.onCommand, rec.onError)

	frame := []byte{'I', 'M', 'P', 'R', 'O', 'V', 0x01, 0x03, 0x02, 0x02, 0x00, 0xE5}
	for i, b := range frame {
		more := m.Feed(b)
		last := i == len(frame)-1
		if more == last {
			t.Fatalf("Feed(byte %d) = %v, want %v", i, more, !last)
		}
	}

	if len(rec.commands) != 1 {
		t.Fatalf("got %d commands, want 1", len(rec.commands))
	}
	if rec.commands[0].Code != CommandGetCurrentState {
		t.Errorf("command = %s, want GetCurrentState", rec.commands[0].Code)
	}
	if len(rec.errors) != 0 {
		t.Errorf("unexpected errors: %v", rec.errors)
	}
	if m.Pending() != 0 {
		t.Errorf("Pending() = %d after complete frame, want 0", m.Pending())
	}
}

func TestMatcher_TamperedChecksum(t *testing.T) {
	rec := &matchRecorder{}
	m := NewMatcher(rec.onCommand, rec.onError)

	frame := rawFrame(PacketTypeRPC, []byte{0x02, 0x00})
	frame[len(frame)-1]++
	_, _ = m.Write(frame)

	if len(rec.commands) != 0 {
		t.Errorf("tampered frame dispatched %v", rec.commands)
	}
	if len(rec.errors) != 1 || rec.errors[0] != ErrorInvalidRPC {
		t.Errorf("errors = %v, want [InvalidRPC]", rec.errors)
	}
}

func TestMatcher_Stream(t *testing.T) {
	tests := []struct {
		name         string
		stream       []byte
		wantCommands []CommandCode
		wantErrors   int
	}{
		{
			name:         "noise before frame",
			stream:       append([]byte("boot log\r\n"), rawFrame(PacketTypeRPC, []byte{0x03, 0x00})...),
			wantCommands: []CommandCode{CommandGetDeviceInfo},
		},
		{
			name: "back to back frames",
			stream: append(rawFrame(PacketTypeRPC, []byte{0x02, 0x00}),
				rawFrame(PacketTypeRPC, []byte{0x04, 0x00})...),
			wantCommands: []CommandCode{CommandGetCurrentState, CommandGetWifiNetworks},
		},
		{
			name:   "non rpc frame is not delivered",
			stream: rawFrame(PacketTypeCurrentState, []byte{0x02}),
		},
		{
			name: "wrong version is dropped",
			stream: func() []byte {
				f := rawFrame(PacketTypeRPC, []byte{0x02, 0x00})
				f[6] = 0x02
				return f
			}(),
		},
		{
			name:         "wifi settings",
			stream:       rawFrame(PacketTypeRPC, wifiSettingsPayload()),
			wantCommands: []CommandCode{CommandWifiSettings},
		},
		{
			name:         "length mismatch inside valid frame",
			stream:       rawFrame(PacketTypeRPC, []byte{0x02, 0x05}),
			wantCommands: []CommandCode{CommandUnknown},
		},
		{
			name: "bad frame then good frame",
			stream: func() []byte {
				bad := rawFrame(PacketTypeRPC, []byte{0x02, 0x00})
				bad[len(bad)-1] ^= 0xFF
				return append(bad, rawFrame(PacketTypeRPC, []byte{0x02, 0x00})...)
			}(),
			wantCommands: []CommandCode{CommandGetCurrentState},
			wantErrors:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &matchRecorder{}
			m := NewMatcher(rec.onCommand, rec.onError)
			_, _ = m.Write(tt.stream)

			if len(rec.commands) != len(tt.wantCommands) {
				t.Fatalf("got %d commands %v, want %v", len(rec.commands), rec.commands, tt.wantCommands)
			}
			for i, code := range tt.wantCommands {
				if rec.commands[i].Code != code {
					t.Errorf("command[%d] = %s, want %s", i, rec.commands[i].Code, code)
				}
			}
			if len(rec.errors) != tt.wantErrors {
				t.Errorf("got %d errors, want %d", len(rec.errors), tt.wantErrors)
			}
		})
	}
}

func TestMatcher_Reset(t *testing.T) {
	rec := &matchRecorder{}
	m := NewMatcher(rec.onCommand, rec.onError)

	frame := rawFrame(PacketTypeRPC, []byte{0x02, 0x00})
	_, _ = m.Write(frame[:5])
	if m.Pending() != 5 {
		t.Fatalf("Pending() = %d, want 5", m.Pending())
	}

	m.Reset()
	_, _ = m.Write(frame[5:])
	if len(rec.commands) != 0 {
		t.Errorf("partial frame after Reset dispatched %v", rec.commands)
	}

	_, _ = m.Write(frame)
	if len(rec.commands) != 1 {
		t.Errorf("got %d commands after full frame, want 1", len(rec.commands))
	}
}

func TestParseSerialByte(t *testing.T) {
	tests := []struct {
		name     string
		position int
		b        byte
		buffer   []byte
		want     bool
	}{
		{name: "first prefix byte", position: 0, b: 'I', buffer: nil, want: true},
		{name: "wrong first byte", position: 0, b: 'X', buffer: nil, want: false},
		{name: "prefix byte 5", position: 5, b: 'V', buffer: []byte("IMPRO"), want: true},
		{name: "version", position: 6, b: 0x01, buffer: []byte("IMPROV"), want: true},
		{name: "wrong version", position: 6, b: 0x02, buffer: []byte("IMPROV"), want: false},
		{name: "any packet type", position: 7, b: 0x7F, buffer: []byte("IMPROV\x01"), want: true},
		{name: "any length", position: 8, b: 0xFF, buffer: []byte("IMPROV\x01\x03"), want: true},
		{name: "payload byte", position: 9, b: 0x00, buffer: []byte("IMPROV\x01\x03\x02"), want: true},
		{name: "buffer shorter than position", position: 4, b: 'O', buffer: []byte("IM"), want: false},
		{name: "negative position", position: -1, b: 'I', buffer: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseSerialByte(tt.position, tt.b, tt.buffer, nil, nil); got != tt.want {
				t.Errorf("ParseSerialByte() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSerialByte_NilCallbacks(t *testing.T) {
	frame := rawFrame(PacketTypeRPC, []byte{0x02, 0x00})
	frame[len(frame)-1]++

	// Must not panic with a bad checksum and no callbacks
	for i, b := range frame {
		ParseSerialByte(i, b, frame[:i+1], nil, nil)
	}
}

func TestFrameScanner(t *testing.T) {
	state := rawFrame(PacketTypeCurrentState, []byte{0x03})
	result := rawFrame(PacketTypeRPCResponse, []byte{0x04, 0x00})

	stream := append([]byte("II"), state...)
	stream = append(stream, "garbage"...)
	stream = append(stream, result...)

	var s FrameScanner
	var frames []*Frame
	for _, b := range stream {
		f, err := s.Feed(b)
		if err != nil {
			t.Fatalf("Feed() unexpected error = %v", err)
		}
		if f != nil {
			frames = append(frames, f)
		}
	}

	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Type != PacketTypeCurrentState || frames[0].Payload[0] != byte(StateProvisioning) {
		t.Errorf("frame[0] = %v, want CurrentState Provisioning", frames[0])
	}
	if frames[1].Type != PacketTypeRPCResponse {
		t.Errorf("frame[1] = %v, want RPCResponse", frames[1])
	}
}

func TestFrameScanner_ChecksumError(t *testing.T) {
	frame := rawFrame(PacketTypeErrorState, []byte{0x03})
	frame[len(frame)-1] ^= 0x01

	var s FrameScanner
	var gotErr error
	for _, b := range frame {
		if _, err := s.Feed(b); err != nil {
			gotErr = err
		}
	}

	var csErr *ChecksumError
	if !errors.As(gotErr, &csErr) {
		t.Fatalf("error = %v, want *ChecksumError", gotErr)
	}
	if !bytes.Equal(csErr.Raw, frame) {
		t.Errorf("ChecksumError.Raw = % x, want % x", csErr.Raw, frame)
	}

	// The scanner recovers for the next frame
	for i, b := range rawFrame(PacketTypeErrorState, []byte{0x03}) {
		f, err := s.Feed(b)
		if err != nil {
			t.Fatalf("Feed(%d) error = %v", i, err)
		}
		if f != nil && f.Payload[0] != byte(ErrorUnableToConnect) {
			t.Errorf("payload = 0x%02x, want 0x03", f.Payload[0])
		}
	}
}
