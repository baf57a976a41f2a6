package protocol

import (
	"bytes"
	"errors"
	"testing"
)

// recordingSender captures sent packets and fails once failAfter packets were sent
type recordingSender struct {
	packets   [][]byte
	failAfter int
	attempts  int
}

func (s *recordingSender) Send(packet []byte) bool {
	s.attempts++
	if s.failAfter > 0 && len(s.packets) >= s.failAfter {
		return false
	}
	s.packets = append(s.packets, append([]byte(nil), packet...))
	return true
}

func (s *recordingSender) results(t *testing.T) [][]string {
	t.Helper()
	out := make([][]string, 0, len(s.packets))
	for _, p := range s.packets {
		f, err := ParseFrame(p)
		if err != nil {
			t.Fatalf("sent invalid frame % x: %v", p, err)
		}
		if f.Type != PacketTypeRPCResponse {
			t.Fatalf("sent %s, want RPCResponse", f.Type)
		}
		_, strs, err := ParseRPCResult(f.Payload)
		if err != nil {
			t.Fatalf("ParseRPCResult() error = %v", err)
		}
		out = append(out, strs)
	}
	return out
}

func TestDispatcher_Dispatch(t *testing.T) {
	d := NewDispatcher(&recordingSender{})

	var got Command
	d.Register(CommandWifiSettings, func(cmd Command) bool {
		got = cmd
		return true
	})
	d.Register(CommandGetCurrentState, func(Command) bool { return false })

	want := Command{Code: CommandWifiSettings, SSID: "net", Password: "pw"}
	if !d.Dispatch(want) {
		t.Error("Dispatch(WifiSettings) = false, want true")
	}
	if got != want {
		t.Errorf("handler received %v, want %v", got, want)
	}

	if d.Dispatch(Command{Code: CommandGetCurrentState}) {
		t.Error("Dispatch should return the handler result")
	}
	if d.Dispatch(Command{Code: CommandGetDeviceInfo}) {
		t.Error("Dispatch without handler = true, want false")
	}
	if d.Dispatch(Command{Code: CommandCode(0x42)}) {
		t.Error("Dispatch of unrecognized code = true, want false")
	}
}

func TestDispatcher_RegisterReplaces(t *testing.T) {
	d := NewDispatcher(nil)
	calls := 0
	d.Register(CommandGetDeviceInfo, func(Command) bool { calls++; return true })
	d.Register(CommandGetDeviceInfo, func(Command) bool { calls += 10; return true })

	d.Dispatch(Command{Code: CommandGetDeviceInfo})
	if calls != 10 {
		t.Errorf("calls = %d, want only the replacement handler", calls)
	}
}

func TestDispatcher_AccessPointList(t *testing.T) {
	d := NewDispatcher(nil)

	if d.AddEntry("early", -40, true) {
		t.Error("AddEntry before AllocateList = true, want false")
	}

	if !d.AllocateList(3) {
		t.Fatal("AllocateList(3) = false")
	}
	for _, ssid := range []string{"a", "b", "c"} {
		if !d.AddEntry(ssid, -50, true) {
			t.Fatalf("AddEntry(%s) = false, want true", ssid)
		}
	}
	if d.AddEntry("d", -50, true) {
		t.Error("AddEntry beyond capacity = true, want false")
	}
	if d.ListCount() != 3 {
		t.Errorf("ListCount() = %d, want 3", d.ListCount())
	}

	// Reallocating discards the previous list
	if !d.AllocateList(1) {
		t.Fatal("AllocateList(1) = false")
	}
	if d.ListCount() != 0 {
		t.Errorf("ListCount() after reallocate = %d, want 0", d.ListCount())
	}

	d.FreeList()
	if d.AddEntry("x", 0, false) {
		t.Error("AddEntry after FreeList = true, want false")
	}
	if d.AllocateList(-1) {
		t.Error("AllocateList(-1) = true, want false")
	}
}

func TestDispatcher_SendWifiList(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender)

	d.AllocateList(2)
	d.AddEntry("MyNet", -60, true)
	d.AddEntry("Guest", -72, false)

	if !d.SendWifiList() {
		t.Fatal("SendWifiList() = false, want true")
	}

	got := sender.results(t)
	want := [][]string{
		{"MyNet", "-60", "YES"},
		{"Guest", "-72", "NO"},
		{},
	}
	if len(got) != len(want) {
		t.Fatalf("sent %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Errorf("result[%d] = %q, want %q", i, got[i], want[i])
			continue
		}
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("result[%d][%d] = %q, want %q", i, j, got[i][j], want[i][j])
			}
		}
	}

	if d.ListCount() != 0 {
		t.Errorf("list not freed after send: %d entries", d.ListCount())
	}
}

func TestDispatcher_SendWifiList_Empty(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender)

	d.AllocateList(0)
	if !d.SendWifiList() {
		t.Fatal("SendWifiList() = false, want true")
	}

	terminator := rawFrame(PacketTypeRPCResponse, []byte{0x04, 0x00})
	if len(sender.packets) != 1 || !bytes.Equal(sender.packets[0], terminator) {
		t.Errorf("sent % x, want only the terminator % x", sender.packets, terminator)
	}
}

func TestDispatcher_SendWifiList_EntryFailure(t *testing.T) {
	sender := &recordingSender{failAfter: 1}
	d := NewDispatcher(sender)

	d.AllocateList(3)
	d.AddEntry("a", -1, false)
	d.AddEntry("b", -2, false)
	d.AddEntry("c", -3, false)

	if d.SendWifiList() {
		t.Error("SendWifiList() = true after a failed send")
	}
	// First entry, failed second entry, terminator attempt
	if sender.attempts != 3 {
		t.Errorf("send attempts = %d, want 3", sender.attempts)
	}
	if d.ListCount() != 0 {
		t.Error("list not freed after failed send")
	}
}

func TestDispatcher_SendWifiList_OversizedEntry(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender)

	d.AllocateList(2)
	d.AddEntry(string(bytes.Repeat([]byte{'s'}, 300)), -40, true)
	d.AddEntry("after", -50, false)

	if d.SendWifiList() {
		t.Error("SendWifiList() with an oversized SSID = true")
	}
	// The entry that cannot be built stops the list; only the terminator goes out
	got := sender.results(t)
	if len(got) != 1 || len(got[0]) != 0 {
		t.Errorf("sent results %q, want only the terminator", got)
	}
}

func TestDispatcher_SendDeviceURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want [][]string
	}{
		{name: "with url", url: "http://192.168.1.50", want: [][]string{{"http://192.168.1.50"}, {}}},
		{name: "without url", url: "", want: [][]string{{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			d := NewDispatcher(sender)

			if !d.SendDeviceURL(CommandWifiSettings, tt.url) {
				t.Fatal("SendDeviceURL() = false")
			}

			got := sender.results(t)
			if len(got) != len(tt.want) {
				t.Fatalf("sent %d results, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if len(got[i]) != len(tt.want[i]) || (len(got[i]) > 0 && got[i][0] != tt.want[i][0]) {
					t.Errorf("result[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDispatcher_SendWithoutSender(t *testing.T) {
	d := NewDispatcher(nil)
	if d.SendCurrentState(StateReadyAuthorized) {
		t.Error("SendCurrentState() without sender = true, want false")
	}

	if d.SendWifiList() {
		t.Error("SendWifiList() without sender = true, want false")
	}
}

func TestDispatcher_SendRPCResponseTooLarge(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender)

	long := string(bytes.Repeat([]byte{'a'}, 300))
	if d.SendRPCResponse(CommandGetDeviceInfo, []string{long}) {
		t.Error("SendRPCResponse() with oversized string = true")
	}
	if len(sender.packets) != 0 {
		t.Error("oversized response should not be sent")
	}
}

func TestDispatcher_ParseSerialLine(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender)

	var dispatched []CommandCode
	d.Register(CommandGetCurrentState, func(cmd Command) bool {
		dispatched = append(dispatched, cmd.Code)
		return d.SendCurrentState(StateReadyAuthorized)
	})

	ok, err := d.ParseSerialLine(rawFrame(PacketTypeRPC, []byte{0x02, 0x00}))
	if err != nil || !ok {
		t.Fatalf("ParseSerialLine() = %v, %v; want true, nil", ok, err)
	}
	if len(dispatched) != 1 {
		t.Fatalf("dispatched %v, want one GetCurrentState", dispatched)
	}

	// Bad checksum is answered with InvalidRPC
	bad := rawFrame(PacketTypeRPC, []byte{0x02, 0x00})
	bad[len(bad)-1]++
	ok, err = d.ParseSerialLine(bad)
	if ok {
		t.Error("ParseSerialLine(bad checksum) = true")
	}
	var csErr *ChecksumError
	if !errors.As(err, &csErr) {
		t.Errorf("error = %v, want *ChecksumError", err)
	}
	last := sender.packets[len(sender.packets)-1]
	if !bytes.Equal(last, BuildErrorState(ErrorInvalidRPC)) {
		t.Errorf("last sent % x, want ErrorState InvalidRPC", last)
	}

	// Non-RPC frames are ignored
	before := len(sender.packets)
	ok, err = d.ParseSerialLine(rawFrame(PacketTypeCurrentState, []byte{0x02}))
	if ok || err != nil {
		t.Errorf("ParseSerialLine(CurrentState) = %v, %v; want false, nil", ok, err)
	}
	if len(sender.packets) != before {
		t.Error("non-RPC frame triggered a response")
	}

	// Framing errors are returned without a response
	_, err = d.ParseSerialLine([]byte("IMPROV"))
	if !errors.Is(err, ErrFrameTooShort) {
		t.Errorf("error = %v, want ErrFrameTooShort", err)
	}
}

func TestDispatcher_MatcherIntegration(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender)
	d.Register(CommandGetDeviceInfo, func(Command) bool {
		return d.SendDeviceInfo(DeviceInfo{
			FirmwareName:    "improv-go",
			FirmwareVersion: "1.0.0",
			ChipVariant:     "sim",
			DeviceName:      "bench",
		})
	})

	m := NewMatcher(d.Dispatch, func(code ErrorCode) { d.SendError(code) })
	_, _ = m.Write(rawFrame(PacketTypeRPC, []byte{0x03, 0x00}))

	got := sender.results(t)
	if len(got) != 1 || len(got[0]) != 4 || got[0][3] != "bench" {
		t.Errorf("device info results = %q", got)
	}
}
