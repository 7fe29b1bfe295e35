package relay

import (
	"errors"
	"strings"
	"testing"

	"github.com/duckrelay/duckrelay-go/pkg/clock"
)

// fakePort is a scripted Port: writes are captured, reads pop from a
// queue of prepared lines.
type fakePort struct {
	written []string
	lines   []string
	readErr error
	flushed int
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.written = append(f.written, string(p))
	return len(p), nil
}

func (f *fakePort) ReadLine() (string, bool, error) {
	if f.readErr != nil {
		return "", false, f.readErr
	}
	if len(f.lines) == 0 {
		return "", false, nil
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, true, nil
}

func (f *fakePort) Flush() error {
	f.flushed++
	return nil
}

func TestParseAck(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Ack
		ok   bool
	}{
		{
			"Done",
			`PICO_DONE:{"command":"open","status":"success","execution_time":412}`,
			Done{Command: "open", Status: "success", ExecutionTimeMs: 412},
			true,
		},
		{
			"DoneMalformed",
			`PICO_DONE:{not json`,
			Done{Malformed: true},
			true,
		},
		{
			"Error",
			"PICO_ERROR:usb not ready",
			ExecError{Message: "usb not ready"},
			true,
		},
		{
			"Progress",
			"PICO_PROGRESS:line 3 of 10",
			Progress{Message: "line 3 of 10"},
			true,
		},
		{"Unrecognized", "hello world", nil, false},
		{"Empty", "", nil, false},
		{"CarriageReturn", "PICO_ERROR:oops\r", ExecError{Message: "oops"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAck(tt.line)
			if ok != tt.ok {
				t.Fatalf("ParseAck(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParseAck(%q) = %#v, want %#v", tt.line, got, tt.want)
			}
		})
	}
}

func TestSendWritesOneJSONLine(t *testing.T) {
	port := &fakePort{}
	clk := clock.NewFake(0)
	link := New(port, clk, nil)

	if err := link.Send("GUI r"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(port.written) != 1 {
		t.Fatalf("wrote %d chunks, want 1", len(port.written))
	}
	msg := port.written[0]
	if !strings.HasSuffix(msg, "\n") {
		t.Error("message not newline-terminated")
	}
	if !strings.Contains(msg, `"ducky_script":"GUI r"`) {
		t.Errorf("message = %q, want ducky_script payload", msg)
	}
	if port.flushed != 1 {
		t.Errorf("flushed %d times, want 1", port.flushed)
	}
	if !link.InFlight() {
		t.Error("transaction not marked in flight")
	}
}

func TestSendRejectsWhileBusy(t *testing.T) {
	link := New(&fakePort{}, clock.NewFake(0), nil)

	if err := link.Send("A"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := link.Send("B"); !errors.Is(err, ErrBusy) {
		t.Errorf("second Send = %v, want ErrBusy", err)
	}
}

func TestPumpDoneClearsInFlight(t *testing.T) {
	port := &fakePort{}
	link := New(port, clock.NewFake(0), nil)

	if err := link.Send("A"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	port.lines = []string{`PICO_DONE:{"command":"A","status":"success","execution_time":9}`}
	acks, err := link.Pump(DefaultPumpBatch)
	if err != nil {
		t.Fatalf("Pump failed: %v", err)
	}
	if len(acks) != 1 {
		t.Fatalf("got %d acks, want 1", len(acks))
	}
	done, ok := acks[0].(Done)
	if !ok {
		t.Fatalf("ack = %T, want Done", acks[0])
	}
	if done.Command != "A" || done.ExecutionTimeMs != 9 {
		t.Errorf("done = %+v", done)
	}
	if link.InFlight() {
		t.Error("in-flight flag not cleared by DONE")
	}
}

func TestPumpMalformedDoneStillClearsInFlight(t *testing.T) {
	port := &fakePort{}
	link := New(port, clock.NewFake(0), nil)
	link.Send("A")

	port.lines = []string{"PICO_DONE:garbage"}
	acks, err := link.Pump(DefaultPumpBatch)
	if err != nil {
		t.Fatalf("Pump failed: %v", err)
	}
	if len(acks) != 1 {
		t.Fatalf("got %d acks, want 1", len(acks))
	}
	if done := acks[0].(Done); !done.Malformed {
		t.Error("expected Malformed done")
	}
	if link.InFlight() {
		t.Error("in-flight flag must clear even when the payload is unparseable")
	}
}

func TestPumpProgressKeepsInFlight(t *testing.T) {
	port := &fakePort{}
	link := New(port, clock.NewFake(0), nil)
	link.Send("A")

	port.lines = []string{"PICO_PROGRESS:typing"}
	if _, err := link.Pump(DefaultPumpBatch); err != nil {
		t.Fatalf("Pump failed: %v", err)
	}
	if !link.InFlight() {
		t.Error("progress line must not clear the in-flight flag")
	}
}

func TestPumpErrorClearsInFlight(t *testing.T) {
	port := &fakePort{}
	link := New(port, clock.NewFake(0), nil)
	link.Send("A")

	port.lines = []string{"PICO_ERROR:keyboard detached"}
	acks, err := link.Pump(DefaultPumpBatch)
	if err != nil {
		t.Fatalf("Pump failed: %v", err)
	}
	if execErr := acks[0].(ExecError); execErr.Message != "keyboard detached" {
		t.Errorf("message = %q", execErr.Message)
	}
	if link.InFlight() {
		t.Error("in-flight flag not cleared by ERROR")
	}
}

func TestPumpBatchBound(t *testing.T) {
	port := &fakePort{}
	link := New(port, clock.NewFake(0), nil)

	for i := 0; i < 8; i++ {
		port.lines = append(port.lines, "PICO_PROGRESS:tick")
	}

	acks, err := link.Pump(5)
	if err != nil {
		t.Fatalf("Pump failed: %v", err)
	}
	if len(acks) != 5 {
		t.Errorf("processed %d lines, want batch bound 5", len(acks))
	}
	if len(port.lines) != 3 {
		t.Errorf("%d lines left, want 3", len(port.lines))
	}
}

func TestPumpIgnoresUnrecognizedLines(t *testing.T) {
	port := &fakePort{}
	link := New(port, clock.NewFake(0), nil)

	port.lines = []string{"boot banner", "PICO_PROGRESS:ok", "noise"}
	acks, err := link.Pump(DefaultPumpBatch)
	if err != nil {
		t.Fatalf("Pump failed: %v", err)
	}
	if len(acks) != 1 {
		t.Errorf("got %d acks, want 1 (noise skipped silently)", len(acks))
	}
}

func TestPumpSurfacesReadFault(t *testing.T) {
	port := &fakePort{readErr: errors.New("device gone")}
	link := New(port, clock.NewFake(0), nil)

	if _, err := link.Pump(DefaultPumpBatch); err == nil {
		t.Error("Pump with failing port succeeded, want error")
	}
}

func TestTimeoutClearsExactlyOnce(t *testing.T) {
	port := &fakePort{}
	clk := clock.NewFake(0)
	link := New(port, clk, nil)
	link.Send("A")

	// Just inside the bound: no release.
	clk.Advance(AckTimeout)
	if link.CheckTimeout(clk.Now()) {
		t.Error("timeout fired at exactly the bound, want strictly after")
	}

	clk.Advance(1)
	if !link.CheckTimeout(clk.Now()) {
		t.Error("timeout did not fire after the bound")
	}
	if link.InFlight() {
		t.Error("in-flight flag not cleared by timeout")
	}

	// Second check must not fire again.
	if link.CheckTimeout(clk.Now()) {
		t.Error("timeout fired twice for one transaction")
	}
}

func TestTimeoutAcrossCounterWrap(t *testing.T) {
	port := &fakePort{}
	clk := clock.NewFake(0xFFFFFF00)
	link := New(port, clk, nil)
	link.Send("A")

	clk.Advance(AckTimeout + 256)
	if !link.CheckTimeout(clk.Now()) {
		t.Error("timeout did not fire across counter wrap")
	}
}

func TestSendAfterTimeoutAllowed(t *testing.T) {
	port := &fakePort{}
	clk := clock.NewFake(0)
	link := New(port, clk, nil)
	link.Send("A")

	clk.Advance(AckTimeout + 1)
	link.CheckTimeout(clk.Now())

	if err := link.Send("B"); err != nil {
		t.Errorf("Send after timeout = %v, want nil", err)
	}
}

func TestAbandon(t *testing.T) {
	link := New(&fakePort{}, clock.NewFake(0), nil)
	link.Send("A")
	link.Abandon()

	if link.InFlight() {
		t.Error("Abandon did not clear the in-flight flag")
	}
}
