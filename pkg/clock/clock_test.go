package clock

import (
	"testing"
	"time"
)

func TestSinceWraparound(t *testing.T) {
	tests := []struct {
		name string
		now  Millis
		then Millis
		want Millis
	}{
		{"Zero", 1000, 1000, 0},
		{"Simple", 1500, 1000, 500},
		{"AcrossWrap", 500, 0xFFFFFE0C, 1000},
		{"JustBeforeWrap", 0xFFFFFFFF, 0xFFFFFC17, 1000},
		{"FullPeriodMinusOne", 0, 1, 0xFFFFFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Since(tt.now, tt.then); got != tt.want {
				t.Errorf("Since(%d, %d) = %d, want %d", tt.now, tt.then, got, tt.want)
			}
		})
	}
}

func TestFakeAdvance(t *testing.T) {
	f := NewFake(100)

	if f.Now() != 100 {
		t.Errorf("Now() = %d, want 100", f.Now())
	}

	f.Advance(250)
	if f.Now() != 350 {
		t.Errorf("Now() = %d, want 350", f.Now())
	}

	f.Set(0xFFFFFFFF)
	f.Advance(1)
	if f.Now() != 0 {
		t.Errorf("Now() after wrap = %d, want 0", f.Now())
	}
}

func TestSystemClockMonotonic(t *testing.T) {
	c := NewSystemClock()

	a := c.Now()
	time.Sleep(5 * time.Millisecond)
	b := c.Now()

	if Since(b, a) == 0 {
		t.Error("expected clock to advance across a sleep")
	}
}
