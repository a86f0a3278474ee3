package osc

import (
	"testing"
	"time"
)

func TestTimetagConversion(t *testing.T) {
	for _, tt := range []struct {
		desc string
		time time.Time
		secs uint32
		frac uint32
	}{
		{"unix_epoch", time.Unix(0, 0), secondsFrom1900To1970, 0},
		{"half_second", time.Unix(1, 5e8), secondsFrom1900To1970 + 1, 0x80000000},
		{"quarter_second", time.Unix(10, 25e7), secondsFrom1900To1970 + 10, 0x40000000},
	} {
		tag := NewTimetag(tt.time)
		if got := tag.SecondsSinceEpoch(); got != tt.secs {
			t.Errorf("%s: SecondsSinceEpoch() = %d, want = %d", tt.desc, got, tt.secs)
		}
		if got := tag.FractionalSecond(); got != tt.frac {
			t.Errorf("%s: FractionalSecond() = %#x, want = %#x", tt.desc, got, tt.frac)
		}
		if got := tag.Time(); !got.Equal(tt.time) {
			t.Errorf("%s: Time() = %s, want = %s", tt.desc, got, tt.time)
		}
	}
}

func TestTimetagPrecision(t *testing.T) {
	ts := time.Date(2022, 3, 4, 5, 6, 7, 123456789, time.UTC)
	got := NewTimetag(ts).Time()
	if d := ts.Sub(got); d < 0 || d > time.Nanosecond {
		t.Errorf("Time() = %s, want within 1ns of %s", got, ts)
	}
}

func TestTimetagMarshalBinary(t *testing.T) {
	b, err := Timetag(0x0102030405060708).MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	for i := range want {
		if b[i] != want[i] {
			t.Fatalf("MarshalBinary() = %v, want = %v", b, want)
		}
	}
}

func TestExpiresIn(t *testing.T) {
	if d := TimetagImmediate.ExpiresIn(); d != 0 {
		t.Errorf("immediate ExpiresIn() = %s, want 0", d)
	}
	if d := NewTimetag(time.Now().Add(-time.Hour)).ExpiresIn(); d != 0 {
		t.Errorf("past ExpiresIn() = %s, want 0", d)
	}
	if d := NewTimetag(time.Now().Add(time.Hour)).ExpiresIn(); d < 59*time.Minute {
		t.Errorf("future ExpiresIn() = %s, want about 1h", d)
	}
}
