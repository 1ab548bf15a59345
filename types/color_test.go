package types

import "testing"

func TestScaleChannelEndpointsAndMonotonic(t *testing.T) {
	if ScaleChannel(0) != 0 || ScaleChannel(255) != 100 {
		t.Fatalf("endpoints: %d %d", ScaleChannel(0), ScaleChannel(255))
	}
	prev := Duty(0)
	for raw := 0; raw <= 255; raw++ {
		d := ScaleChannel(uint8(raw))
		if d < prev {
			t.Fatalf("not monotonic at %d: %d < %d", raw, d, prev)
		}
		if want := Duty(raw * 100 / 255); d != want {
			t.Fatalf("ScaleChannel(%d)=%d want %d", raw, d, want)
		}
		prev = d
	}
}

func TestColorTriple(t *testing.T) {
	got := Color(0xFF8000).Triple()
	want := Triple{100, 50, 0}
	if got != want {
		t.Fatalf("Triple=%v want %v", got, want)
	}
	if c := RGB(0x12, 0x34, 0x56); c != 0x123456 || c.Hex() != "123456" {
		t.Fatalf("RGB/Hex: %#x %q", uint32(c), c.Hex())
	}
	if Color(0x1FF8000).Triple() != want {
		t.Fatal("bits above 23 must be ignored")
	}
}

func TestTripleClamped(t *testing.T) {
	got := Triple{101, 255, 7}.Clamped()
	if got != (Triple{100, 100, 7}) {
		t.Fatalf("Clamped=%v", got)
	}
	if !(Triple{}).IsZero() || (Triple{0, 1, 0}).IsZero() {
		t.Fatal("IsZero")
	}
}
