package attendance

import "testing"

func TestFlip(t *testing.T) {
	cases := map[string]string{
		"present": StatusAbsent,
		"absent":  StatusPresent,
		"":        StatusPresent,
		"PRESENT": StatusPresent,
	}
	for known, want := range cases {
		if got := Flip(known); got != want {
			t.Fatalf("Flip(%q) = %q, want %q", known, got, want)
		}
	}
}

func TestFlipConverges(t *testing.T) {
	// Two taps from clients that both believed the student was present
	// must land on the same stored status.
	first := Flip("present")
	second := Flip("present")
	if first != second || first != StatusAbsent {
		t.Fatalf("duplicate taps diverged: %q vs %q", first, second)
	}
}
