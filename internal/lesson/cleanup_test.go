package lesson

import (
	"testing"
	"time"
)

func TestDriftExceeds(t *testing.T) {
	base := time.Date(2026, 1, 12, 12, 0, 0, 0, time.UTC)
	tol := time.Minute

	if driftExceeds(base, base, tol) {
		t.Fatalf("identical instants must not drift")
	}
	if driftExceeds(base, base.Add(59*time.Second), tol) {
		t.Fatalf("59s within a 1m tolerance")
	}
	if driftExceeds(base, base.Add(time.Minute), tol) {
		t.Fatalf("exactly the tolerance is not a drift")
	}
	if !driftExceeds(base, base.Add(61*time.Second), tol) {
		t.Fatalf("61s must exceed a 1m tolerance")
	}
	if !driftExceeds(base.Add(2*time.Hour), base, tol) {
		t.Fatalf("drift must be symmetric")
	}
}
