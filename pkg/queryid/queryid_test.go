package queryid

import "testing"

func TestNextIsMonotonicAndNeverSentinel(t *testing.T) {
	a := Next()
	b := Next()
	if b <= a {
		t.Fatalf("expected Next() to increase, got %d then %d", a, b)
	}
	if a == Sentinel || b == Sentinel {
		t.Fatalf("expected Next() to never return the sentinel value")
	}
}
