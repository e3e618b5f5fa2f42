package ttl

import "testing"

func TestCheckNoTTL(t *testing.T) {
	table := New()
	status, _ := table.Check([]byte("a"), 100)
	if status != NoTTL {
		t.Fatalf("Check on untouched key = %v, want NoTTL", status)
	}
}

func TestSetThenAliveThenExpired(t *testing.T) {
	table := New()
	table.Set([]byte("a"), 1000)

	status, remaining := table.Check([]byte("a"), 500)
	if status != Alive || remaining != 500 {
		t.Fatalf("Check at 500 = %v,%d want Alive,500", status, remaining)
	}

	status, _ = table.Check([]byte("a"), 1000)
	if status != Expired {
		t.Fatalf("Check at exact expiry = %v, want Expired", status)
	}

	status, _ = table.Check([]byte("a"), 1500)
	if status != Expired {
		t.Fatalf("Check past expiry = %v, want Expired", status)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	table := New()
	table.Set([]byte("a"), 1000)
	table.Clear([]byte("a"))
	table.Clear([]byte("a"))

	status, _ := table.Check([]byte("a"), 0)
	if status != NoTTL {
		t.Fatalf("Check after Clear = %v, want NoTTL", status)
	}
	if table.Has([]byte("a")) {
		t.Fatalf("Has after Clear should be false")
	}
}

func TestSetOverwritesPriorTTL(t *testing.T) {
	table := New()
	table.Set([]byte("a"), 1000)
	table.Set([]byte("a"), 2000)

	status, remaining := table.Check([]byte("a"), 1500)
	if status != Alive || remaining != 500 {
		t.Fatalf("Check after re-Set = %v,%d want Alive,500", status, remaining)
	}
}

func TestManualClockAdvance(t *testing.T) {
	clock := NewManualClock(100)
	if clock.NowMillis() != 100 {
		t.Fatalf("initial NowMillis = %d, want 100", clock.NowMillis())
	}
	clock.Advance(50)
	if clock.NowMillis() != 150 {
		t.Fatalf("after Advance(50) = %d, want 150", clock.NowMillis())
	}
	clock.Set(9)
	if clock.NowMillis() != 9 {
		t.Fatalf("after Set(9) = %d, want 9", clock.NowMillis())
	}
}
