package index

import "testing"

func TestGetPutDelete(t *testing.T) {
	ix := New()

	ix.Put([]byte("a"), []byte("1"))
	v, ok := ix.Get([]byte("a"))
	if !ok || string(v) != "1" {
		t.Fatalf("Get(a) = %q,%v want 1,true", v, ok)
	}

	ix.Put([]byte("a"), []byte("2"))
	v, ok = ix.Get([]byte("a"))
	if !ok || string(v) != "2" {
		t.Fatalf("overwritten Get(a) = %q,%v want 2,true", v, ok)
	}

	if !ix.Delete([]byte("a")) {
		t.Fatalf("Delete(a) should report present")
	}
	if _, ok := ix.Get([]byte("a")); ok {
		t.Fatalf("deleted key should be absent")
	}
	if ix.Delete([]byte("a")) {
		t.Fatalf("Delete(a) again should report absent")
	}
}

func TestRangeOrderedAndBounded(t *testing.T) {
	ix := New()
	for _, k := range []string{"d", "b", "e", "a", "c"} {
		ix.Put([]byte(k), []byte(k))
	}

	c := ix.Range([]byte("b"))
	var got []string
	for c.Valid() {
		got = append(got, string(c.Key()))
		if string(c.Key()) == "d" {
			break
		}
		c.Next()
	}
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("Range(b..) = %v, want prefix %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Range(b..) = %v, want prefix %v", got, want)
		}
	}
}

func TestRangeFromNilStartsAtFirstKey(t *testing.T) {
	ix := New()
	for _, k := range []string{"z", "x", "y"} {
		ix.Put([]byte(k), []byte(k))
	}

	c := ix.Range(nil)
	if !c.Valid() || string(c.Key()) != "x" {
		t.Fatalf("Range(nil) should start at the first key")
	}
}

func TestRangeValuesMatchKeys(t *testing.T) {
	ix := New()
	ix.Put([]byte("k"), []byte("v"))

	c := ix.Range([]byte("k"))
	if !c.Valid() {
		t.Fatalf("expected a valid cursor")
	}
	if string(c.Value()) != "v" {
		t.Fatalf("Value() = %q, want v", c.Value())
	}
	if c.Next() {
		t.Fatalf("Next() should report exhaustion after the only key")
	}
}
