// Package ttl implements spec.md §4.3's TTL Table: an in-memory map from
// key to absolute expiration time, checked lazily by the engine on every
// access. Reconstructed on recovery from EXPIREAT/PERSIST/DEL/SET records.
package ttl

// Clock supplies "now" in epoch milliseconds. Tests inject a ManualClock
// (a monotonic counter) to drive expiry deterministically, per spec.md
// DESIGN NOTES §9: "now_ms is a capability passed to the Engine."
type Clock interface {
	NowMillis() int64
}

// Status is the result of checking a key's TTL as of now.
type Status int

const (
	NoTTL Status = iota
	Alive
	Expired
)

// Table maps key -> absolute expiration time in epoch milliseconds.
type Table struct {
	expiresAt map[string]int64
}

func New() *Table {
	return &Table{expiresAt: make(map[string]int64)}
}

// Set records an absolute expiration time for key, overwriting any prior TTL.
func (t *Table) Set(key []byte, expiresAtMs int64) {
	t.expiresAt[string(key)] = expiresAtMs
}

// Clear removes any TTL entry for key. Idempotent.
func (t *Table) Clear(key []byte) {
	delete(t.expiresAt, string(key))
}

// Has reports whether key carries a TTL entry, regardless of whether it
// has already elapsed.
func (t *Table) Has(key []byte) bool {
	_, ok := t.expiresAt[string(key)]
	return ok
}

// Check reports key's TTL status as of nowMs, and the remaining ms when Alive.
func (t *Table) Check(key []byte, nowMs int64) (Status, int64) {
	expiresAt, ok := t.expiresAt[string(key)]
	if !ok {
		return NoTTL, 0
	}
	if expiresAt <= nowMs {
		return Expired, 0
	}
	return Alive, expiresAt - nowMs
}
