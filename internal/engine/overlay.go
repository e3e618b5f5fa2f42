package engine

import (
	"sort"

	"github.com/bobboyms/kvstore/internal/kverrors"
	"github.com/bobboyms/kvstore/internal/walog"
)

// shadowEntry is one key's pending change inside an open transaction.
// valueSet is authoritative for the key's presence/value whenever a SET
// or DEL touched it this transaction; ttlSet is authoritative for its TTL
// whenever SET, DEL, EXPIRE, or PERSIST touched it. Every write primitive
// sets both, except a bare EXPIRE/PERSIST on a key whose value itself was
// never written this transaction (valueSet stays false: the value still
// lives in the base Index, only the TTL is shadowed).
type shadowEntry struct {
	valueSet  bool
	tombstone bool
	value     []byte

	ttlSet    bool
	ttlActive bool
	expiresAt int64
}

// overlay is the transaction journal plus its derived shadow map,
// grounded on the teacher's WriteTransaction (pkg/storage/transaction_write.go),
// simplified to single-client, buffered-then-atomic semantics (spec.md §4.5).
type overlay struct {
	journal []walog.Record
	shadow  map[string]*shadowEntry
}

func newOverlay() *overlay {
	return &overlay{shadow: make(map[string]*shadowEntry)}
}

// entry returns key's shadow entry, creating an empty one if this is the
// first write this transaction has made to key.
func (o *overlay) entry(key []byte) *shadowEntry {
	k := string(key)
	se, ok := o.shadow[k]
	if !ok {
		se = &shadowEntry{}
		o.shadow[k] = se
	}
	return se
}

// Begin opens a transaction. Nested BEGIN is rejected (spec.md §4.5,
// single-client model: one transaction at a time).
func (e *Engine) Begin() error {
	if e.tx != nil {
		return &kverrors.NestedTransactionError{}
	}
	e.tx = newOverlay()
	return nil
}

// Commit appends the transaction's journal as one batch (one fsync), then
// applies every journal record to the Index/TTL Table in order — the
// same per-record rule recovery replay uses. An empty transaction commits
// as a no-op without touching the log.
func (e *Engine) Commit() error {
	if e.tx == nil {
		return &kverrors.NoTransactionError{}
	}
	tx := e.tx

	if len(tx.journal) > 0 {
		if err := e.log.AppendBatch(tx.journal); err != nil {
			return &kverrors.IOError{Err: err}
		}
		e.writeSeq++
		for _, rec := range tx.journal {
			applyRecord(e.index, e.ttl, rec)
		}
	}

	e.tx = nil
	return nil
}

// Abort discards the transaction's journal and shadow map; nothing it
// staged ever reaches the log or the base Index/TTL Table.
func (e *Engine) Abort() error {
	if e.tx == nil {
		return &kverrors.NoTransactionError{}
	}
	e.tx = nil
	return nil
}

func (e *Engine) txSet(key, value []byte) {
	e.tx.journal = append(e.tx.journal, walog.NewSet(key, value))
	se := e.tx.entry(key)
	se.valueSet = true
	se.tombstone = false
	se.value = value
	se.ttlSet = true
	se.ttlActive = false
}

func (e *Engine) txDel(key []byte) (int, error) {
	now := e.clock.NowMillis()
	r, err := e.lookup(key, now)
	if err != nil {
		return 0, err
	}
	if !r.present {
		return 0, nil
	}

	e.tx.journal = append(e.tx.journal, walog.NewDel(key))
	se := e.tx.entry(key)
	se.valueSet = true
	se.tombstone = true
	se.value = nil
	se.ttlSet = true
	se.ttlActive = false
	return 1, nil
}

func (e *Engine) txExpire(key []byte, relMs int64) (int, error) {
	now := e.clock.NowMillis()
	r, err := e.lookup(key, now)
	if err != nil {
		return 0, err
	}
	if !r.present {
		return 0, nil
	}

	expiresAt := now + relMs
	e.tx.journal = append(e.tx.journal, walog.NewExpireAt(key, expiresAt))
	se := e.tx.entry(key)
	se.ttlSet = true
	se.ttlActive = true
	se.expiresAt = expiresAt
	return 1, nil
}

func (e *Engine) txPersist(key []byte) (int, error) {
	now := e.clock.NowMillis()
	r, err := e.lookup(key, now)
	if err != nil {
		return 0, err
	}
	if !r.present || !r.ttlActive {
		return 0, nil
	}

	e.tx.journal = append(e.tx.journal, walog.NewPersist(key))
	se := e.tx.entry(key)
	se.ttlSet = true
	se.ttlActive = false
	return 1, nil
}

// mergeRangeWithOverlay merge-joins the base Range result with the
// transaction's shadow map: shadowed SETs of new or existing keys appear
// in place, tombstoned or overlay-expired keys are dropped, and a key
// present on both sides is emitted once.
func (e *Engine) mergeRangeWithOverlay(base [][]byte, lo, hi []byte, now int64) [][]byte {
	shadow := e.tx.shadow

	withinBounds := func(k string) bool {
		if lo != nil && k < string(lo) {
			return false
		}
		if hi != nil && k > string(hi) {
			return false
		}
		return true
	}

	visible := func(k string) bool {
		se := shadow[k]
		if !se.valueSet {
			return false
		}
		if se.tombstone {
			return false
		}
		if se.ttlSet && se.ttlActive && se.expiresAt <= now {
			return false
		}
		return true
	}

	shadowKeys := make([]string, 0, len(shadow))
	for k := range shadow {
		if withinBounds(k) && visible(k) {
			shadowKeys = append(shadowKeys, k)
		}
	}
	sort.Strings(shadowKeys)

	result := make([][]byte, 0, len(base)+len(shadowKeys))
	i, j := 0, 0
	for i < len(base) || j < len(shadowKeys) {
		bkValid := i < len(base)
		skValid := j < len(shadowKeys)

		var bk, sk string
		if bkValid {
			bk = string(base[i])
		}
		if skValid {
			sk = shadowKeys[j]
		}

		switch {
		case bkValid && (!skValid || bk < sk):
			se, shadowed := shadow[bk]
			if !shadowed || (!se.valueSet && !(se.ttlSet && se.ttlActive && se.expiresAt <= now)) {
				result = append(result, base[i])
			}
			// A shadow entry that only changed bk's TTL keeps the base key
			// unless that TTL has lapsed. Any other shadow entry for bk that
			// isn't in shadowKeys was excluded by visible() (tombstoned, or
			// an overlay TTL that has now lapsed); the key is dropped
			// entirely rather than falling back to base.
			i++
		case skValid && (!bkValid || sk < bk):
			result = append(result, []byte(sk))
			j++
		default:
			result = append(result, []byte(sk))
			i++
			j++
		}
	}
	return result
}
