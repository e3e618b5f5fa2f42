// Package engine is the orchestrator described in spec.md §4.4: it wires
// the Log, the Index, and the TTL Table together, enforces write-ahead
// durability, resolves lazy expiry, and (together with overlay.go)
// composes a single-client transaction overlay on top of all reads and
// writes. This is the core subject of the specification.
package engine

import (
	"bytes"
	"fmt"

	"github.com/bobboyms/kvstore/internal/index"
	"github.com/bobboyms/kvstore/internal/kverrors"
	"github.com/bobboyms/kvstore/internal/kvlog"
	"github.com/bobboyms/kvstore/internal/ttl"
	"github.com/bobboyms/kvstore/internal/walog"
)

// Options configures an Engine. Modeled on the teacher's
// wal.Options/wal.DefaultOptions() pairing.
type Options struct {
	// Path is the log file path. Defaults to "data.db" per spec.md §6.
	Path string

	// BufferSize is the bufio buffer size fronting the log file.
	BufferSize int

	// Clock supplies "now" for TTL arithmetic. Tests inject a ManualClock.
	Clock ttl.Clock
}

func DefaultOptions() Options {
	return Options{
		Path:       "data.db",
		BufferSize: walog.DefaultOptions().BufferSize,
		Clock:      ttl.SystemClock{},
	}
}

// Engine is the storage engine: Index + TTL Table + Log, plus an optional
// active transaction overlay.
type Engine struct {
	opts  Options
	log   *walog.Writer
	index *index.Index
	ttl   *ttl.Table
	clock ttl.Clock
	tx    *overlay

	recovered int    // diagnostic only: records replayed at open
	writeSeq  uint64 // diagnostic only: counts durable append operations; does not gate visibility
}

// WriteSeq returns the number of durable append operations (Set, Del,
// Expire, Persist, MSet, Commit-with-writes) this Engine has performed
// since open; the synthetic DEL records appended by lazy expiry are not
// counted. It is a diagnostic counter only — spec.md's single-client,
// single-threaded model has no concurrent readers for it to gate.
func (e *Engine) WriteSeq() uint64 {
	return e.writeSeq
}

// Open replays the log at opts.Path (if any) to rebuild the Index and TTL
// Table, then opens the log for further appends. This must complete
// before any concurrent command is processed (spec.md §5: exclusive
// access during startup).
func Open(opts Options) (*Engine, error) {
	if opts.Path == "" {
		opts.Path = "data.db"
	}
	if opts.BufferSize == 0 {
		opts.BufferSize = walog.DefaultOptions().BufferSize
	}
	if opts.Clock == nil {
		opts.Clock = ttl.SystemClock{}
	}

	log := kvlog.Component("engine")

	records, err := walog.Recover(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("engine: recovery failed: %w", err)
	}

	ix := index.New()
	tt := ttl.New()
	for _, rec := range records {
		applyRecord(ix, tt, rec)
	}

	writer, err := walog.Open(opts.Path, walog.Options{BufferSize: opts.BufferSize})
	if err != nil {
		return nil, fmt.Errorf("engine: open log: %w", err)
	}

	log.Info().
		Str("path", opts.Path).
		Int("replayed_records", len(records)).
		Msg("engine opened")

	return &Engine{
		opts:      opts,
		log:       writer,
		index:     ix,
		ttl:       tt,
		clock:     opts.Clock,
		recovered: len(records),
	}, nil
}

// Close flushes and closes the log. Any open transaction is discarded
// without touching the log, equivalent to an ABORT (spec.md §5: a client
// disconnect with a transaction open behaves as ABORT).
func (e *Engine) Close() error {
	e.tx = nil
	kvlog.Component("engine").Info().Str("path", e.opts.Path).Msg("engine closed")
	return e.log.Close()
}

// InTransaction reports whether a transaction is currently open.
func (e *Engine) InTransaction() bool {
	return e.tx != nil
}

// applyRecord applies one log record directly to the Index/TTL Table,
// without re-logging. Used both by recovery replay and by transaction
// commit (spec.md §4.4's recovery policy and §4.5's commit step 2 apply
// the identical per-record rule).
func applyRecord(ix *index.Index, tt *ttl.Table, rec walog.Record) {
	switch rec.Type {
	case walog.Set:
		ix.Put(rec.Key, rec.Value)
		tt.Clear(rec.Key)
	case walog.Del:
		ix.Delete(rec.Key)
		tt.Clear(rec.Key)
	case walog.ExpireAt:
		if _, ok := ix.Get(rec.Key); ok {
			tt.Set(rec.Key, rec.ExpiresAt)
		}
	case walog.Persist:
		tt.Clear(rec.Key)
	}
}

// materializeExpiry checks key's TTL against now and, if elapsed, appends
// a synthetic DEL record and removes key from the Index and TTL Table —
// the lazy expiration rule of spec.md §4.4/I3. It never consults the
// transaction overlay: it only ever touches durable base state.
func (e *Engine) materializeExpiry(key []byte) error {
	now := e.clock.NowMillis()
	status, _ := e.ttl.Check(key, now)
	if status != ttl.Expired {
		return nil
	}
	if err := e.log.Append(walog.NewDel(key)); err != nil {
		return &kverrors.IOError{Err: err}
	}
	e.index.Delete(key)
	e.ttl.Clear(key)
	return nil
}

// resolved is the logical state of a key as seen by a particular read,
// after reconciling the transaction overlay (if any) with base state.
type resolved struct {
	present     bool
	value       []byte
	ttlActive   bool
	remainingMs int64
}

// lookup resolves key's current state, consulting the overlay first when
// a transaction is active (spec.md §4.5), falling back to base Index/TTL
// state otherwise.
func (e *Engine) lookup(key []byte, now int64) (resolved, error) {
	if e.tx != nil {
		if se, ok := e.tx.shadow[string(key)]; ok {
			return e.lookupShadowed(se, key, now)
		}
	}
	return e.lookupBase(key, now)
}

func (e *Engine) lookupBase(key []byte, now int64) (resolved, error) {
	if err := e.materializeExpiry(key); err != nil {
		return resolved{}, err
	}
	v, ok := e.index.Get(key)
	if !ok {
		return resolved{}, nil
	}
	status, remaining := e.ttl.Check(key, now)
	return resolved{present: true, value: v, ttlActive: status == ttl.Alive, remainingMs: remaining}, nil
}

func (e *Engine) lookupShadowed(se *shadowEntry, key []byte, now int64) (resolved, error) {
	var r resolved

	if se.valueSet {
		if se.tombstone {
			return resolved{}, nil
		}
		r = resolved{present: true, value: se.value}
	} else {
		if err := e.materializeExpiry(key); err != nil {
			return resolved{}, err
		}
		v, ok := e.index.Get(key)
		if !ok {
			return resolved{}, nil
		}
		status, remaining := e.ttl.Check(key, now)
		r = resolved{present: true, value: v, ttlActive: status == ttl.Alive, remainingMs: remaining}
	}

	if se.ttlSet {
		r.ttlActive = se.ttlActive
		if se.ttlActive {
			r.remainingMs = se.expiresAt - now
		} else {
			r.remainingMs = 0
		}
	}

	if r.ttlActive && r.remainingMs <= 0 {
		return resolved{}, nil
	}

	return r, nil
}

// Get returns key's current value, or (nil, false) if absent or expired.
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	r, err := e.lookup(key, e.clock.NowMillis())
	if err != nil {
		return nil, false, err
	}
	return r.value, r.present, nil
}

// Set stores key=value, logs the write first, and clears any prior TTL
// (spec.md §4.4 rationale: "a fresh SET means this is a new binding").
func (e *Engine) Set(key, value []byte) error {
	if e.tx != nil {
		e.txSet(key, value)
		return nil
	}

	if err := e.log.Append(walog.NewSet(key, value)); err != nil {
		return &kverrors.IOError{Err: err}
	}
	e.writeSeq++
	e.index.Put(key, value)
	e.ttl.Clear(key)
	return nil
}

// Del removes key, returning 1 if it was present, 0 otherwise.
func (e *Engine) Del(key []byte) (int, error) {
	if e.tx != nil {
		return e.txDel(key)
	}

	r, err := e.lookupBase(key, e.clock.NowMillis())
	if err != nil {
		return 0, err
	}
	if !r.present {
		return 0, nil
	}

	if err := e.log.Append(walog.NewDel(key)); err != nil {
		return 0, &kverrors.IOError{Err: err}
	}
	e.writeSeq++
	e.index.Delete(key)
	e.ttl.Clear(key)
	return 1, nil
}

// Expire sets key's TTL to now+relMs, returning 1 if applied, 0 if key is
// absent or already expired.
func (e *Engine) Expire(key []byte, relMs int64) (int, error) {
	if e.tx != nil {
		return e.txExpire(key, relMs)
	}

	now := e.clock.NowMillis()
	r, err := e.lookupBase(key, now)
	if err != nil {
		return 0, err
	}
	if !r.present {
		return 0, nil
	}

	expiresAt := now + relMs
	if err := e.log.Append(walog.NewExpireAt(key, expiresAt)); err != nil {
		return 0, &kverrors.IOError{Err: err}
	}
	e.writeSeq++
	e.ttl.Set(key, expiresAt)
	return 1, nil
}

// TTL returns the remaining ms for key, -1 if no TTL, or -2 if key is
// absent or expired.
func (e *Engine) TTL(key []byte) (int64, error) {
	r, err := e.lookup(key, e.clock.NowMillis())
	if err != nil {
		return 0, err
	}
	if !r.present {
		return -2, nil
	}
	if !r.ttlActive {
		return -1, nil
	}
	return r.remainingMs, nil
}

// Persist clears key's TTL, returning 1 if a TTL was removed, 0 otherwise.
func (e *Engine) Persist(key []byte) (int, error) {
	if e.tx != nil {
		return e.txPersist(key)
	}

	now := e.clock.NowMillis()
	r, err := e.lookupBase(key, now)
	if err != nil {
		return 0, err
	}
	if !r.present || !r.ttlActive {
		return 0, nil
	}

	if err := e.log.Append(walog.NewPersist(key)); err != nil {
		return 0, &kverrors.IOError{Err: err}
	}
	e.writeSeq++
	e.ttl.Clear(key)
	return 1, nil
}

// MSet applies a sequence of SETs as a single batch: one append, one
// fsync, then the in-memory updates in the order given.
func (e *Engine) MSet(pairs [][2][]byte) error {
	if e.tx != nil {
		for _, p := range pairs {
			e.txSet(p[0], p[1])
		}
		return nil
	}

	recs := make([]walog.Record, len(pairs))
	for i, p := range pairs {
		recs[i] = walog.NewSet(p[0], p[1])
	}
	if err := e.log.AppendBatch(recs); err != nil {
		return &kverrors.IOError{Err: err}
	}
	if len(pairs) > 0 {
		e.writeSeq++
	}
	for _, p := range pairs {
		e.index.Put(p[0], p[1])
		e.ttl.Clear(p[0])
	}
	return nil
}

// MGet returns, for each key in order, its value and whether it was found.
func (e *Engine) MGet(keys [][]byte) ([][]byte, []bool, error) {
	values := make([][]byte, len(keys))
	found := make([]bool, len(keys))
	now := e.clock.NowMillis()

	for i, k := range keys {
		r, err := e.lookup(k, now)
		if err != nil {
			return nil, nil, err
		}
		values[i] = r.value
		found[i] = r.present
	}
	return values, found, nil
}

// Range returns the live keys in [lo, hi] (either bound may be nil for
// open-ended) in ascending order, merging the transaction overlay in if
// one is active (spec.md §4.4 Range semantics, §4.5 merge-join).
func (e *Engine) Range(lo, hi []byte) ([][]byte, error) {
	base, err := e.collectBaseRange(lo, hi)
	if err != nil {
		return nil, err
	}
	if e.tx == nil {
		return base, nil
	}
	return e.mergeRangeWithOverlay(base, lo, hi, e.clock.NowMillis()), nil
}

// collectBaseRange walks the base Index in key order, materializing any
// expired key it encounters, and returns the remaining live keys within
// bounds. This is a read-then-materialize pass rather than a single
// interleaved walk, so that expiry's Index mutation never disturbs the
// B+ tree leaf chain the cursor is actively traversing.
func (e *Engine) collectBaseRange(lo, hi []byte) ([][]byte, error) {
	now := e.clock.NowMillis()

	c := e.index.Range(lo)
	var candidates [][]byte
	for c.Valid() {
		k := c.Key()
		if hi != nil && bytes.Compare(k, hi) > 0 {
			break
		}
		candidates = append(candidates, append([]byte(nil), k...))
		c.Next()
	}

	live := candidates[:0]
	for _, k := range candidates {
		status, _ := e.ttl.Check(k, now)
		if status == ttl.Expired {
			if err := e.log.Append(walog.NewDel(k)); err != nil {
				return nil, &kverrors.IOError{Err: err}
			}
			e.index.Delete(k)
			e.ttl.Clear(k)
			continue
		}
		live = append(live, k)
	}
	return live, nil
}
