package main

import (
	"bufio"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobboyms/kvstore/internal/engine"
)

func openTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.db")
	e, err := engine.Open(engine.Options{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

// run feeds lines one at a time through dispatchLine and returns the
// accumulated output, the way cmd/kvstore's REPL loop would.
func run(t *testing.T, e *engine.Engine, lines ...string) string {
	t.Helper()
	var sb strings.Builder
	out := bufio.NewWriter(&sb)
	for _, line := range lines {
		dispatchLine(e, line, out)
	}
	out.Flush()
	return sb.String()
}

func TestScenarioBasic(t *testing.T) {
	e := openTestEngine(t)
	got := run(t, e, "SET a 10", "GET a")
	want := "OK\n10\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestScenarioDeleteSemantics(t *testing.T) {
	e := openTestEngine(t)
	got := run(t, e, "SET a 1", "DEL a", "GET a", "DEL a")
	want := "OK\n1\nnil\n0\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestScenarioTTLExpiry(t *testing.T) {
	e := openTestEngine(t)
	got := run(t, e, "SET t 42", "EXPIRE t 0", "GET t", "TTL t")
	want := "OK\n1\nnil\n-2\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestScenarioTransactionAbortLeavesNoTrace(t *testing.T) {
	e := openTestEngine(t)
	got := run(t, e, "SET a 1", "BEGIN", "SET a 2", "ABORT", "GET a")
	want := "OK\nOK\nOK\nOK\n1\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestScenarioRange(t *testing.T) {
	e := openTestEngine(t)
	got := run(t, e, "MSET a 1 b 2 c 3 d 4 e 5", "RANGE b d")
	want := "OK\nb\nc\nd\nEND\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestScenarioTransactionCommitSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")
	e, err := engine.Open(engine.Options{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	got := run(t, e, "BEGIN", "SET x 1", "SET y 2", "COMMIT")
	if got != "OK\nOK\nOK\nOK\n" {
		t.Fatalf("first run got %q", got)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := engine.Open(engine.Options{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got = run(t, reopened, "MGET x y")
	want := "1\n2\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDispatchErrArity(t *testing.T) {
	e := openTestEngine(t)
	got := run(t, e, "SET a")
	if got != "ERR arity\n" {
		t.Fatalf("got %q, want ERR arity", got)
	}
}

func TestDispatchErrNotInteger(t *testing.T) {
	e := openTestEngine(t)
	got := run(t, e, "EXPIRE a notanumber")
	if got != "ERR notinteger\n" {
		t.Fatalf("got %q, want ERR notinteger", got)
	}
}

func TestDispatchErrUnknown(t *testing.T) {
	e := openTestEngine(t)
	got := run(t, e, "FROBNICATE a")
	if got != "ERR unknown\n" {
		t.Fatalf("got %q, want ERR unknown", got)
	}
}

func TestDispatchErrNested(t *testing.T) {
	e := openTestEngine(t)
	got := run(t, e, "BEGIN", "BEGIN")
	if got != "OK\nERR nested\n" {
		t.Fatalf("got %q, want OK then ERR nested", got)
	}
}

func TestDispatchErrNoTx(t *testing.T) {
	e := openTestEngine(t)
	got := run(t, e, "COMMIT")
	if got != "ERR notx\n" {
		t.Fatalf("got %q, want ERR notx", got)
	}
	got = run(t, e, "ABORT")
	if got != "ERR notx\n" {
		t.Fatalf("got %q, want ERR notx", got)
	}
}

func TestDispatchMSetZeroPairsIsNoop(t *testing.T) {
	e := openTestEngine(t)
	got := run(t, e, "MSET")
	if got != "OK\n" {
		t.Fatalf("MSET with no pairs = %q, want OK", got)
	}
}

func TestDispatchMSetOddArity(t *testing.T) {
	e := openTestEngine(t)
	got := run(t, e, "MSET a 1 b")
	if got != "ERR arity\n" {
		t.Fatalf("got %q, want ERR arity", got)
	}
}
