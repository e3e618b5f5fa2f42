package main

import (
	"bufio"
	"strconv"

	"github.com/bobboyms/kvstore/internal/command"
	"github.com/bobboyms/kvstore/internal/engine"
	"github.com/bobboyms/kvstore/internal/kverrors"
)

// dispatchLine parses one input line and writes its response (always
// newline-terminated) to out. It never returns an error: every failure
// mode is rendered as an "ERR <tag>" response per spec.md §6.
func dispatchLine(e *engine.Engine, line string, out *bufio.Writer) {
	cmd := command.Parse(line)
	if cmd.Name == "" {
		return
	}

	switch cmd.Name {
	case "SET":
		runSet(e, cmd.Args, out)
	case "GET":
		runGet(e, cmd.Args, out)
	case "DEL":
		runDel(e, cmd.Args, out)
	case "EXPIRE":
		runExpire(e, cmd.Args, out)
	case "TTL":
		runTTL(e, cmd.Args, out)
	case "PERSIST":
		runPersist(e, cmd.Args, out)
	case "MSET":
		runMSet(e, cmd.Args, out)
	case "MGET":
		runMGet(e, cmd.Args, out)
	case "RANGE":
		runRange(e, cmd.Args, out)
	case "BEGIN":
		runBegin(e, out)
	case "COMMIT":
		runCommit(e, out)
	case "ABORT":
		runAbort(e, out)
	default:
		writeErr(out, &kverrors.UnknownCommandError{Command: cmd.Name})
	}
}

func runSet(e *engine.Engine, args []string, out *bufio.Writer) {
	if len(args) != 2 {
		writeErr(out, &kverrors.WrongArityError{Command: "SET"})
		return
	}
	if err := e.Set([]byte(args[0]), []byte(args[1])); err != nil {
		writeErr(out, err)
		return
	}
	writeLine(out, "OK")
}

func runGet(e *engine.Engine, args []string, out *bufio.Writer) {
	if len(args) != 1 {
		writeErr(out, &kverrors.WrongArityError{Command: "GET"})
		return
	}
	v, ok, err := e.Get([]byte(args[0]))
	if err != nil {
		writeErr(out, err)
		return
	}
	if !ok {
		writeLine(out, "nil")
		return
	}
	writeLine(out, string(v))
}

func runDel(e *engine.Engine, args []string, out *bufio.Writer) {
	if len(args) != 1 {
		writeErr(out, &kverrors.WrongArityError{Command: "DEL"})
		return
	}
	n, err := e.Del([]byte(args[0]))
	if err != nil {
		writeErr(out, err)
		return
	}
	writeLine(out, strconv.Itoa(n))
}

func runExpire(e *engine.Engine, args []string, out *bufio.Writer) {
	if len(args) != 2 {
		writeErr(out, &kverrors.WrongArityError{Command: "EXPIRE"})
		return
	}
	ms, parseErr := strconv.ParseInt(args[1], 10, 64)
	if parseErr != nil {
		writeErr(out, &kverrors.NotIntegerError{Token: args[1]})
		return
	}
	n, err := e.Expire([]byte(args[0]), ms)
	if err != nil {
		writeErr(out, err)
		return
	}
	writeLine(out, strconv.Itoa(n))
}

func runTTL(e *engine.Engine, args []string, out *bufio.Writer) {
	if len(args) != 1 {
		writeErr(out, &kverrors.WrongArityError{Command: "TTL"})
		return
	}
	remaining, err := e.TTL([]byte(args[0]))
	if err != nil {
		writeErr(out, err)
		return
	}
	writeLine(out, strconv.FormatInt(remaining, 10))
}

func runPersist(e *engine.Engine, args []string, out *bufio.Writer) {
	if len(args) != 1 {
		writeErr(out, &kverrors.WrongArityError{Command: "PERSIST"})
		return
	}
	n, err := e.Persist([]byte(args[0]))
	if err != nil {
		writeErr(out, err)
		return
	}
	writeLine(out, strconv.Itoa(n))
}

func runMSet(e *engine.Engine, args []string, out *bufio.Writer) {
	// spec.md §6 names only an odd token count as MSET's error condition;
	// zero args is a valid, no-op MSET.
	if len(args)%2 != 0 {
		writeErr(out, &kverrors.WrongArityError{Command: "MSET"})
		return
	}
	pairs := make([][2][]byte, len(args)/2)
	for i := range pairs {
		pairs[i] = [2][]byte{[]byte(args[2*i]), []byte(args[2*i+1])}
	}
	if err := e.MSet(pairs); err != nil {
		writeErr(out, err)
		return
	}
	writeLine(out, "OK")
}

func runMGet(e *engine.Engine, args []string, out *bufio.Writer) {
	keys := make([][]byte, len(args))
	for i, a := range args {
		keys[i] = []byte(a)
	}
	values, found, err := e.MGet(keys)
	if err != nil {
		writeErr(out, err)
		return
	}
	for i := range keys {
		if !found[i] {
			writeLine(out, "nil")
			continue
		}
		writeLine(out, string(values[i]))
	}
}

func runRange(e *engine.Engine, args []string, out *bufio.Writer) {
	if len(args) != 2 {
		writeErr(out, &kverrors.WrongArityError{Command: "RANGE"})
		return
	}
	var lo, hi []byte
	if args[0] != "-" {
		lo = []byte(args[0])
	}
	if args[1] != "-" {
		hi = []byte(args[1])
	}

	keys, err := e.Range(lo, hi)
	if err != nil {
		writeErr(out, err)
		return
	}
	for _, k := range keys {
		writeLine(out, string(k))
	}
	writeLine(out, "END")
}

func runBegin(e *engine.Engine, out *bufio.Writer) {
	if err := e.Begin(); err != nil {
		writeErr(out, err)
		return
	}
	writeLine(out, "OK")
}

func runCommit(e *engine.Engine, out *bufio.Writer) {
	if err := e.Commit(); err != nil {
		writeErr(out, err)
		return
	}
	writeLine(out, "OK")
}

func runAbort(e *engine.Engine, out *bufio.Writer) {
	if err := e.Abort(); err != nil {
		writeErr(out, err)
		return
	}
	writeLine(out, "OK")
}

func writeLine(out *bufio.Writer, s string) {
	out.WriteString(s)
	out.WriteByte('\n')
}

// writeErr renders err as the "ERR <tag>" response spec.md §6 mandates.
func writeErr(out *bufio.Writer, err error) {
	writeLine(out, "ERR "+errTag(err))
}

func errTag(err error) string {
	switch err.(type) {
	case *kverrors.WrongArityError:
		return "arity"
	case *kverrors.NotIntegerError:
		return "notinteger"
	case *kverrors.NestedTransactionError:
		return "nested"
	case *kverrors.NoTransactionError:
		return "notx"
	case *kverrors.UnknownCommandError:
		return "unknown"
	case *kverrors.IOError:
		return "io"
	case *kverrors.CorruptionError:
		return "corrupt"
	default:
		return "internal"
	}
}
