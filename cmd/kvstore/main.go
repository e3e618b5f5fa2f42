// Command kvstore is the interactive shell described in spec.md §6: it
// reads one command per line from standard input, drives a single Engine,
// and writes exact-string responses to standard output. Log output is kept
// on stderr via internal/kvlog so it never corrupts the wire responses.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/bobboyms/kvstore/internal/engine"
	"github.com/bobboyms/kvstore/internal/kvlog"
)

func main() {
	path := "data.db"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	log := kvlog.Component("kvstore")

	e, err := engine.Open(engine.Options{Path: path})
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to open engine")
		fmt.Fprintf(os.Stderr, "kvstore: %v\n", err)
		os.Exit(1)
	}
	defer e.Close()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		dispatchLine(e, scanner.Text(), out)
		out.Flush()
	}

	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("input scan failed")
		fmt.Fprintf(os.Stderr, "kvstore: %v\n", err)
		os.Exit(1)
	}

	// EOF with an open transaction behaves as ABORT (spec.md §5).
	if e.InTransaction() {
		_ = e.Abort()
	}
}
