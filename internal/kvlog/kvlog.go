// Package kvlog is the engine's structured diagnostics logger: engine
// open/recovery/close and torn-tail truncation events, written to stderr
// and kept entirely separate from the command/response protocol on
// stdout. Modeled on cuemby-warren/pkg/log, trimmed to the single embedded
// process this engine runs in (no node/service/task correlation fields).
package kvlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the package-level logger used throughout internal/engine and
// internal/walog. Init may be called once at process start to redirect it
// (tests redirect to an io.Discard or buffer); the zero value logs to
// stderr at info level.
var Logger = zerolog.New(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: time.RFC3339,
}).With().Timestamp().Logger()

// Init reconfigures the package-level logger's output.
func Init(out io.Writer) {
	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
