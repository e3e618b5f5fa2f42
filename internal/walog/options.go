package walog

// Options configures the Log Writer. Modeled on the teacher's
// wal.Options/wal.DefaultOptions() shape, trimmed to what spec.md's
// durability contract actually allows: every append (and every batch)
// forces to durable storage before returning, so there is no weaker
// SyncPolicy to choose between.
type Options struct {
	// BufferSize is the bufio buffer size in front of the log file.
	BufferSize int
}

func DefaultOptions() Options {
	return Options{
		BufferSize: 64 * 1024,
	}
}
