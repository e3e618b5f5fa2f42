package walog

import (
	"bufio"
	"fmt"
	"os"
)

// Writer is the append-only log writer. Every Append/AppendBatch call
// flushes its bufio buffer and fsyncs the file before returning, which is
// the durability contract spec.md §4.1 requires (I4, I5) — there is no
// weaker mode.
type Writer struct {
	path   string
	file   *os.File
	buf    *bufio.Writer
	closed bool
}

// Open appends to (creating if absent) the log file at path.
func Open(path string, opts Options) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("walog: open %s: %w", path, err)
	}

	return &Writer{
		path: path,
		file: f,
		buf:  bufio.NewWriterSize(f, opts.BufferSize),
	}, nil
}

func (w *Writer) Path() string {
	return w.path
}

// Append writes one record and forces it to durable storage before returning.
func (w *Writer) Append(rec Record) error {
	if _, err := w.buf.WriteString(rec.Encode()); err != nil {
		return fmt.Errorf("walog: write: %w", err)
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("walog: write: %w", err)
	}
	return w.sync()
}

// AppendBatch writes every record contiguously and forces exactly once at
// the end, so the batch is atomic with respect to a crash: either every
// line reaches durable storage, or the torn tail left by an interrupted
// batch is discarded on the next open (see Recover).
func (w *Writer) AppendBatch(recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	for _, rec := range recs {
		if _, err := w.buf.WriteString(rec.Encode()); err != nil {
			return fmt.Errorf("walog: write: %w", err)
		}
		if err := w.buf.WriteByte('\n'); err != nil {
			return fmt.Errorf("walog: write: %w", err)
		}
	}
	return w.sync()
}

func (w *Writer) sync() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("walog: flush: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("walog: fsync: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.sync(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
