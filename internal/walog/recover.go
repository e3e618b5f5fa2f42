package walog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/bobboyms/kvstore/internal/kverrors"
	"github.com/bobboyms/kvstore/internal/kvlog"
)

// Recover scans the log at path start-to-end, parsing each line into a
// Record. Per R1, if the scan encounters a torn tail — a final line
// missing its newline terminator, or a final record with too few tokens —
// the file is rewound to the last valid newline boundary before normal
// operation resumes. A malformed record that is NOT at the tail (there is
// valid content after it) is a fatal corruption error: recovery never
// silently drops a durably-committed record. An unrecognized record tag
// is fatal unconditionally, even as the very last line of the file: it
// means the log was written by an incompatible version, not that a write
// was interrupted mid-record, so R1's tail tolerance never applies to it.
//
// The discarded torn tail, if any, is preserved alongside the log as
// "<path>.torn-<uuid>" rather than being dropped unrecoverably, so an
// operator can inspect what an interrupted write left behind.
func Recover(path string) ([]Record, error) {
	log := kvlog.Component("walog")

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("walog: open %s for recovery: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var (
		records      []Record
		validOffset  int64 // byte offset of the last confirmed-good newline boundary
		pendingBad   []byte
		pendingStart int64 = -1
	)

	offset := int64(0)
	for {
		chunk, readErr := r.ReadBytes('\n')

		if len(chunk) == 0 && readErr == io.EOF {
			break
		}

		terminated := len(chunk) > 0 && chunk[len(chunk)-1] == '\n'

		if !terminated {
			// Torn tail: final bytes of the file with no newline.
			if pendingStart < 0 {
				pendingStart = offset
			}
			pendingBad = append(pendingBad, chunk...)
			offset += int64(len(chunk))
			break
		}

		line := string(chunk[:len(chunk)-1])
		rec, parseErr := parseLine(line)

		if parseErr != nil {
			var tagErr *UnrecognizedTagError
			if errors.As(parseErr, &tagErr) {
				return nil, &kverrors.CorruptionError{
					Detail: fmt.Sprintf("%s at offset %d", parseErr, offset),
				}
			}
			if pendingStart >= 0 {
				// An earlier bad line turned out not to be at the tail.
				return nil, &kverrors.CorruptionError{
					Detail: fmt.Sprintf("corrupt record before offset %d: %s", offset, parseErr),
				}
			}
			pendingStart = offset
			pendingBad = chunk
			offset += int64(len(chunk))
			continue
		}

		if pendingStart >= 0 {
			// A previously-flagged bad line had more valid content after it,
			// so it was not a torn tail — fatal.
			return nil, &kverrors.CorruptionError{
				Detail: fmt.Sprintf("corrupt record at offset %d, not at log tail", pendingStart),
			}
		}

		records = append(records, rec)
		offset += int64(len(chunk))
		validOffset = offset

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("walog: read %s: %w", path, readErr)
		}
	}

	if pendingStart < 0 {
		return records, nil
	}

	// Torn tail confirmed: back it up, then truncate the primary log.
	backupPath := fmt.Sprintf("%s.torn-%s", path, uuid.NewString())
	if err := os.WriteFile(backupPath, pendingBad, 0644); err != nil {
		return nil, fmt.Errorf("walog: backup torn tail: %w", err)
	}

	if err := truncate(path, validOffset); err != nil {
		return nil, fmt.Errorf("walog: truncate torn tail: %w", err)
	}

	log.Info().
		Str("path", path).
		Int("discarded_bytes", len(pendingBad)).
		Str("backup", backupPath).
		Msg("truncated torn log tail")

	return records, nil
}

func truncate(path string, size int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Truncate(size)
}
