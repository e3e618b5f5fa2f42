package walog

import (
	"path/filepath"
	"testing"
)

func TestWriterAppendThenRecover(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")

	w, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := w.Append(NewSet([]byte("a"), []byte("1"))); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Append(NewDel([]byte("b"))); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	records, err := Recover(path)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Recover returned %d records, want 2", len(records))
	}
	if records[0].Type != Set || string(records[0].Key) != "a" || string(records[0].Value) != "1" {
		t.Fatalf("record 0 = %+v", records[0])
	}
	if records[1].Type != Del || string(records[1].Key) != "b" {
		t.Fatalf("record 1 = %+v", records[1])
	}
}

func TestAppendBatchThenRecover(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")

	w, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	recs := []Record{
		NewSet([]byte("a"), []byte("1")),
		NewSet([]byte("b"), []byte("2")),
		NewSet([]byte("c"), []byte("3")),
	}
	if err := w.AppendBatch(recs); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}

	got, err := Recover(path)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recover returned %d records, want 3", len(got))
	}
}

func TestAppendBatchEmptyIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")
	w, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	if err := w.AppendBatch(nil); err != nil {
		t.Fatalf("AppendBatch(nil): %v", err)
	}
}

func TestRecoverOfMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.db")
	records, err := Recover(path)
	if err != nil {
		t.Fatalf("Recover of missing file: %v", err)
	}
	if records != nil {
		t.Fatalf("Recover of missing file = %v, want nil", records)
	}
}
