package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// JSONL is a Store backed by an append-only JSONL file. The file is synced
// after every Append so a killed batch keeps every result it reported.
type JSONL struct {
	file *os.File
	path string
	mu   sync.Mutex
	idx  *fileIndex
	pos  int64 // current write position in the file
}

// Open creates or reopens the JSONL log at path, creating parent
// directories as needed. Existing records are indexed; malformed lines are
// skipped with a warning.
func Open(path string) (*JSONL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("store: mkdir %q: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	j := &JSONL{file: f, path: path, idx: newFileIndex()}
	if err := j.reindex(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return j, nil
}

// reindex scans the file from the start and leaves pos at its end. A final
// line without a newline is treated as a torn write and overwritten.
func (j *JSONL) reindex() error {
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("store: seek: %w", err)
	}
	r := bufio.NewReader(j.file)
	var offset int64
	for {
		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("store: read %q: %w", j.path, err)
		}
		n := int64(len(line))
		if rec, ok := decodeLine(line, j.path); ok {
			j.idx.onAppend(rec, offset, n)
		}
		offset += n
	}
	if _, err := j.file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("store: seek: %w", err)
	}
	if err := j.file.Truncate(offset); err != nil {
		return fmt.Errorf("store: truncate: %w", err)
	}
	j.pos = offset
	return nil
}

func decodeLine(line []byte, path string) (Record, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("store: skipping malformed line")
		return Record{}, false
	}
	return rec, true
}

// Path is the file backing the log.
func (j *JSONL) Path() string { return j.path }

// Append serializes rec as a JSON line, writes it to the file, and syncs.
// It is safe to call from multiple goroutines.
func (j *JSONL) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	lineOffset := j.pos
	if _, err := j.file.Write(data); err != nil {
		return fmt.Errorf("store: write: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("store: sync: %w", err)
	}
	lineLen := int64(len(data))
	j.pos += lineLen
	j.idx.onAppend(rec, lineOffset, lineLen)
	return nil
}

// Close closes the underlying file.
func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Len reports how many records the log holds.
func (j *JSONL) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.idx.ranges)
}

// Record reads the n-th record (zero based) using the in-memory offset
// index.
func (j *JSONL) Record(n int) (Record, error) {
	j.mu.Lock()
	if n < 0 || n >= len(j.idx.ranges) {
		j.mu.Unlock()
		return Record{}, fmt.Errorf("store: record %d not found", n)
	}
	r := j.idx.ranges[n]
	j.mu.Unlock()

	buf := make([]byte, r.end-r.start)
	if _, err := j.file.ReadAt(buf, r.start); err != nil {
		return Record{}, fmt.Errorf("store: read record %d: %w", n, err)
	}
	var rec Record
	if err := json.Unmarshal(buf, &rec); err != nil {
		return Record{}, fmt.Errorf("store: decode record %d: %w", n, err)
	}
	return rec, nil
}

// Summary returns aggregates over every indexed record.
func (j *JSONL) Summary() Summary {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.idx.summary
}

// ReadAll decodes every well-formed record in the log at path without
// opening it for writing. A missing file yields no records.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	defer f.Close()

	var recs []Record
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadBytes('\n')
		if rec, ok := decodeLine(line, path); ok {
			recs = append(recs, rec)
		}
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return recs, fmt.Errorf("store: read %q: %w", path, err)
		}
	}
}

// Summarize aggregates recs the same way JSONL.Summary does.
func Summarize(recs []Record) Summary {
	var s Summary
	for _, rec := range recs {
		s.add(rec)
	}
	return s
}
