// Package store is the persistence layer: append-only JSONL logs for
// signals, trades and game snapshots, an atomically-replaced JSON file for
// small key-value state, and a sqlite archive for quote history.
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// AppendLog is a durable append-only JSONL file. One record per line,
// flushed on every append so a crash loses at most the in-flight record.
type AppendLog struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// OpenAppendLog opens (creating if needed) the log at path.
func OpenAppendLog(path string) (*AppendLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir for %q: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	return &AppendLog{f: f, path: path}, nil
}

// Append marshals v and writes it as one line.
func (l *AppendLog) Append(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("store: append to %q: %w", l.path, err)
	}
	return nil
}

// Path returns the backing file path.
func (l *AppendLog) Path() string {
	return l.path
}

// Close closes the backing file.
func (l *AppendLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// ReadJSONL streams the file line by line into fn. A line fn rejects is
// counted and skipped, never fatal; only I/O failures abort the read.
// A missing file reads as empty.
func ReadJSONL(path string, fn func(line []byte) error) (skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("store: open %q: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			skipped++
		}
	}
	if err := sc.Err(); err != nil {
		return skipped, fmt.Errorf("store: scan %q: %w", path, err)
	}
	return skipped, nil
}
