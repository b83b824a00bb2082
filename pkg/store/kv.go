package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// KV persists one JSON document at a fixed path, replaced atomically via a
// temp file and rename so readers never observe a partial write. Used for
// the active exit parameters and the cumulative learnings record.
type KV struct {
	path string
}

// NewKV returns a KV rooted at path.
func NewKV(path string) *KV {
	return &KV{path: path}
}

// Load unmarshals the document into v. A missing file returns
// os.ErrNotExist so callers can fall back to defaults.
func (k *KV) Load(v any) error {
	data, err := os.ReadFile(k.path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("store: read %q: %w", k.path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: parse %q: %w", k.path, err)
	}
	return nil
}

// Save replaces the document with v.
func (k *KV) Save(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal %q: %w", k.path, err)
	}

	dir := filepath.Dir(k.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir for %q: %w", k.path, err)
	}

	tmp, err := os.CreateTemp(dir, ".kv-*")
	if err != nil {
		return fmt.Errorf("store: temp file for %q: %w", k.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write %q: %w", k.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close temp for %q: %w", k.path, err)
	}
	if err := os.Rename(tmpName, k.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: replace %q: %w", k.path, err)
	}
	return nil
}

// Path returns the backing file path.
func (k *KV) Path() string {
	return k.path
}
