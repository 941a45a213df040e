package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// File stores the record in a small text file: the first line is the handle,
// the optional second line a JSON meta object. A file holding only a handle
// (as written by older tools) is still readable.
type File struct {
	path string
	mu   sync.Mutex
}

type fileMeta struct {
	Name      string `json:"name,omitempty"`
	StartUnix int64  `json:"start_unix,omitempty"`
	ProcStart int64  `json:"proc_start,omitempty"`
}

// NewFile returns a file-backed registry at path. Parent directories are
// created on first Save.
func NewFile(path string) (*File, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty registry path")
	}
	return &File{path: p}, nil
}

// Path returns the handle file location.
func (f *File) Path() string { return f.path }

func (f *File) Save(_ context.Context, rec Record) error {
	if strings.ContainsAny(rec.Handle, "\r\n") {
		return fmt.Errorf("registry: handle %q contains a newline", rec.Handle)
	}
	meta := fileMeta{Name: rec.Name, ProcStart: rec.ProcStart}
	if !rec.StartedAt.IsZero() {
		meta.StartUnix = rec.StartedAt.Unix()
	}
	mb, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	data := rec.Handle + "\n" + string(mb) + "\n"

	f.mu.Lock()
	defer f.mu.Unlock()
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("registry: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("registry: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("registry: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("registry: close: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("registry: rename: %w", err)
	}
	return nil
}

// Load ignores name: a handle file holds a single record.
func (f *File) Load(_ context.Context, name string) (Record, error) {
	f.mu.Lock()
	b, err := os.ReadFile(f.path)
	f.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	handleLine, rest, _ := strings.Cut(string(b), "\n")
	handle := strings.TrimSpace(handleLine)
	if handle == "" {
		return Record{}, ErrNotFound
	}
	rec := Record{Name: name, Handle: handle}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return rec, nil
	}
	var meta fileMeta
	// Return the handle even if the meta line cannot be parsed
	if err := json.Unmarshal([]byte(rest), &meta); err != nil {
		return rec, nil
	}
	if meta.Name != "" {
		rec.Name = meta.Name
	}
	if meta.StartUnix > 0 {
		rec.StartedAt = time.Unix(meta.StartUnix, 0).UTC()
	}
	rec.ProcStart = meta.ProcStart
	return rec, nil
}

func (f *File) Clear(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *File) Close() error { return nil }
