package settings

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/ini.v1"
)

var loadOptions = ini.LoadOptions{
	Loose:                      true, // a missing file reads as empty
	IgnoreInlineComment:        true,
	AllowPythonMultilineValues: true,
}

// Store reads and replaces a properties file.
type Store struct {
	Path string
	mu   sync.Mutex
}

func NewStore(path string) *Store { return &Store{Path: path} }

// Read returns the file's sections and keys in file order. The implicit
// DEFAULT section appears only when it holds keys.
func (s *Store) Read() (*Document, error) {
	f, err := ini.LoadSources(loadOptions, s.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return fromFile(f), nil
}

func fromFile(f *ini.File) *Document {
	doc := &Document{Sections: []Section{}}
	for _, sec := range f.Sections() {
		keys := sec.Keys()
		if sec.Name() == ini.DefaultSection && len(keys) == 0 {
			continue
		}
		out := Section{Name: sec.Name(), Keys: make([]KeyValue, 0, len(keys))}
		for _, k := range keys {
			out.Keys = append(out.Keys, KeyValue{Key: k.Name(), Value: k.Value()})
		}
		doc.Sections = append(doc.Sections, out)
	}
	return doc
}

// verifyRendered reloads the rendered bytes and checks they read back as doc.
// Surrounding whitespace of values is not significant.
func verifyRendered(doc *Document, rendered []byte) error {
	f, err := ini.LoadSources(loadOptions, rendered)
	if err != nil {
		return fmt.Errorf("%w: rendered file does not parse: %v", ErrInvalidDocument, err)
	}
	back := fromFile(f)
	want := &Document{Sections: []Section{}}
	for _, sec := range doc.Sections {
		w := want.Ensure(sec.Name)
		for _, kv := range sec.Keys {
			w.Set(kv.Key, strings.TrimSpace(kv.Value))
		}
	}
	n := 0
	for _, w := range want.Sections {
		if w.Name == ini.DefaultSection && len(w.Keys) == 0 {
			continue
		}
		n++
		got := back.Section(w.Name)
		if got == nil || len(got.Keys) != len(w.Keys) {
			return fmt.Errorf("%w: section %q does not survive the ini format", ErrInvalidDocument, w.Name)
		}
		for _, kv := range w.Keys {
			if v, ok := got.Get(kv.Key); !ok || strings.TrimSpace(v) != kv.Value {
				return fmt.Errorf("%w: %s.%s does not survive the ini format", ErrInvalidDocument, w.Name, kv.Key)
			}
		}
	}
	if len(back.Sections) != n {
		return fmt.Errorf("%w: rendered file has unexpected sections", ErrInvalidDocument)
	}
	return nil
}

// Write replaces the whole file with doc. Sections absent from doc are gone
// afterwards. A document whose rendering would not read back unchanged is
// rejected with ErrInvalidDocument and the file is left alone. The file is
// swapped in with a rename.
func (s *Store) Write(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	f := ini.Empty(loadOptions)
	for _, sec := range doc.Sections {
		if strings.TrimSpace(sec.Name) == "" {
			return fmt.Errorf("%w: empty section name", ErrInvalidDocument)
		}
		is, err := f.NewSection(sec.Name)
		if err != nil {
			return fmt.Errorf("%w: section %q: %v", ErrInvalidDocument, sec.Name, err)
		}
		for _, kv := range sec.Keys {
			if strings.TrimSpace(kv.Key) == "" {
				return fmt.Errorf("%w: empty key in section %q", ErrInvalidDocument, sec.Name)
			}
			if _, err := is.NewKey(kv.Key, kv.Value); err != nil {
				return fmt.Errorf("%w: %s.%s: %v", ErrInvalidDocument, sec.Name, kv.Key, err)
			}
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return fmt.Errorf("render %s: %w", s.Path, err)
	}
	if err := verifyRendered(doc, buf.Bytes()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if fi, err := os.Stat(s.Path); err == nil {
		_ = os.Chmod(tmpName, fi.Mode().Perm())
	} else {
		_ = os.Chmod(tmpName, 0o640)
	}
	return os.Rename(tmpName, s.Path)
}
