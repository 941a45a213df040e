package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileSaveLoadClear(t *testing.T) {
	ctx := context.Background()
	p := filepath.Join(t.TempDir(), "run", "scheduler.pid")
	f, err := NewFile(p)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := f.Load(ctx, "scheduler"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before save, got %v", err)
	}

	started := time.Unix(1700000000, 0).UTC()
	if err := f.Save(ctx, Record{Name: "scheduler", Handle: "4242", StartedAt: started, ProcStart: 1699999999}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := f.Load(ctx, "scheduler")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Handle != "4242" || !got.StartedAt.Equal(started) || got.ProcStart != 1699999999 || got.Name != "scheduler" {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Save replaces the previous record
	if err := f.Save(ctx, Record{Name: "scheduler", Handle: "5151"}); err != nil {
		t.Fatalf("save2: %v", err)
	}
	got, _ = f.Load(ctx, "scheduler")
	if got.Handle != "5151" || got.ProcStart != 0 {
		t.Fatalf("record not replaced: %+v", got)
	}
	entries, _ := os.ReadDir(filepath.Dir(p))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}

	if err := f.Clear(ctx, "scheduler"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := f.Load(ctx, "scheduler"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
	// clearing twice is fine
	if err := f.Clear(ctx, "scheduler"); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestFileLegacyAndCorruptContent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cases := map[string]string{
		"legacy":  "1234\n",
		"badmeta": "1234\n{not json\n",
	}
	for name, content := range cases {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		f, _ := NewFile(p)
		rec, err := f.Load(ctx, "scheduler")
		if err != nil {
			t.Fatalf("%s: load: %v", name, err)
		}
		if rec.Handle != "1234" || rec.Name != "scheduler" {
			t.Fatalf("%s: unexpected record %+v", name, rec)
		}
	}

	empty := filepath.Join(dir, "empty")
	_ = os.WriteFile(empty, []byte("  \n"), 0o644)
	f, _ := NewFile(empty)
	if _, err := f.Load(ctx, "scheduler"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank file should be ErrNotFound, got %v", err)
	}
}

func TestFileRejectsBadInput(t *testing.T) {
	if _, err := NewFile("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
	f, _ := NewFile(filepath.Join(t.TempDir(), "h"))
	if err := f.Save(context.Background(), Record{Handle: "a\nb"}); err == nil {
		t.Fatal("expected error for multi-line handle")
	}
}
