package factory

import (
	"path/filepath"
	"testing"

	"github.com/loykin/schedctl/internal/history/opensearch"
	"github.com/loykin/schedctl/internal/history/sqlite"
)

func TestFactoryDSNTypes(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name        string
		dsn         string
		expectError bool
	}{
		{"Empty DSN", "", true},
		{"Invalid scheme", "invalid://test", true},
		{"OpenSearch without host", "opensearch:///idx", true},
		{"SQLite file DSN", "sqlite://" + filepath.Join(dir, "a.db"), false},
		{"SQLite memory DSN", "sqlite://:memory:", false},
		{"Bare path", filepath.Join(dir, "b.db"), false},
		{"OpenSearch DSN", "opensearch://localhost:9200/scheduler-logs", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, err := NewSinkFromDSN(tt.dsn)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error for DSN %q, got nil", tt.dsn)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for DSN %q: %v", tt.dsn, err)
			}
			if sink == nil {
				t.Fatalf("expected non-nil sink for DSN %q", tt.dsn)
			}
			if closer, ok := sink.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		})
	}
}

func TestNewFanout(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFanout([]string{filepath.Join(dir, "h.db"), "opensearch://localhost:9200"})
	if err != nil {
		t.Fatalf("fanout: %v", err)
	}
	defer func() { _ = f.Close() }()
	if len(f) != 2 {
		t.Fatalf("expected 2 sinks, got %d", len(f))
	}
	if _, ok := f[0].(*sqlite.Sink); !ok {
		t.Fatalf("first sink should be sqlite, got %T", f[0])
	}
	if _, ok := f[1].(*opensearch.Sink); !ok {
		t.Fatalf("second sink should be opensearch, got %T", f[1])
	}

	if _, err := NewFanout([]string{filepath.Join(dir, "ok.db"), "bogus://x"}); err == nil {
		t.Fatal("expected error for unsupported DSN")
	}
}

func TestClickHouseOptions(t *testing.T) {
	o, err := clickHouseOptions("clickhouse://alice:secret@ch:9440?database=ops&table=events")
	if err != nil {
		t.Fatal(err)
	}
	if o.Addr != "ch:9440" || o.Username != "alice" || o.Password != "secret" || o.Database != "ops" || o.Table != "events" {
		t.Fatalf("unexpected options: %+v", o)
	}
	o, _ = clickHouseOptions("clickhouse://")
	if o.Addr != "localhost:9000" || o.Table != "" {
		t.Fatalf("unexpected defaults: %+v", o)
	}
}

func TestOpenSearchOptions(t *testing.T) {
	cases := []struct {
		dsn  string
		want opensearch.Options
	}{
		{"opensearch://localhost:9200/logs", opensearch.Options{BaseURL: "http://localhost:9200", Index: "logs"}},
		{"opensearch://localhost:9200", opensearch.Options{BaseURL: "http://localhost:9200", Index: "scheduler-history"}},
		{"elasticsearch://ops:pw@es:9200/events?scheme=https&daily=true",
			opensearch.Options{BaseURL: "https://es:9200", Index: "events", Username: "ops", Password: "pw", Daily: true}},
	}
	for _, c := range cases {
		got, err := openSearchOptions(c.dsn)
		if err != nil {
			t.Fatalf("%s: %v", c.dsn, err)
		}
		if got != c.want {
			t.Fatalf("%s: got %+v, want %+v", c.dsn, got, c.want)
		}
	}
}
