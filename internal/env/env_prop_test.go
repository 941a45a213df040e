package env

import (
	"sort"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

var (
	keyGen   = rapid.StringMatching(`[A-Z][A-Z0-9_]{0,6}`)
	plainGen = rapid.StringMatching(`[a-z0-9./:-]{0,10}`)
)

// Merge output is sorted, has one entry per key, and later layers win.
func TestMergeLayeringProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		globals := rapid.MapOf(keyGen, plainGen).Draw(t, "globals")
		overrideKeys := rapid.SliceOf(keyGen).Draw(t, "overrides")

		e := FromMap(globals).Isolated()
		var per []string
		want := map[string]string{}
		for k, v := range globals {
			want[k] = v
		}
		for i, k := range overrideKeys {
			v := "o" + strings.Repeat("x", i)
			per = append(per, k+"="+v)
			want[k] = v
		}

		out := e.Merge(per)
		if !sort.StringsAreSorted(out) {
			t.Fatalf("not sorted: %v", out)
		}
		if len(out) != len(want) {
			t.Fatalf("got %d entries, want %d: %v", len(out), len(want), out)
		}
		for _, kv := range out {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				t.Fatalf("bad pair %q", kv)
			}
			if want[k] != v {
				t.Fatalf("%s = %q, want %q", k, v, want[k])
			}
		}
	})
}

// A single ${REF} to a plain global expands to its value; unknown refs stay.
func TestMergeExpansionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ref := keyGen.Draw(t, "ref")
		val := plainGen.Draw(t, "val")
		prefix := plainGen.Draw(t, "prefix")

		e := New().Isolated().WithSet(ref, val)
		out := e.Merge([]string{"ZZ_TARGET=" + prefix + "${" + ref + "}", "ZZ_UNKNOWN=${NOPE_" + ref + "}"})

		got := map[string]string{}
		for _, kv := range out {
			k, v, _ := strings.Cut(kv, "=")
			got[k] = v
		}
		if got["ZZ_TARGET"] != prefix+val {
			t.Fatalf("ZZ_TARGET = %q, want %q", got["ZZ_TARGET"], prefix+val)
		}
		if got["ZZ_UNKNOWN"] != "${NOPE_"+ref+"}" {
			t.Fatalf("unknown reference rewritten: %q", got["ZZ_UNKNOWN"])
		}
	})
}
