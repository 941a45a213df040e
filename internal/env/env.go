package env

import (
	"os"
	"sort"
	"strings"
)

type Var map[string]string

// Env composes the environment handed to the scheduler process:
// the service's own environment, then configured globals, then per-launch overrides.
type Env struct {
	Var  Var  // global variables (K->V)
	base Var  // cached base from OS environment
	bare bool // start from an empty base instead of the OS environment
}

func New() *Env {
	return &Env{Var: make(Var)}
}

// FromMap returns an Env with vars as globals.
func FromMap(vars map[string]string) *Env {
	e := New()
	for k, v := range vars {
		e.Set(k, v)
	}
	return e
}

// Isolated drops the inherited OS environment; only globals and overrides remain.
func (e *Env) Isolated() *Env {
	e.bare = true
	e.base = Var{}
	return e
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	base := make(Var)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			base[k] = v
		}
	}
	e.base = base
}

// Set sets a global variable K=V. Empty keys are ignored.
func (e *Env) Set(k, v string) {
	if k == "" {
		return
	}
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// WithSet is Set returning e for chaining.
func (e *Env) WithSet(k, v string) *Env {
	e.Set(k, v)
	return e
}

// Unset removes a global variable.
func (e *Env) Unset(k string) {
	if e.Var != nil {
		delete(e.Var, k)
	}
}

// Merge composes the final environment list applying order:
// base (OS env unless Isolated), then globals, then perLaunch "K=V" overrides.
// Values get one pass of ${VAR} expansion against the composed map; unknown
// references are left untouched. The result is sorted by key.
func (e *Env) Merge(perLaunch []string) []string {
	if e.base == nil && !e.bare {
		e.FromOS()
	}
	m := make(Var, len(e.base)+len(e.Var)+len(perLaunch))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.Var {
		if k != "" {
			m[k] = v
		}
	}
	for _, kv := range perLaunch {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			m[k] = v
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+expand(m[k], m))
	}
	return out
}

func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		name := s[i+2 : i+2+j]
		b.WriteString(s[:i])
		if v, ok := m[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : i+3+j])
		}
		s = s[i+3+j:]
	}
}
