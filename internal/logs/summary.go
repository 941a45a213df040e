package logs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Categories in match priority order: the first one found in a line wins.
var Categories = []string{"hardware", "network", "database", "application", "login", "logout"}

// Outcomes counted per category.
var Outcomes = []string{"error", "success", "warning"}

// Summary maps category -> outcome -> count.
type Summary map[string]map[string]int

// NewSummary returns the zeroed skeleton holding every category and outcome.
func NewSummary() Summary {
	s := make(Summary, len(Categories))
	for _, c := range Categories {
		m := make(map[string]int, len(Outcomes))
		for _, o := range Outcomes {
			m[o] = 0
		}
		s[c] = m
	}
	return s
}

// Add accumulates other into s.
func (s Summary) Add(other Summary) {
	for c, m := range other {
		for o, n := range m {
			if s[c] == nil {
				s[c] = map[string]int{}
			}
			s[c][o] += n
		}
	}
}

// Total is the sum of every cell.
func (s Summary) Total() int {
	t := 0
	for _, m := range s {
		for _, n := range m {
			t += n
		}
	}
	return t
}

// classify returns the category and outcome of line, either may be empty.
func classify(line string) (category, outcome string) {
	l := strings.ToLower(line)
	switch {
	case strings.Contains(l, "info") || strings.Contains(l, "successfully"):
		outcome = "success"
	case strings.Contains(l, "error"):
		outcome = "error"
	case strings.Contains(l, "warning"):
		outcome = "warning"
	}
	for _, c := range Categories {
		if strings.Contains(l, c) {
			category = c
			break
		}
	}
	return category, outcome
}

// Summarize counts the lines of path that carry both a category and an
// outcome. A missing file returns ErrNotFound with the zeroed skeleton.
func Summarize(path string) (Summary, error) {
	s := NewSummary()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return s, err
	}
	defer func() { _ = f.Close() }()
	err = eachLine(f, func(line string) {
		if c, o := classify(line); c != "" && o != "" {
			s[c][o]++
		}
	})
	return s, err
}

// SummarizeByDate summarizes the per-day file DateFilePath(date). Without a
// DateFile it aggregates every file of the date's tree directory instead.
// Nothing to read yields ErrNotFound with the zeroed skeleton.
func (r Reader) SummarizeByDate(date time.Time) (Summary, error) {
	if r.DateFile != "" {
		s, err := Summarize(r.DateFilePath(date))
		if errors.Is(err, ErrNotFound) {
			return s, fmt.Errorf("%w for %s: %s", ErrNotFound, date.Format(DateLayout), filepath.Base(r.DateFilePath(date)))
		}
		return s, err
	}
	total := NewSummary()
	files, err := r.ListFilesForDate(date)
	if err != nil {
		return total, err
	}
	if len(files) == 0 {
		return total, fmt.Errorf("%w for %s", ErrNotFound, date.Format(DateLayout))
	}
	dir := r.DateDir(date)
	for _, name := range files {
		s, err := Summarize(filepath.Join(dir, name))
		if err != nil {
			return total, err
		}
		total.Add(s)
	}
	return total, nil
}
