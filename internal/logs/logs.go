package logs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultExt is the extension of dated log files when Reader.Ext is empty.
const DefaultExt = ".txt"

// DateLayout is the accepted request date format.
const DateLayout = "2006-01-02"

var (
	ErrNotFound        = errors.New("log file not found")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrInvalidDate     = errors.New("invalid date")
)

// Reader serves the dated log tree laid out as Dir/YYYY/MonthName/.
// DateFile, when set, names the single per-day log summarized by date: its
// base name is a time layout, e.g. /var/lama/logs/lama-02-01-06.log.
type Reader struct {
	Dir      string
	Ext      string
	DateFile string
}

func (r Reader) ext() string {
	if r.Ext == "" {
		return DefaultExt
	}
	return r.Ext
}

// ParseDate parses a YYYY-MM-DD request date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: want YYYY-MM-DD", ErrInvalidDate, s)
	}
	return t, nil
}

// DateDir returns the directory holding the files of date.
func (r Reader) DateDir(date time.Time) string {
	return filepath.Join(r.Dir, date.Format("2006"), date.Format("January"))
}

// DateFilePath returns DateFile with its base name formatted for date.
func (r Reader) DateFilePath(date time.Time) string {
	return filepath.Join(filepath.Dir(r.DateFile), date.Format(filepath.Base(r.DateFile)))
}

// datePrefix is the token every file of date carries, e.g. 2025-September-09_.
func datePrefix(date time.Time) string {
	return date.Format("2006-January-02") + "_"
}

// ListFilesForDate returns the sorted names of the files of date. A missing
// directory yields an empty list.
func (r Reader) ListFilesForDate(date time.Time) ([]string, error) {
	entries, err := os.ReadDir(r.DateDir(date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	prefix := datePrefix(date)
	files := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.Contains(name, prefix) && strings.HasSuffix(name, r.ext()) {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ValidateFilename rejects names that could leave the date directory.
func ValidateFilename(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w %q", ErrInvalidFilename, name)
	}
	return nil
}

// ReadFile returns the content of filename within the directory of date.
func (r Reader) ReadFile(date time.Time, filename string) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	b, err := os.ReadFile(filepath.Join(r.DateDir(date), filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return "", err
	}
	return strings.ToValidUTF8(string(b), "\uFFFD"), nil
}
