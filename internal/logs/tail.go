package logs

import (
	"errors"
	"os"
	"path/filepath"
)

// DefaultTailLines is used when a non-positive line count is requested.
const DefaultTailLines = 100

// ReadTail returns the last maxLines lines of path in file order. A missing
// file is created empty, along with its parent directories.
func ReadTail(path string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		maxLines = DefaultTailLines
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, err
		}
		nf, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, err
		}
		return []string{}, nf.Close()
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	// ring is sized by the lines read, never by maxLines
	var ring []string
	n := 0
	err = eachLine(f, func(line string) {
		if len(ring) < maxLines {
			ring = append(ring, line)
		} else {
			ring[n%maxLines] = line
		}
		n++
	})
	if err != nil {
		return nil, err
	}
	if n <= maxLines {
		if ring == nil {
			ring = []string{}
		}
		return ring, nil
	}
	out := make([]string, 0, maxLines)
	start := n % maxLines
	out = append(out, ring[start:]...)
	out = append(out, ring[:start]...)
	return out, nil
}
