package logs

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// maxLineBytes bounds what is kept of a single line; the rest of an
// over-long line is skipped, not reported as an error.
const maxLineBytes = 1 << 20

// eachLine calls fn for every line of r without its line terminator.
func eachLine(r io.Reader, fn func(string)) error {
	br := bufio.NewReaderSize(r, 64<<10)
	var b strings.Builder
	for {
		chunk, err := br.ReadSlice('\n')
		if room := maxLineBytes - b.Len(); room > 0 {
			b.Write(chunk[:min(len(chunk), room)])
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == nil:
			fn(trimEOL(b.String()))
			b.Reset()
		case errors.Is(err, io.EOF):
			if b.Len() > 0 {
				fn(trimEOL(b.String()))
			}
			return nil
		default:
			return err
		}
	}
}

func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
