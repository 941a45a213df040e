package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/loykin/schedctl/internal/logs"
	"github.com/loykin/schedctl/internal/settings"
)

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	bp = strings.TrimRight(bp, "/")
	return bp
}

// statusFor maps package errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, logs.ErrInvalidFilename),
		errors.Is(err, logs.ErrInvalidDate),
		errors.Is(err, settings.ErrInvalidDocument):
		return http.StatusBadRequest
	case errors.Is(err, logs.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// staticFile resolves a request path to a regular file inside dir, or "".
func staticFile(dir, urlPath string) string {
	if dir == "" {
		return ""
	}
	clean := path.Clean("/" + urlPath)
	p := filepath.Join(dir, filepath.FromSlash(clean))
	if clean == "/" {
		p = filepath.Join(dir, "index.html")
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	absP, err := filepath.Abs(p)
	if err != nil || (absP != absDir && !strings.HasPrefix(absP, absDir+string(filepath.Separator))) {
		return ""
	}
	fi, err := os.Stat(absP)
	if err != nil || fi.IsDir() {
		return ""
	}
	return absP
}

func writeJSON(c *gin.Context, code int, v any) {
	c.Header("Content-Type", "application/json")
	c.Status(code)
	_ = json.NewEncoder(c.Writer).Encode(v)
}
