package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/schedctl/internal/history"
)

const defaultTimeout = 5 * time.Second

// Options configures the OpenSearch (or Elasticsearch) sink.
type Options struct {
	BaseURL  string // scheme://host:port
	Index    string
	Username string
	Password string
	// Daily appends the event date (index-2006.01.02) so retention can drop
	// whole indices.
	Daily   bool
	Timeout time.Duration
}

// Sink indexes each event as one document through the REST API.
type Sink struct {
	client *http.Client
	o      Options
}

func New(o Options) *Sink {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	return &Sink{client: &http.Client{Timeout: o.Timeout}, o: o}
}

// IndexFor returns the index an event is written to.
func (s *Sink) IndexFor(e history.Event) string {
	if !s.o.Daily {
		return s.o.Index
	}
	t := e.OccurredAt
	if t.IsZero() {
		t = time.Now()
	}
	return s.o.Index + "-" + t.UTC().Format("2006.01.02")
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	index := s.IndexFor(e)
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.o.BaseURL+"/"+index+"/_doc", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.o.Username != "" {
		req.SetBasicAuth(s.o.Username, s.o.Password)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("opensearch: index %s: %w", index, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("opensearch: index %s: status %d: %s", index, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
