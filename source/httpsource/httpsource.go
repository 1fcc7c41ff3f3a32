// Package httpsource fetches values from an HTTP origin. It is meant to sit
// at the end of a chain, either as a provider (FromProvider) or as the
// read-only storage of a backstop (NewBackstop).
package httpsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/unkn0wn-root/tiercache"
)

// ErrNotFound is returned by Provider for 404 and 410 responses.
var ErrNotFound = errors.New("httpsource: not found")

// StatusError reports an unexpected response status.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpsource: GET %s returned %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

type Config struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// BaseURL, if set, is prefixed to every id. Otherwise ids are full URLs.
	BaseURL string
	// MaxBody bounds the response size; 0 means 10 MiB.
	MaxBody   int64
	UserAgent string
	Logger    tiercache.Logger
}

type Source struct {
	client  *http.Client
	base    string
	maxBody int64
	ua      string
	log     tiercache.Logger
}

var _ tiercache.ReadOnlyStorage[string, []byte] = (*Source)(nil)

func New(cfg Config) *Source {
	s := &Source{
		client:  cfg.Client,
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		maxBody: cfg.MaxBody,
		ua:      cfg.UserAgent,
		log:     cfg.Logger,
	}
	if s.client == nil {
		s.client = http.DefaultClient
	}
	if s.maxBody <= 0 {
		s.maxBody = 10 << 20
	}
	if s.log == nil {
		s.log = tiercache.NopLogger{}
	}
	return s
}

func (s *Source) url(id string) string {
	if s.base == "" {
		return id
	}
	return s.base + "/" + strings.TrimLeft(id, "/")
}

// Get fetches id. 404 and 410 are a miss; any other non-2xx status is an
// error.
func (s *Source) Get(ctx context.Context, id string) ([]byte, bool, error) {
	u := s.url(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, fmt.Errorf("httpsource: build request: %w", err)
	}
	if s.ua != "" {
		req.Header.Set("User-Agent", s.ua)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("httpsource: GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		s.log.Debug("origin miss", tiercache.Fields{"url": u, "status": resp.StatusCode})
		return nil, false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, false, &StatusError{URL: u, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody+1))
	if err != nil {
		return nil, false, fmt.Errorf("httpsource: read %s: %w", u, err)
	}
	if int64(len(body)) > s.maxBody {
		return nil, false, fmt.Errorf("httpsource: %s: body exceeds %d bytes", u, s.maxBody)
	}
	s.log.Debug("origin fetch", tiercache.Fields{"url": u, "bytes": len(body)})
	return body, true, nil
}

// Provider exposes the source as a failable async provider. A miss becomes
// ErrNotFound.
func (s *Source) Provider() tiercache.Provider[string, []byte] {
	return tiercache.FromThrowingAsync(func(ctx context.Context, id string) ([]byte, error) {
		b, ok, err := s.Get(ctx, id)
		if err == nil && !ok {
			err = fmt.Errorf("%w: %s", ErrNotFound, s.url(id))
		}
		return b, err
	})
}
