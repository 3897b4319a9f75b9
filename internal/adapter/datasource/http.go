package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/precip-render-service/internal/domain"
)

// HTTPSource fetches objects relative to a base URL.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPSource creates a source rooted at baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPSource {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &HTTPSource{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	u := s.baseURL + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &domain.FetchError{Object: name, Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Object: name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.logger.Debug("source returned non-200", "object", name, "status", resp.StatusCode)
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &domain.FetchError{Object: name, Status: resp.StatusCode, Err: errors.New(msg)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{Object: name, Err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}
