// Package documents links claim documents with the external document
// service. Files are uploaded there by the client; this package only records
// which documents belong to which claim.
package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"propie/internal/coordinator/ports"
	id "propie/pkg/domain"
	"propie/pkg/requestcontext"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("document registry unavailable")

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("document registry responded %d: %s", e.Code, e.Body)
}

// clientFault reports whether the registry rejected the request itself, which
// says nothing about its health.
func (e *StatusError) clientFault() bool {
	return e.Code >= 400 && e.Code < 500 && e.Code != http.StatusTooManyRequests
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

type Option func(*clientConfig)

type clientConfig struct {
	timeout          time.Duration
	httpClient       *http.Client
	failureThreshold uint32
	openTimeout      time.Duration
	logger           *slog.Logger
}

func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = hc
	}
}

// WithBreaker sets how many consecutive failures open the breaker and how
// long it stays open before a trial request.
func WithBreaker(failures uint32, open time.Duration) Option {
	return func(c *clientConfig) {
		if failures > 0 {
			c.failureThreshold = failures
		}
		if open > 0 {
			c.openTimeout = open
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid document registry URL %q", baseURL)
	}
	cfg := clientConfig{
		timeout:          3 * time.Second,
		failureThreshold: 5,
		openTimeout:      30 * time.Second,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
		logger:     cfg.logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "document-registry",
		MaxRequests: 1,
		Timeout:     cfg.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.failureThreshold
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || (errors.As(err, &se) && se.clientFault())
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return c, nil
}

type linkRequest struct {
	DocumentID id.DocumentID `json:"document_id"`
	URL        string        `json:"url"`
	Name       string        `json:"name,omitempty"`
	Kind       string        `json:"kind,omitempty"`
	AttachedBy string        `json:"attached_by"`
	AttachedAt time.Time     `json:"attached_at"`
}

// Link registers doc against the claim. Repeating a link is safe; the
// registry treats it as an upsert keyed by document ID.
func (c *Client) Link(ctx context.Context, claimID id.ClaimID, doc ports.DocumentLink) error {
	body, err := json.Marshal(linkRequest{
		DocumentID: doc.DocumentID,
		URL:        doc.URL,
		Name:       doc.Name,
		Kind:       doc.Kind,
		AttachedBy: doc.AttachedBy.String(),
		AttachedAt: doc.AttachedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal document link: %w", err)
	}
	endpoint := c.baseURL + "/claims/" + url.PathEscape(claimID.String()) + "/documents"

	_, err = c.breaker.Execute(func() (any, error) {
		return nil, c.post(ctx, endpoint, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build document link request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("link document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}

// State exposes the breaker state for health reporting.
func (c *Client) State() string {
	return c.breaker.State().String()
}
