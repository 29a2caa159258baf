// Package rest implements the action-server endpoint over HTTP: one
// JSON POST per action invocation, with bounded timeouts, optional
// bearer credentials and transparent request compression.
package rest

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/espalier-ai/espalier/internal/logging"
	"github.com/espalier-ai/espalier/pkg/domain"
	"github.com/espalier-ai/espalier/pkg/ports"
)

// DefaultTimeout bounds an action-server call when the config does not
// set one. The engine never retries a timed-out call on its own:
// business actions may not be idempotent.
const DefaultTimeout = 10 * time.Second

// DefaultCompressThreshold is the request body size, in bytes, above
// which the payload is gzip-compressed. Compression is purely a
// transfer optimization and never changes observable semantics.
const DefaultCompressThreshold = 64 * 1024

// Config is the explicit client configuration. There is no ambient or
// global state: everything the client needs is here.
type Config struct {
	// URL is the action server's webhook endpoint.
	URL string
	// Token, when set, is sent as a bearer credential.
	Token string
	// Timeout bounds each call. Zero means DefaultTimeout.
	Timeout time.Duration
	// CompressThreshold is the body size above which requests are
	// gzipped. Zero means DefaultCompressThreshold; negative disables
	// compression.
	CompressThreshold int
}

// Client calls the remote action server. Safe for concurrent use; each
// request is isolated on the shared HTTP transport pool.
type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

var _ ports.ActionEndpoint = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client from an explicit configuration.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CompressThreshold == 0 {
		cfg.CompressThreshold = DefaultCompressThreshold
	}
	c := &Client{
		cfg:    cfg,
		client: &http.Client{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request is the wire contract's request body.
type request struct {
	NextAction string          `json:"next_action"`
	SenderID   string          `json:"sender_id"`
	Tracker    *domain.Tracker `json:"tracker"`
	Domain     string          `json:"domain"`
}

// response is the wire contract's success body.
type response struct {
	Events    []map[string]any         `json:"events"`
	Responses []domain.ResponsePayload `json:"responses"`
}

// rejection is the distinguished 4xx body for a business-rule refusal,
// as opposed to a transport failure.
type rejection struct {
	ActionName string           `json:"action_name"`
	Error      string           `json:"error"`
	Events     []map[string]any `json:"events,omitempty"`
}

// Execute runs one action on the remote server and returns its
// domain-validated response. Error mapping: deadline exceeded ->
// domain.ErrServerTimeout; transport failure ->
// domain.ErrServerUnavailable; 4xx carrying the rejection marker ->
// *domain.RejectionError; any other non-2xx -> *domain.ServerError;
// malformed or undeclared-reference bodies -> domain.ErrInvalidResponse.
// On any failure zero events are returned.
func (c *Client) Execute(ctx context.Context, action string, tracker *domain.Tracker, d *domain.Domain) (*domain.RemoteResponse, error) {
	body, err := json.Marshal(request{
		NextAction: action,
		SenderID:   tracker.SenderID,
		Tracker:    tracker,
		Domain:     d.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal action request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := c.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: action %q exceeded %s", domain.ErrServerTimeout, action, c.cfg.Timeout)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrServerUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrServerUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return c.parseSuccess(action, payload, d)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		if rej := parseRejection(action, payload, d); rej != nil {
			c.logger.Debug("action server rejected execution", "action", action)
			return nil, rej
		}
		fallthrough
	default:
		return nil, &domain.ServerError{Status: resp.StatusCode, Message: snippet(payload)}
	}
}

func (c *Client) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	compressed := false
	if c.cfg.CompressThreshold > 0 && len(body) > c.cfg.CompressThreshold {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return nil, fmt.Errorf("compress action request: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("compress action request: %w", err)
		}
		body = buf.Bytes()
		compressed = true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build action request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if compressed {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	return req, nil
}

// parseSuccess decodes the event batch and refuses to pass through any
// event referencing actions or slots the domain does not declare. The
// engine must not apply unvalidated third-party state mutations.
func (c *Client) parseSuccess(action string, payload []byte, d *domain.Domain) (*domain.RemoteResponse, error) {
	var body response
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: malformed body: %v", domain.ErrInvalidResponse, err)
	}
	events, err := domain.DecodeEvents(body.Events)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
	}
	for _, evt := range events {
		if err := checkDeclared(evt, d); err != nil {
			return nil, fmt.Errorf("%w: action %q: %v", domain.ErrInvalidResponse, action, err)
		}
	}
	return &domain.RemoteResponse{Events: events, Responses: body.Responses}, nil
}

func checkDeclared(evt domain.Event, d *domain.Domain) error {
	switch e := evt.(type) {
	case domain.SlotSet:
		if !d.HasSlot(e.Name) {
			return fmt.Errorf("event sets undeclared slot %q", e.Name)
		}
	case domain.ActionExecuted:
		if !d.HasAction(e.Name) {
			return fmt.Errorf("event references undeclared action %q", e.Name)
		}
	case domain.LoopActivated:
		if !d.IsForm(e.Name) {
			return fmt.Errorf("event activates undeclared loop %q", e.Name)
		}
	case domain.LoopDeactivated:
		if !d.IsForm(e.Name) {
			return fmt.Errorf("event deactivates undeclared loop %q", e.Name)
		}
	}
	return nil
}

// parseRejection recognizes the explicit reject-execution body. The
// rejection may carry requested-slot redirects; decoding failures there
// are ignored since the rejection itself is already the outcome, and
// events with undeclared references are dropped just as the success
// path refuses them.
func parseRejection(action string, payload []byte, d *domain.Domain) *domain.RejectionError {
	var body rejection
	if err := json.Unmarshal(payload, &body); err != nil || body.ActionName == "" {
		return nil
	}
	events, err := domain.DecodeEvents(body.Events)
	if err != nil {
		events = nil
	}
	kept := events[:0]
	for _, evt := range events {
		if checkDeclared(evt, d) == nil {
			kept = append(kept, evt)
		}
	}
	return &domain.RejectionError{ActionName: action, Message: body.Error, Events: kept}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}

func snippet(payload []byte) string {
	const max = 200
	if len(payload) > max {
		return string(payload[:max]) + "..."
	}
	return string(payload)
}
