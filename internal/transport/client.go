// Package transport sends scenario requests to the FWE model service and
// classifies every failure into a small, stable taxonomy.
package transport

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"fwe/internal/scenario"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is where the model API listens in local setups.
	DefaultBaseURL = "http://localhost:8081"
	// DefaultTimeout bounds a single scenario call.
	DefaultTimeout = 30 * time.Second

	runScenarioPath     = "/run-scenario"
	maxResponseBytes    = 8 << 20
	maxErrorBodyExcerpt = 4096
	responseSchemaURL   = "https://fwe.local/schemas/run_scenario_response.json"
)

//go:embed schema/run_scenario_response.schema.json
var responseSchemaJSON []byte

var (
	responseSchemaOnce sync.Once
	responseSchema     *jsonschema.Schema
	responseSchemaErr  error
)

func compiledResponseSchema() (*jsonschema.Schema, error) {
	responseSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(responseSchemaURL, bytes.NewReader(responseSchemaJSON)); err != nil {
			responseSchemaErr = fmt.Errorf("add response schema: %w", err)
			return
		}
		responseSchema, responseSchemaErr = compiler.Compile(responseSchemaURL)
	})
	return responseSchema, responseSchemaErr
}

// Config configures a Client. The endpoint is resolved by the caller; the
// client never looks it up on its own.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client issues run-scenario calls. It never retries and never caches.
type Client struct {
	endpoint string
	timeout  time.Duration
	http     *http.Client
	logger   *zap.Logger
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be http or https", base)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: missing host", base)
	}
	if _, err := compiledResponseSchema(); err != nil {
		return nil, err
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		endpoint: strings.TrimRight(base, "/") + runScenarioPath,
		timeout:  cfg.Timeout,
		http:     cfg.HTTPClient,
		logger:   cfg.Logger,
	}, nil
}

// Endpoint returns the full run-scenario URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Send issues exactly one POST for req and returns the decoded response or
// a *Error.
func (c *Client) Send(ctx context.Context, req scenario.Request) (scenario.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return scenario.Response{}, fmt.Errorf("encode scenario request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return scenario.Response{}, fmt.Errorf("build scenario request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	c.logger.Debug("sending scenario request",
		zap.String("endpoint", c.endpoint),
		zap.Stringer("request", req),
		zap.Duration("timeout", c.timeout))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		terr := classifyNetworkError(ctx, err)
		c.logger.Warn("scenario request failed",
			zap.Stringer("kind", terr.Kind),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return scenario.Response{}, terr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return scenario.Response{}, classifyNetworkError(ctx, err)
	}

	c.logger.Debug("scenario response received",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return scenario.Response{}, &Error{
			Kind:   ServerRejected,
			Status: resp.StatusCode,
			Body:   excerpt(raw),
		}
	}
	if len(raw) > maxResponseBytes {
		return scenario.Response{}, &Error{
			Kind:  BadResponseShape,
			Cause: fmt.Errorf("response body exceeds %d bytes", maxResponseBytes),
		}
	}
	return decodeResponse(raw)
}

func decodeResponse(raw []byte) (scenario.Response, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return scenario.Response{}, &Error{Kind: BadResponseShape, Cause: err}
	}
	schema, err := compiledResponseSchema()
	if err != nil {
		return scenario.Response{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return scenario.Response{}, &Error{Kind: BadResponseShape, Cause: err}
	}

	var out scenario.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return scenario.Response{}, &Error{Kind: BadResponseShape, Cause: err}
	}
	if out.Notes == nil {
		out.Notes = []string{}
	}
	return out, nil
}

// classifyNetworkError maps a client.Do or body read failure. parent is the
// caller's context, used to tell an abandoned call from a timed-out one.
func classifyNetworkError(parent context.Context, err error) *Error {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return &Error{Kind: Canceled, Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: Timeout, Cause: err}
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return &Error{Kind: Timeout, Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: Canceled, Cause: err}
	}
	return &Error{Kind: Unreachable, Cause: err}
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyExcerpt {
		return s[:maxErrorBodyExcerpt] + "..."
	}
	return s
}
