package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/billing"
)

// maxResponseSize is the maximum allowed response size from the provider
// API (10MB).
const maxResponseSize = 10 * 1024 * 1024

// CallParams is the parameter bag for one provider call. ID, ID2 and Helper
// splice into the resource path in that order when present; QueryString
// appends as-is; Body, when present, is JSON-serialized as the request
// body.
type CallParams struct {
	ID          string
	ID2         string
	Helper      string
	QueryString string
	Headers     map[string]string
	Body        any
}

// CallResult classifies one provider response. Error is set when the call
// failed at transport level, the body carried an explicit error field, or
// the body was not parseable JSON (Text then holds the opaque body).
type CallResult struct {
	Error      bool
	StatusCode int
	Result     json.RawMessage
	Text       string
	Message    string
}

// Client is the single-entry provider call wrapper. Every request is built
// from a logical operation name of the form
// "{namespace}.{method}.{resource}[.{subresource}]"; see Call.
type Client struct {
	cfg        *ProviderConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a provider API client.
func NewClient(cfg *ProviderConfig, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", billing.ErrProviderNotConfigured, err)
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}, nil
}

// Call executes one provider operation. The operation name encodes the HTTP
// method and resource path; params.ID, params.ID2 and params.Helper splice
// into the path in that order around the operation's own segments, e.g.
// "provider.put.products.variants" with ID and ID2 becomes
// PUT /products/{id}/variants/{id2}.
//
// Transport failures are retried up to the configured bound; provider-
// reported errors are classified, never retried.
func (c *Client) Call(ctx context.Context, op string, params CallParams) CallResult {
	method, path, err := c.buildPath(op, params)
	if err != nil {
		return CallResult{Error: true, Message: err.Error()}
	}

	url := strings.TrimRight(c.cfg.APIBaseURL, "/") + path
	if params.QueryString != "" {
		url += "?" + params.QueryString
	}

	var bodyBytes []byte
	if params.Body != nil {
		bodyBytes, err = json.Marshal(params.Body)
		if err != nil {
			return CallResult{Error: true, Message: fmt.Sprintf("encode request body: %v", err)}
		}
	}

	c.logger.Debug("provider request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", url),
		zap.String("body", Mask(bodyBytes)))

	raw, status, err := c.doWithRetry(ctx, method, url, bodyBytes, params.Headers)
	if err != nil {
		c.logger.Warn("provider transport failure",
			zap.String("op", op),
			zap.Error(err))
		return CallResult{Error: true, Message: err.Error()}
	}

	c.logger.Debug("provider response",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("body", Mask(raw)))

	return classify(raw, status)
}

// buildPath derives the HTTP method and resource path from the operation
// name and parameter bag.
func (c *Client) buildPath(op string, params CallParams) (string, string, error) {
	parts := strings.Split(op, ".")
	if len(parts) < 3 {
		return "", "", fmt.Errorf("malformed operation name %q", op)
	}
	method := strings.ToUpper(parts[1])
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
	default:
		return "", "", fmt.Errorf("unsupported method in operation %q", op)
	}

	segments := []string{parts[2]}
	if params.ID != "" {
		segments = append(segments, params.ID)
	}
	segments = append(segments, parts[3:]...)
	if params.ID2 != "" {
		segments = append(segments, params.ID2)
	}
	if params.Helper != "" {
		segments = append(segments, params.Helper)
	}
	return method, "/" + strings.Join(segments, "/"), nil
}

// doWithRetry performs the HTTP round-trip, retrying transport errors.
func (c *Client) doWithRetry(ctx context.Context, method, url string, body []byte, headers map[string]string) ([]byte, int, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, 0, fmt.Errorf("build request: %w", err)
		}
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", billing.ErrProviderUnavailable, err)
			continue
		}

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}
		return raw, resp.StatusCode, nil
	}
	return nil, 0, lastErr
}

// classify decides success or error from the response body and status.
func classify(raw []byte, status int) CallResult {
	result := CallResult{StatusCode: status}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		result.Error = true
		result.Text = string(raw)
		result.Message = "provider response was not valid JSON"
		return result
	}
	result.Result = raw

	if msg, ok := probe["error_message"]; ok {
		var text string
		if json.Unmarshal(msg, &text) == nil && text != "" {
			result.Error = true
			result.Message = text
		}
	}
	if found, ok := probe["error_found"]; ok && isTruthy(found) {
		result.Error = true
		if result.Message == "" {
			result.Message = "provider reported an error"
		}
	}
	if status >= 400 {
		result.Error = true
		if result.Message == "" {
			result.Message = fmt.Sprintf("provider returned HTTP %d", status)
		}
	}
	return result
}

// isTruthy interprets the provider's loosely-typed error flags ("1", 1,
// true).
func isTruthy(raw json.RawMessage) bool {
	s := strings.Trim(string(raw), `"`)
	return s == "1" || strings.EqualFold(s, "true")
}
