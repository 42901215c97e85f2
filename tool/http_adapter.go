package tool

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
)

const (
	defaultAdapterTimeout = 30 * time.Second
	maxResponseBytes      = 10 << 20
	maxLoggedBodyBytes    = 512
)

// Binding maps one request key (query parameter, header or body field) to a
// value template. Templates may reference arguments and configured values as
// {name}.
type Binding struct {
	Key   string
	Value string
}

// HTTPEndpoint is the pure-data description of one wrapped REST endpoint.
type HTTPEndpoint struct {
	Schema  Schema
	Method  string
	URL     string
	Query   []Binding
	Headers []Binding
	// Body fields are serialized as one JSON object. A value that is exactly
	// one {placeholder} naming an argument keeps the argument's JSON type.
	Body []Binding
	// TimeoutMS applies when an invocation does not carry its own timeout.
	TimeoutMS int
	// FailureMessage is the static text returned to callers on any fault.
	FailureMessage string
}

// HTTPAdapter performs exactly one HTTP round trip per invocation.
type HTTPAdapter struct {
	endpoint HTTPEndpoint
	values   Values
	client   *http.Client
	logger   *slog.Logger
}

// HTTPOption customizes an HTTPAdapter.
type HTTPOption func(*HTTPAdapter)

// WithHTTPClient replaces the shared pooled client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(a *HTTPAdapter) {
		if client != nil {
			a.client = client
		}
	}
}

// WithLogger sets the logger receiving fault diagnostics.
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(a *HTTPAdapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewHTTPAdapter creates an adapter for endpoint. values are the
// pre-configured template values (subdomain, client id, tokens).
func NewHTTPAdapter(endpoint HTTPEndpoint, values Values, opts ...HTTPOption) *HTTPAdapter {
	a := &HTTPAdapter{
		endpoint: endpoint,
		values:   values,
		client:   sharedHTTPClientPool.get(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Schema returns the tool schema.
func (a *HTTPAdapter) Schema() Schema {
	return a.endpoint.Schema
}

// Invoke executes the endpoint call. It never returns a fault to the
// caller: failures become a Result carrying the endpoint's failure message.
func (a *HTTPAdapter) Invoke(ctx context.Context, inv Invocation) (result Result) {
	start := time.Now()
	name := a.endpoint.Schema.Name

	defer func() {
		if r := recover(); r != nil {
			result = a.fail(ctx, inv, start, newFault(FaultInvalidRequest, name, fmt.Errorf("panic: %v", r)))
		}
	}()

	a.logger.DebugContext(ctx, "invoking tool",
		"tool", name,
		"request_id", inv.RequestID,
		"method", a.method(),
		"args", MaskSensitiveArgs(a.endpoint.Schema, inv.Args),
	)

	ctx, cancel := context.WithTimeout(ctx, a.timeout(inv))
	defer cancel()

	req, err := a.buildRequest(ctx, inv.Args)
	if err != nil {
		return a.fail(ctx, inv, start, newFault(FaultInvalidRequest, name, err))
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return a.fail(ctx, inv, start, newFault(FaultTransport, name, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		fault := newFault(FaultTransport, name, fmt.Errorf("read response: %w", err))
		fault.Status = resp.StatusCode
		return a.fail(ctx, inv, start, fault)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		fault := newFault(FaultUpstream, name, errors.New(http.StatusText(resp.StatusCode)))
		fault.Status = resp.StatusCode
		fault.Body = truncate(strings.TrimSpace(string(raw)), maxLoggedBodyBytes)
		return a.fail(ctx, inv, start, fault)
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		fault := newFault(FaultDecode, name, fmt.Errorf("decode response: %w", err))
		fault.Status = resp.StatusCode
		return a.fail(ctx, inv, start, fault)
	}

	emitInvokeObservation(InvokeObservation{
		ToolName:   name,
		RequestID:  inv.RequestID,
		Method:     a.method(),
		StatusCode: resp.StatusCode,
		DurationMS: elapsedMS(start),
		Success:    true,
	})
	return Success(payload)
}

func (a *HTTPAdapter) buildRequest(ctx context.Context, args Args) (*http.Request, error) {
	src := newTemplateSource(a.endpoint.Schema, args, a.values)
	rawURL, err := expandURL(a.endpoint.URL, src)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" || strings.HasPrefix(u.Host, ".") {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	if len(a.endpoint.Query) > 0 {
		query := u.Query()
		for _, b := range a.endpoint.Query {
			value, err := expand(b.Value, src)
			if err != nil {
				return nil, fmt.Errorf("query %s: %w", b.Key, err)
			}
			query.Add(b.Key, value)
		}
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if len(a.endpoint.Body) > 0 {
		payload := make(map[string]any, len(a.endpoint.Body))
		for _, b := range a.endpoint.Body {
			value, err := bodyValue(b.Value, src)
			if err != nil {
				return nil, fmt.Errorf("body %s: %w", b.Key, err)
			}
			payload[b.Key] = value
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, a.method(), u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for _, b := range a.endpoint.Headers {
		value, err := expand(b.Value, src)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", b.Key, err)
		}
		req.Header.Set(b.Key, value)
	}
	return req, nil
}

func bodyValue(tmpl string, src templateSource) (any, error) {
	if name, ok := singlePlaceholder(tmpl); ok && src.isArgument(name) {
		if raw, present := src.args[name]; present && raw != nil {
			return raw, nil
		}
	}
	return expand(tmpl, src)
}

func (a *HTTPAdapter) fail(ctx context.Context, inv Invocation, start time.Time, fault *Fault) Result {
	duration := elapsedMS(start)
	a.logger.ErrorContext(ctx, "tool invocation failed",
		"tool", fault.Tool,
		"request_id", inv.RequestID,
		"fault", string(fault.Kind),
		"status", fault.Status,
		"timeout", fault.Timeout(),
		"upstream_body", fault.Body,
		"duration_ms", duration,
		"error", fault.Cause,
	)
	emitInvokeObservation(InvokeObservation{
		ToolName:   fault.Tool,
		RequestID:  inv.RequestID,
		Method:     a.method(),
		StatusCode: fault.Status,
		DurationMS: duration,
		Success:    false,
		FaultKind:  fault.Kind,
	})
	return Failure(a.endpoint.FailureMessage)
}

func (a *HTTPAdapter) method() string {
	if m := strings.TrimSpace(a.endpoint.Method); m != "" {
		return strings.ToUpper(m)
	}
	return http.MethodGet
}

func (a *HTTPAdapter) timeout(inv Invocation) time.Duration {
	if inv.Timeout > 0 {
		return inv.Timeout
	}
	if a.endpoint.TimeoutMS > 0 {
		return time.Duration(a.endpoint.TimeoutMS) * time.Millisecond
	}
	return defaultAdapterTimeout
}

func singlePlaceholder(tmpl string) (string, bool) {
	if len(tmpl) < 3 || tmpl[0] != '{' || tmpl[len(tmpl)-1] != '}' {
		return "", false
	}
	name := tmpl[1 : len(tmpl)-1]
	if strings.ContainsAny(name, "{}") {
		return "", false
	}
	return strings.TrimSpace(name), true
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

var _ Adapter = (*HTTPAdapter)(nil)
