package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"DebateArena/internal/debate"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPath is where the Response Provider endpoint is mounted
const DefaultPath = "/.netlify/functions/debate"

const defaultFailure = "API request failed"

// ReplyRequest is the JSON body sent to the Response Provider
type ReplyRequest struct {
	Prompt    string  `json:"prompt"`
	BotType   string  `json:"botType"`
	Intensity float64 `json:"intensity"`
}

// ReplyResponse is the JSON body returned by the Response Provider
type ReplyResponse struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// Error is a failure reported by the Response Provider, either through a
// non-success status or an error field in the payload.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// NormalizeIntensity maps unusable intensities to the neutral 1.0
func NormalizeIntensity(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
		return 1.0
	}
	return x
}

// Client calls a remote Response Provider. It implements debate.Provider.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	duration   metric.Float64Histogram
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithTracer sets the tracer for provider call spans
func WithTracer(t trace.Tracer) ClientOption {
	return func(c *Client) { c.tracer = t }
}

// NewClient creates a Client posting to url
func NewClient(url string, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		tracer:     otel.Tracer("debatearena/provider"),
	}
	for _, opt := range opts {
		opt(c)
	}

	histogram, err := otel.Meter("debatearena/provider").Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Response Provider request duration in milliseconds"),
	)
	if err != nil {
		logger.Warn("failed to create histogram", "error", err)
	}
	c.duration = histogram

	return c
}

// Reply asks the Response Provider for a persona reply
func (c *Client) Reply(ctx context.Context, req debate.Request) (string, error) {
	ctx, span := c.tracer.Start(ctx, "provider_call",
		trace.WithAttributes(
			attribute.String("debate.persona", string(req.Persona)),
			attribute.Float64("debate.intensity", req.Intensity),
		),
	)
	defer span.End()

	start := time.Now()
	text, err := c.send(ctx, req)
	if c.duration != nil {
		c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("debate.persona", string(req.Persona))),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("provider request failed", "persona", req.Persona, "error", err)
		return "", err
	}

	c.logger.Debug("provider replied", "persona", req.Persona, "duration", time.Since(start), "chars", len(text))
	return text, nil
}

func (c *Client) send(ctx context.Context, req debate.Request) (string, error) {
	body := ReplyRequest{
		Prompt:    req.Prompt,
		BotType:   string(req.Persona),
		Intensity: NormalizeIntensity(req.Intensity),
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var payload ReplyResponse
	decodeErr := json.Unmarshal(raw, &payload)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := payload.Error
		if decodeErr != nil || msg == "" {
			msg = defaultFailure
		}
		return "", &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", decodeErr)
	}
	if payload.Error != "" {
		return "", &Error{StatusCode: resp.StatusCode, Message: payload.Error}
	}

	return payload.Reply, nil
}
