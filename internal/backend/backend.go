package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	Ollama    = "ollama"
	Anthropic = "anthropic"
	Grok      = "grok"
	OpenAI    = "openai"
)

// Names lists the supported backends
var Names = []string{Ollama, Anthropic, Grok, OpenAI}

// Prompt is a single generation request
type Prompt struct {
	System      string
	User        string
	Temperature float64
}

// Backend generates text for a prompt
type Backend interface {
	Name() string
	Generate(ctx context.Context, p Prompt) (string, error)
}

// Options configures a Client. Zero values fall back to the backend defaults.
type Options struct {
	Model      string
	BaseURL    string
	APIKey     string
	MaxTokens  int
	HTTPClient *http.Client
	Logger     *slog.Logger
	Tracer     trace.Tracer
	Meter      metric.Meter
}

// Client talks to one LLM backend over HTTP
type Client struct {
	name       string
	model      string
	baseURL    string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter
	duration   metric.Float64Histogram
}

type defaults struct {
	baseURL string
	model   string
	keyEnv  string
}

var backendDefaults = map[string]defaults{
	Ollama:    {baseURL: "http://localhost:11434", model: "llama3:latest"},
	Anthropic: {baseURL: "https://api.anthropic.com", model: "claude-sonnet-4-20250514", keyEnv: "ANTHROPIC_API_KEY"},
	Grok:      {baseURL: "https://api.grok.x.ai", model: "grok-1", keyEnv: "GROK_API_KEY"},
	OpenAI:    {baseURL: "https://api.openai.com", model: "gpt-3.5-turbo", keyEnv: "OPENAI_API_KEY"},
}

// New creates a Client for the named backend
func New(name string, opts Options) (*Client, error) {
	d, ok := backendDefaults[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend: %s", name)
	}

	c := &Client{
		name:       name,
		model:      opts.Model,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		maxTokens:  opts.MaxTokens,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		tracer:     opts.Tracer,
		meter:      opts.Meter,
	}
	if c.model == "" {
		c.model = d.model
	}
	if c.baseURL == "" {
		c.baseURL = d.baseURL
	}
	if c.apiKey == "" && d.keyEnv != "" {
		c.apiKey = os.Getenv(d.keyEnv)
	}
	if c.maxTokens == 0 {
		c.maxTokens = 1024
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("debatearena/backend")
	}
	if c.meter == nil {
		c.meter = otel.Meter("debatearena/backend")
	}

	histogram, err := c.meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		c.logger.Warn("failed to create histogram", "error", err)
	}
	c.duration = histogram

	return c, nil
}

// Name returns the backend name
func (c *Client) Name() string {
	return c.name
}

// Model returns the model requests are sent to
func (c *Client) Model() string {
	return c.model
}

// Generate sends the prompt to the backend and returns the text reply
func (c *Client) Generate(ctx context.Context, p Prompt) (string, error) {
	ctx, span := c.tracer.Start(ctx, c.name+"_api_call",
		trace.WithAttributes(attribute.String("llm.model", c.model)),
	)
	defer span.End()

	switch c.name {
	case Ollama:
		return c.callOllama(ctx, p)
	case Anthropic:
		return c.callAnthropic(ctx, p)
	default:
		return c.callOpenAICompatible(ctx, p)
	}
}

// callAnthropic calls the Anthropic messages API
func (c *Client) callAnthropic(ctx context.Context, p Prompt) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	reqBody := AnthropicRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      p.System,
		Temperature: p.Temperature,
		Messages:    []AnthropicMessage{{Role: "user", Content: p.User}},
	}

	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	}

	var apiResp AnthropicResponse
	if err := c.post(ctx, c.baseURL+"/v1/messages", headers, reqBody, &apiResp); err != nil {
		return "", err
	}

	c.recordMetrics(ctx, apiResp.Usage)
	if apiResp.StopReason == "max_tokens" {
		c.logger.Warn("reply truncated at max tokens", "backend", c.name, "max_tokens", c.maxTokens)
	}

	for _, content := range apiResp.Content {
		if content.Type == "text" {
			return content.Text, nil
		}
	}

	return "", fmt.Errorf("empty response from Anthropic")
}

// callOllama calls the Ollama chat API
func (c *Client) callOllama(ctx context.Context, p Prompt) (string, error) {
	reqBody := OllamaRequest{
		Model:    c.model,
		Messages: chatMessages(p),
		Stream:   false,
		Options:  OllamaOptions{Temperature: p.Temperature},
	}

	var apiResp OllamaResponse
	if err := c.post(ctx, c.baseURL+"/api/chat", nil, reqBody, &apiResp); err != nil {
		return "", err
	}

	c.recordMetrics(ctx, map[string]interface{}{
		"prompt_tokens":     float64(apiResp.PromptEvalCount),
		"completion_tokens": float64(apiResp.EvalCount),
	})

	if apiResp.Message.Content == "" {
		return "", fmt.Errorf("empty response from Ollama")
	}
	return apiResp.Message.Content, nil
}

// callOpenAICompatible calls an OpenAI-style chat completions API (OpenAI, Grok)
func (c *Client) callOpenAICompatible(ctx context.Context, p Prompt) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%s not set", backendDefaults[c.name].keyEnv)
	}

	reqBody := OpenAIRequest{
		Model:       c.model,
		Messages:    chatMessages(p),
		Temperature: p.Temperature,
	}

	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var apiResp OpenAIResponse
	if err := c.post(ctx, c.baseURL+"/v1/chat/completions", headers, reqBody, &apiResp); err != nil {
		return "", err
	}

	c.recordMetrics(ctx, apiResp.Usage)

	if len(apiResp.Choices) > 0 {
		if apiResp.Choices[0].FinishReason == "length" {
			c.logger.Warn("reply truncated at max tokens", "backend", c.name)
		}
		return apiResp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("empty response from %s", c.name)
}

// ListOllamaModels fetches the list of available Ollama models
func (c *Client) ListOllamaModels(ctx context.Context) ([]OllamaModel, error) {
	if c.name != Ollama {
		return nil, fmt.Errorf("model listing is only supported for %s, not %s", Ollama, c.name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request (is Ollama running?): %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	var tagsResp OllamaTagsResponse
	if err := json.Unmarshal(body, &tagsResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return tagsResp.Models, nil
}

func (c *Client) post(ctx context.Context, url string, headers map[string]string, in, out interface{}) error {
	start := time.Now()

	jsonData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("content-type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if c.duration != nil {
		c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("llm.backend", c.name)),
		)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	c.logger.Debug("backend call complete", "backend", c.name, "model", c.model, "duration", time.Since(start))
	return nil
}

// recordMetrics records OpenTelemetry metrics from usage data
func (c *Client) recordMetrics(ctx context.Context, usage map[string]interface{}) {
	if usage == nil {
		return
	}

	for key, value := range usage {
		if intVal, ok := value.(float64); ok {
			counter, err := c.meter.Int64Counter(
				fmt.Sprintf("llm.usage.%s", key),
				metric.WithDescription(fmt.Sprintf("LLM usage metric: %s", key)),
			)
			if err != nil {
				c.logger.Warn("failed to create counter", "key", key, "error", err)
				continue
			}
			counter.Add(ctx, int64(intVal))
		}
	}
}

func chatMessages(p Prompt) []map[string]string {
	var messages []map[string]string
	if p.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": p.System})
	}
	return append(messages, map[string]string{"role": "user", "content": p.User})
}
