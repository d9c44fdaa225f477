package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rezoom-ai/promptgate/internal/core/aierr"
	"github.com/rezoom-ai/promptgate/internal/metrics"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions API.
type OpenAIProvider struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAI creates a provider for an OpenAI-compatible endpoint. The
// timeout is the per-request wall clock; retries are layered on by the
// caller, not here.
func NewOpenAI(name, baseURL, apiKey string, timeout time.Duration) *OpenAIProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Call performs a single chat completion.
func (p *OpenAIProvider) Call(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	body, err := p.post(ctx, "/chat/completions", openAIChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(p.name, "error").Inc()
		return nil, err
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(p.name, "error").Inc()
		return nil, p.classify(fmt.Errorf("parse response: %w", err), req.Model)
	}
	if parsed.Error != nil {
		metrics.ProviderCallsTotal.WithLabelValues(p.name, "error").Inc()
		return nil, p.classify(fmt.Errorf("api error: %s", parsed.Error.Message), req.Model)
	}
	if len(parsed.Choices) == 0 {
		metrics.ProviderCallsTotal.WithLabelValues(p.name, "error").Inc()
		return nil, p.classify(fmt.Errorf("invalid response: no choices"), req.Model)
	}

	metrics.ProviderCallsTotal.WithLabelValues(p.name, "success").Inc()
	metrics.ProviderCallLatency.WithLabelValues(p.name).Observe(time.Since(start).Seconds())

	return &ChatResponse{
		Content:    parsed.Choices[0].Message.Content,
		Model:      parsed.Model,
		Provider:   p.name,
		TokensUsed: parsed.Usage.TotalTokens,
		CreatedAt:  time.Now(),
	}, nil
}

// Stream performs a chat completion delivered as server-sent events.
func (p *OpenAIProvider) Stream(ctx context.Context, req ChatRequest) (<-chan Chunk, error) {
	resp, err := p.send(ctx, "/chat/completions", openAIChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				break
			}

			var parsed openAIChatResponse
			if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
				continue
			}
			if len(parsed.Choices) == 0 {
				continue
			}
			select {
			case out <- Chunk{Content: parsed.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}

		select {
		case out <- Chunk{Done: true}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}

// HealthCheck probes the models endpoint.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.get(ctx, "/models")
	return err
}

// ListModels returns the model names the endpoint serves.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]string, error) {
	body, err := p.get(ctx, "/models")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, p.classify(fmt.Errorf("parse models response: %w", err), "")
	}

	names := make([]string, len(parsed.Data))
	for i, m := range parsed.Data {
		names[i] = m.ID
	}
	return names, nil
}

// ModelInfo returns details for a single model.
func (p *OpenAIProvider) ModelInfo(ctx context.Context, name string) (*ModelInfo, error) {
	body, err := p.get(ctx, "/models/"+name)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ID      string `json:"id"`
		OwnedBy string `json:"owned_by"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, p.classify(fmt.Errorf("parse model response: %w", err), name)
	}

	return &ModelInfo{Name: parsed.ID, Provider: p.name, OwnedBy: parsed.OwnedBy}, nil
}

func (p *OpenAIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *OpenAIProvider) post(ctx context.Context, path string, payload any) ([]byte, error) {
	resp, err := p.send(ctx, path, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (p *OpenAIProvider) send(ctx context.Context, path string, payload any) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, p.classify(fmt.Errorf("marshal request: %w", err), "")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, p.classify(fmt.Errorf("create request: %w", err), "")
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, p.classify(fmt.Errorf("provider call: %w", err), "")
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, p.statusError(resp.StatusCode, string(body))
	}
	return resp, nil
}

func (p *OpenAIProvider) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, p.classify(fmt.Errorf("create request: %w", err), "")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, p.classify(fmt.Errorf("provider call: %w", err), "")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, p.classify(fmt.Errorf("read response: %w", err), "")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, p.statusError(resp.StatusCode, string(body))
	}
	return body, nil
}

// statusError maps a non-200 response to a classified error. The status
// code text feeds the classifier's substring rules.
func (p *OpenAIProvider) statusError(statusCode int, body string) *aierr.Error {
	cause := fmt.Errorf("%d %s: %s", statusCode, http.StatusText(statusCode), truncate(body, 200))
	return p.classify(cause, "")
}

func (p *OpenAIProvider) classify(cause error, model string) *aierr.Error {
	err := aierr.Classify(cause).WithContext(p.name, model)
	metrics.ProviderErrorsTotal.WithLabelValues(p.name, string(err.Code)).Inc()
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
