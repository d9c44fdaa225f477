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

// OllamaProvider talks to a local Ollama server.
type OllamaProvider struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// NewOllama creates a provider targeting the given Ollama base URL.
func NewOllama(name, baseURL string, timeout time.Duration) *OllamaProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *OllamaProvider) Name() string {
	return p.name
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done      bool   `json:"done"`
	EvalCount int    `json:"eval_count"`
	Error     string `json:"error"`
}

// Call performs a single chat request.
func (p *OllamaProvider) Call(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	chatReq := ollamaChatRequest{Model: req.Model, Messages: req.Messages}
	if req.Temperature > 0 {
		chatReq.Options = map[string]any{"temperature": req.Temperature}
	}

	resp, err := p.send(ctx, chatReq)
	if err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(p.name, "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(p.name, "error").Inc()
		return nil, p.classify(fmt.Errorf("parse response: %w", err), req.Model)
	}
	if parsed.Error != "" {
		metrics.ProviderCallsTotal.WithLabelValues(p.name, "error").Inc()
		return nil, p.classify(fmt.Errorf("ollama error: %s", parsed.Error), req.Model)
	}

	metrics.ProviderCallsTotal.WithLabelValues(p.name, "success").Inc()
	metrics.ProviderCallLatency.WithLabelValues(p.name).Observe(time.Since(start).Seconds())

	return &ChatResponse{
		Content:    parsed.Message.Content,
		Model:      parsed.Model,
		Provider:   p.name,
		TokensUsed: parsed.EvalCount,
		CreatedAt:  time.Now(),
	}, nil
}

// Stream performs a chat request, reading the newline-delimited JSON
// stream Ollama produces.
func (p *OllamaProvider) Stream(ctx context.Context, req ChatRequest) (<-chan Chunk, error) {
	resp, err := p.send(ctx, ollamaChatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   true,
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
			var parsed ollamaChatResponse
			if err := json.Unmarshal(scanner.Bytes(), &parsed); err != nil {
				continue
			}
			select {
			case out <- Chunk{Content: parsed.Message.Content, Done: parsed.Done}:
			case <-ctx.Done():
				return
			}
			if parsed.Done {
				return
			}
		}
	}()

	return out, nil
}

// HealthCheck probes GET /api/tags, which a running Ollama always serves.
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return p.classify(fmt.Errorf("create request: %w", err), "")
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return p.classify(fmt.Errorf("health probe: %w", err), "")
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return p.classify(fmt.Errorf("health probe: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)), "")
	}
	return nil
}

// ListModels returns the names of all locally available models.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, p.classify(fmt.Errorf("create request: %w", err), "")
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, p.classify(fmt.Errorf("requesting model list: %w", err), "")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.classify(fmt.Errorf("unexpected status %d", resp.StatusCode), "")
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, p.classify(fmt.Errorf("decoding response: %w", err), "")
	}

	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// ModelInfo reports whether the named model is present locally.
// Ollama may return "phi3.5:latest" for a model requested as "phi3.5",
// so names match with or without the tag suffix.
func (p *OllamaProvider) ModelInfo(ctx context.Context, name string) (*ModelInfo, error) {
	models, err := p.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range models {
		if m == name || strings.HasPrefix(m, name+":") {
			return &ModelInfo{Name: m, Provider: p.name, OwnedBy: "local"}, nil
		}
	}
	return nil, p.classify(fmt.Errorf("model not found: %s", name), name)
}

func (p *OllamaProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *OllamaProvider) send(ctx context.Context, payload ollamaChatRequest) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, p.classify(fmt.Errorf("marshal request: %w", err), payload.Model)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, p.classify(fmt.Errorf("create request: %w", err), payload.Model)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, p.classify(fmt.Errorf("provider call: %w", err), payload.Model)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cause := fmt.Errorf("%d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), truncate(string(body), 200))
		return nil, p.classify(cause, payload.Model)
	}
	return resp, nil
}

func (p *OllamaProvider) classify(cause error, model string) *aierr.Error {
	err := aierr.Classify(cause).WithContext(p.name, model)
	metrics.ProviderErrorsTotal.WithLabelValues(p.name, string(err.Code)).Inc()
	return err
}
