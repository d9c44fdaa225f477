package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rezoom-ai/promptgate/internal/core/aierr"
	"github.com/rezoom-ai/promptgate/internal/core/config"
	"github.com/rezoom-ai/promptgate/internal/infra/llm/provider"
)

// fakeProvider implements provider.Provider with a switchable health result.
type fakeProvider struct {
	name string

	mu        sync.Mutex
	healthErr error
	closed    bool
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Call(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	return &provider.ChatResponse{Content: "ok"}, nil
}

func (f *fakeProvider) Stream(ctx context.Context, req provider.ChatRequest) (<-chan provider.Chunk, error) {
	ch := make(chan provider.Chunk)
	close(ch)
	return ch, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthErr
}

func (f *fakeProvider) setHealth(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthErr = err
}

func (f *fakeProvider) ListModels(ctx context.Context) ([]string, error) { return nil, nil }

func (f *fakeProvider) ModelInfo(ctx context.Context, model string) (*provider.ModelInfo, error) {
	return nil, nil
}

func (f *fakeProvider) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func fixedSource(cfgs ...config.ProviderConfig) Source {
	return func() ([]config.ProviderConfig, error) { return cfgs, nil }
}

func fakeFactory(providers map[string]*fakeProvider) Factory {
	return func(cfg config.ProviderConfig) (provider.Provider, error) {
		p := &fakeProvider{name: cfg.Name}
		providers[cfg.Name] = p
		return p, nil
	}
}

func startRegistry(t *testing.T, cfgs ...config.ProviderConfig) (*Registry, map[string]*fakeProvider) {
	t.Helper()

	providers := make(map[string]*fakeProvider)
	r := New(fixedSource(cfgs...), fakeFactory(providers), time.Hour, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start registry: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r, providers
}

func TestGetAvailableProvider(t *testing.T) {
	r, _ := startRegistry(t,
		config.ProviderConfig{Name: "openai", IsActive: true},
		config.ProviderConfig{Name: "ollama", IsActive: true},
	)

	p, err := r.Get("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("Name() = %q, want %q", p.Name(), "openai")
	}
}

func TestGetUnknownProvider(t *testing.T) {
	r, _ := startRegistry(t, config.ProviderConfig{Name: "openai", IsActive: true})

	_, err := r.Get("missing")
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	var aiErr *aierr.Error
	if !errors.As(err, &aiErr) {
		t.Fatalf("error %v is not classified", err)
	}
	if aiErr.Code != aierr.CodeProviderUnavailable {
		t.Errorf("code = %s, want %s", aiErr.Code, aierr.CodeProviderUnavailable)
	}
}

func TestGetUnavailableProvider(t *testing.T) {
	r, providers := startRegistry(t, config.ProviderConfig{Name: "openai", IsActive: true})

	providers["openai"].setHealth(errors.New("connection refused"))
	if err := r.CheckProviderHealth(context.Background(), "openai"); err == nil {
		t.Fatal("expected health check to fail")
	}

	if _, err := r.Get("openai"); err == nil {
		t.Error("Get succeeded for unavailable provider")
	}
	if r.IsAvailable("openai") {
		t.Error("IsAvailable = true after failed health check")
	}
}

func TestInactiveProviderSkipped(t *testing.T) {
	r, _ := startRegistry(t,
		config.ProviderConfig{Name: "openai", IsActive: true},
		config.ProviderConfig{Name: "disabled", IsActive: false},
	)

	names := r.Names()
	if len(names) != 1 || names[0] != "openai" {
		t.Errorf("Names() = %v, want [openai]", names)
	}
}

func TestHealthCheckRecovery(t *testing.T) {
	r, providers := startRegistry(t, config.ProviderConfig{Name: "openai", IsActive: true})

	providers["openai"].setHealth(errors.New("timeout"))
	r.CheckProviderHealth(context.Background(), "openai")

	status, ok := r.Status("openai")
	if !ok {
		t.Fatal("status missing")
	}
	if status.Available {
		t.Error("available after failed check")
	}
	if status.LastError == nil || status.LastError.Code != aierr.CodeTimeout {
		t.Errorf("LastError = %v, want TIMEOUT", status.LastError)
	}

	providers["openai"].setHealth(nil)
	if err := r.CheckProviderHealth(context.Background(), "openai"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status, _ = r.Status("openai")
	if !status.Available {
		t.Error("not available after passing check")
	}
	if status.LastError != nil {
		t.Errorf("LastError = %v, want nil after recovery", status.LastError)
	}
}

func TestAvailableView(t *testing.T) {
	r, providers := startRegistry(t,
		config.ProviderConfig{Name: "a", IsActive: true},
		config.ProviderConfig{Name: "b", IsActive: true},
	)

	providers["b"].setHealth(errors.New("rate limit exceeded"))
	r.CheckProviderHealth(context.Background(), "b")

	names := r.AvailableNames()
	if len(names) != 1 || names[0] != "a" {
		t.Errorf("AvailableNames() = %v, want [a]", names)
	}
	if got := len(r.Available()); got != 1 {
		t.Errorf("len(Available()) = %d, want 1", got)
	}
}

func TestReloadClosesRemovedProviders(t *testing.T) {
	providers := make(map[string]*fakeProvider)

	cfgs := []config.ProviderConfig{
		{Name: "old", IsActive: true},
	}
	source := func() ([]config.ProviderConfig, error) { return cfgs, nil }

	r := New(source, fakeFactory(providers), time.Hour, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start registry: %v", err)
	}
	defer r.Close()

	old := providers["old"]
	cfgs = []config.ProviderConfig{{Name: "new", IsActive: true}}

	if err := r.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	old.mu.Lock()
	closed := old.closed
	old.mu.Unlock()
	if !closed {
		t.Error("removed provider was not closed")
	}

	names := r.Names()
	if len(names) != 1 || names[0] != "new" {
		t.Errorf("Names() after reload = %v, want [new]", names)
	}
}
