// Package registry manages the set of configured AI providers: liveness
// status, periodic health checks, and a filtered available view.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rezoom-ai/promptgate/internal/core/aierr"
	"github.com/rezoom-ai/promptgate/internal/core/config"
	"github.com/rezoom-ai/promptgate/internal/infra/llm/provider"
	"github.com/rezoom-ai/promptgate/internal/metrics"
)

// Status is the registry's view of one provider's health. Mutated only
// by the registry's own health-check logic; callers receive copies.
type Status struct {
	Name            string       `json:"name"`
	Available       bool         `json:"available"`
	LastHealthCheck time.Time    `json:"last_health_check"`
	LastError       *aierr.Error `json:"last_error,omitempty"`
}

// Source supplies provider configuration; re-read on Reload.
type Source func() ([]config.ProviderConfig, error)

// Registry holds one entry per configured backend.
type Registry struct {
	source   Source
	factory  Factory
	interval time.Duration
	log      *slog.Logger

	mu        sync.RWMutex
	providers map[string]provider.Provider
	statuses  map[string]*Status

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Registry. Start must be called before use.
func New(source Source, factory Factory, interval time.Duration, log *slog.Logger) *Registry {
	if factory == nil {
		factory = DefaultFactory
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		source:    source,
		factory:   factory,
		interval:  interval,
		log:       log,
		providers: make(map[string]provider.Provider),
		statuses:  make(map[string]*Status),
	}
}

// Start loads all configured providers, health-checks each once, and
// launches the periodic re-check loop for the registry's lifetime.
func (r *Registry) Start(ctx context.Context) error {
	if err := r.load(ctx); err != nil {
		return err
	}
	r.checkAll(ctx)

	loopCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				r.checkAll(loopCtx)
			}
		}
	}()

	return nil
}

// Close cancels the health-check loop and closes all providers.
func (r *Registry) Close() error {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, p := range r.providers {
		if err := p.Close(); err != nil {
			r.log.Warn("failed to close provider", "provider", name, "error", err)
		}
	}
	r.providers = make(map[string]provider.Provider)
	r.statuses = make(map[string]*Status)
	return nil
}

// Get returns the named provider, failing with a classified error when
// it is unknown or currently marked unavailable.
func (r *Registry) Get(name string) (provider.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, aierr.Unavailable(name, fmt.Sprintf("provider %q is not configured", name))
	}
	if status := r.statuses[name]; status != nil && !status.Available {
		return nil, aierr.Unavailable(name, fmt.Sprintf("provider %q is unavailable", name))
	}
	return p, nil
}

// Names returns all registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Statuses returns a copy of every provider's status.
func (r *Registry) Statuses() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.statuses))
	for _, s := range r.statuses {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Status returns one provider's status; ok is false for unknown names.
func (r *Registry) Status(name string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.statuses[name]
	if !ok {
		return Status{}, false
	}
	return *s, true
}

// IsAvailable reports availability; false, not an error, for unknown names.
func (r *Registry) IsAvailable(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.statuses[name]
	return ok && s.Available
}

// Available returns the providers currently marked available.
func (r *Registry) Available() []provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]provider.Provider, 0, len(r.providers))
	for _, name := range r.availableNamesLocked() {
		out = append(out, r.providers[name])
	}
	return out
}

// AvailableNames returns the names of available providers, sorted.
func (r *Registry) AvailableNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.availableNamesLocked()
}

func (r *Registry) availableNamesLocked() []string {
	names := make([]string, 0, len(r.statuses))
	for name, s := range r.statuses {
		if s.Available {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// CheckProviderHealth probes the named provider now. The status record
// is updated whether the probe passes or fails; a probe failure is
// returned, classified, after the update.
func (r *Registry) CheckProviderHealth(ctx context.Context, name string) error {
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()

	if !ok {
		return aierr.Unavailable(name, fmt.Sprintf("provider %q is not configured", name))
	}
	return r.check(ctx, name, p)
}

// Reload re-reads configuration, rebuilds the provider set, and re-runs
// health checks. Providers no longer configured are closed.
func (r *Registry) Reload(ctx context.Context) error {
	r.log.Info("reloading providers")

	r.mu.Lock()
	old := r.providers
	r.providers = make(map[string]provider.Provider)
	r.statuses = make(map[string]*Status)
	r.mu.Unlock()

	for name, p := range old {
		if err := p.Close(); err != nil {
			r.log.Warn("failed to close provider", "provider", name, "error", err)
		}
	}

	if err := r.load(ctx); err != nil {
		return err
	}
	r.checkAll(ctx)
	return nil
}

// load builds providers from configuration. Entries with IsActive=false
// are skipped.
func (r *Registry) load(ctx context.Context) error {
	cfgs, err := r.source()
	if err != nil {
		return fmt.Errorf("failed to read provider configuration: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cfg := range cfgs {
		if !cfg.IsActive {
			continue
		}
		p, err := r.factory(cfg)
		if err != nil {
			return fmt.Errorf("failed to build provider %q: %w", cfg.Name, err)
		}
		r.providers[cfg.Name] = p
		r.statuses[cfg.Name] = &Status{Name: cfg.Name}
	}

	r.log.Info("providers loaded", "count", len(r.providers))
	return nil
}

// checkAll probes every provider concurrently. Failures never escape:
// they are classified and recorded into the status map, because the
// periodic timer has no caller to report to.
func (r *Registry) checkAll(ctx context.Context) {
	r.mu.RLock()
	targets := make(map[string]provider.Provider, len(r.providers))
	for name, p := range r.providers {
		targets[name] = p
	}
	r.mu.RUnlock()

	var g errgroup.Group
	for name, p := range targets {
		g.Go(func() error {
			if err := r.check(ctx, name, p); err != nil {
				r.log.Warn("provider health check failed", "provider", name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	r.mu.RLock()
	metrics.ProvidersAvailable.Set(float64(len(r.availableNamesLocked())))
	r.mu.RUnlock()
}

// check probes one provider and updates its status unconditionally.
func (r *Registry) check(ctx context.Context, name string, p provider.Provider) error {
	probeErr := p.HealthCheck(ctx)

	r.mu.Lock()
	status, ok := r.statuses[name]
	if !ok {
		// Removed by a concurrent reload; nothing to record.
		r.mu.Unlock()
		return probeErr
	}
	status.LastHealthCheck = time.Now()
	if probeErr != nil {
		status.Available = false
		status.LastError = aierr.Classify(probeErr).WithContext(name, "")
	} else {
		status.Available = true
		status.LastError = nil
	}
	r.mu.Unlock()

	if probeErr != nil {
		metrics.HealthChecksTotal.WithLabelValues(name, "failure").Inc()
		return aierr.Classify(probeErr).WithContext(name, "")
	}
	metrics.HealthChecksTotal.WithLabelValues(name, "success").Inc()
	return nil
}
