// Package registry holds named source crawl configurations.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dangvonguyen/research-agent/internal/crawler"
)

// Registry is a concurrency-safe store of SourceConfig records keyed by name.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]crawler.SourceConfig
	clock   crawler.Clock
}

// New constructs an empty Registry.
func New(clock crawler.Clock) *Registry {
	return &Registry{
		configs: make(map[string]crawler.SourceConfig),
		clock:   clock,
	}
}

// Seed loads initial configs, typically from the config file at startup.
// Existing entries with the same name are replaced.
func (r *Registry) Seed(configs []crawler.SourceConfig) error {
	for _, cfg := range configs {
		if err := validate(cfg); err != nil {
			return fmt.Errorf("seed config %q: %w", cfg.Name, err)
		}
	}
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cfg := range configs {
		cfg.CreatedAt = now
		cfg.UpdatedAt = now
		r.configs[cfg.Name] = cfg
	}
	return nil
}

// Resolve returns the config registered under name with zero-value knobs
// filled in, so jobs always run with a rate limit, retry policy, and
// wall-clock ceiling.
func (r *Registry) Resolve(name string) (crawler.SourceConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	if !ok {
		return crawler.SourceConfig{}, fmt.Errorf("%w: %s", crawler.ErrConfigNotFound, name)
	}
	return Defaults(cfg), nil
}

// Create registers a new config. The name must be unused.
func (r *Registry) Create(cfg crawler.SourceConfig) (crawler.SourceConfig, error) {
	if err := validate(cfg); err != nil {
		return crawler.SourceConfig{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.configs[cfg.Name]; exists {
		return crawler.SourceConfig{}, fmt.Errorf("%w: config %q already exists", crawler.ErrInvalidRequest, cfg.Name)
	}
	now := r.clock.Now()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	r.configs[cfg.Name] = cfg
	return cfg, nil
}

// Update applies fn to the named config under the registry lock.
func (r *Registry) Update(name string, fn func(*crawler.SourceConfig)) (crawler.SourceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[name]
	if !ok {
		return crawler.SourceConfig{}, fmt.Errorf("%w: %s", crawler.ErrConfigNotFound, name)
	}
	fn(&cfg)
	cfg.Name = name
	if err := validate(cfg); err != nil {
		return crawler.SourceConfig{}, err
	}
	cfg.UpdatedAt = r.clock.Now()
	r.configs[name] = cfg
	return cfg, nil
}

// Delete removes the named config.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[name]; !ok {
		return fmt.Errorf("%w: %s", crawler.ErrConfigNotFound, name)
	}
	delete(r.configs, name)
	return nil
}

// List returns all configs sorted by name.
func (r *Registry) List() []crawler.SourceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]crawler.SourceConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func validate(cfg crawler.SourceConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: config name is required", crawler.ErrInvalidRequest)
	}
	switch cfg.Source {
	case crawler.SourceACLAnthology, crawler.SourceArxiv, crawler.SourceGenericPDF:
	default:
		return fmt.Errorf("%w: unknown source %q", crawler.ErrInvalidRequest, cfg.Source)
	}
	if cfg.RateLimit < 0 {
		return fmt.Errorf("%w: rate_limit must be >= 0", crawler.ErrInvalidRequest)
	}
	if cfg.MaxAttempts < 0 {
		return fmt.Errorf("%w: max_attempts must be >= 0", crawler.ErrInvalidRequest)
	}
	if cfg.MaxConcurrent < 0 {
		return fmt.Errorf("%w: max_concurrent must be >= 0", crawler.ErrInvalidRequest)
	}
	if cfg.BackoffBase < 0 || cfg.BackoffMax < 0 {
		return fmt.Errorf("%w: backoff durations must be >= 0", crawler.ErrInvalidRequest)
	}
	if cfg.JobTimeout < 0 || cfg.FetchTimeout < 0 {
		return fmt.Errorf("%w: timeouts must be >= 0", crawler.ErrInvalidRequest)
	}
	return nil
}

var _ crawler.Registry = (*Registry)(nil)

// Defaults fills zero-value knobs on a resolved config so callers never see
// unusable settings.
func Defaults(cfg crawler.SourceConfig) crawler.SourceConfig {
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}
	if cfg.Burst == 0 {
		cfg.Burst = 1
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = crawler.DefaultMaxAttempts
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = crawler.DefaultBackoffBase
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = crawler.DefaultBackoffMax
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.JobTimeout == 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = 4
	}
	return cfg
}
