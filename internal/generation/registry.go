package generation

import (
	"context"
	"fmt"
	"sync"

	"github.com/prenwyn/deckgen/internal/config"
)

// TextFactory constructs a text provider from a configuration snapshot.
type TextFactory func(ctx context.Context, cfg config.ProvidersConfig) (TextGenerator, error)

// ImageFactory constructs an image provider from a configuration snapshot.
type ImageFactory func(ctx context.Context, cfg config.ProvidersConfig) (ImageGenerator, error)

// Registry resolves the active provider for a capability from a
// configuration snapshot at call time. Implementations register
// themselves under the name configuration refers to them by, so
// settings may change between two submissions without a restart.
//
// Resolution happens once per job submission, not per work item, to
// keep every item in a batch on the same provider even if the
// configuration changes mid-batch.
type Registry struct {
	mu    sync.RWMutex
	text  map[string]TextFactory
	image map[string]ImageFactory
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		text:  make(map[string]TextFactory),
		image: make(map[string]ImageFactory),
	}
}

// RegisterText registers a text provider factory under the given name.
func (r *Registry) RegisterText(name string, factory TextFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text[name] = factory
}

// RegisterImage registers an image provider factory under the given name.
func (r *Registry) RegisterImage(name string, factory ImageFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.image[name] = factory
}

// ResolveText returns the text provider the snapshot selects.
// It fails with a configuration error when no provider is configured,
// the name is not registered, or the provider reports itself
// unavailable.
func (r *Registry) ResolveText(ctx context.Context, cfg config.ProvidersConfig) (TextGenerator, error) {
	name := cfg.Text
	if name == "" {
		return nil, fmt.Errorf("%w: no text provider selected", ErrNoProvider)
	}

	r.mu.RLock()
	factory, ok := r.text[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q has no registered text implementation", ErrUnknownProvider, name)
	}

	gen, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to construct text provider %q: %w", name, err)
	}

	if !gen.IsAvailable() {
		return nil, fmt.Errorf("%w: %q is missing required configuration", ErrProviderUnavailable, name)
	}

	return gen, nil
}

// ResolveImage returns the image provider the snapshot selects, with
// the same failure semantics as ResolveText.
func (r *Registry) ResolveImage(ctx context.Context, cfg config.ProvidersConfig) (ImageGenerator, error) {
	name := cfg.Image
	if name == "" {
		return nil, fmt.Errorf("%w: no image provider selected", ErrNoProvider)
	}

	r.mu.RLock()
	factory, ok := r.image[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q has no registered image implementation", ErrUnknownProvider, name)
	}

	gen, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to construct image provider %q: %w", name, err)
	}

	if !gen.IsAvailable() {
		return nil, fmt.Errorf("%w: %q is missing required configuration", ErrProviderUnavailable, name)
	}

	return gen, nil
}
