package extractor

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
)

var ErrNoExtractor = errors.New("no extractor registered for platform")

// Factory builds a variant. It runs at most once per registry.
type Factory func() Variant

// Registry maps platforms to extractors, building each one on first use.
type Registry struct {
	mu        sync.Mutex
	factories map[domain.Platform]Factory
	instances map[domain.Platform]*Extractor
	timeouts  Timeouts
	logger    logger.Logger
}

func NewRegistry(timeouts Timeouts, log logger.Logger) *Registry {
	return &Registry{
		factories: make(map[domain.Platform]Factory),
		instances: make(map[domain.Platform]*Extractor),
		timeouts:  timeouts,
		logger:    log,
	}
}

func (r *Registry) Register(p domain.Platform, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[p] = f
	delete(r.instances, p)
}

// Resolve returns the extractor for p, constructing it the first time.
func (r *Registry) Resolve(p domain.Platform) (*Extractor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ext, ok := r.instances[p]; ok {
		return ext, nil
	}

	factory, ok := r.factories[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoExtractor, p)
	}

	ext := New(factory(), r.timeouts, r.logger)
	r.instances[p] = ext
	r.logger.Debug("Extractor initialized", "platform", p)
	return ext, nil
}

// Platforms lists registered platforms in name order.
func (r *Registry) Platforms() []domain.Platform {
	r.mu.Lock()
	defer r.mu.Unlock()

	platforms := make([]domain.Platform, 0, len(r.factories))
	for p := range r.factories {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}
