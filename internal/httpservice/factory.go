package httpservice

import (
	"context"
	"errors"
	"io/fs"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Factory hands out one Service per caller and releases a caller's
// registrations when it goes away.
type Factory struct {
	registry *Registry
	logger   *zap.Logger

	mu       sync.Mutex
	services map[string]*Service
}

func NewFactory(registry *Registry, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		registry: registry,
		logger:   logger.Named("factory"),
		services: make(map[string]*Service),
	}
}

// Get returns the service of owner, creating it on first use. fsys is only
// consulted on creation.
func (f *Factory) Get(owner string, fsys fs.FS) *Service {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := f.services[owner]; ok {
		return s
	}
	s := NewService(f.registry, owner, fsys, f.logger)
	f.services[owner] = s
	f.logger.Debug("Created service", zap.String("owner", owner))
	return s
}

// Release stops the service of owner and forgets it. Registrations made
// directly on the registry under owner are withdrawn too.
func (f *Factory) Release(ctx context.Context, owner string) error {
	f.mu.Lock()
	s, ok := f.services[owner]
	delete(f.services, owner)
	f.mu.Unlock()

	if !ok {
		s = NewService(f.registry, owner, nil, f.logger)
	}
	return s.Stop(ctx)
}

// ReleaseAll releases every known caller.
func (f *Factory) ReleaseAll(ctx context.Context) error {
	var errs []error
	for _, owner := range f.Owners() {
		if err := f.Release(ctx, owner); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Owners returns the callers holding a service, sorted.
func (f *Factory) Owners() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.services))
	for owner := range f.services {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out
}
