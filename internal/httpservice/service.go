package httpservice

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"

	"go.uber.org/zap"
)

// Service is the registration API handed to one caller. Every alias it
// registers is owned by that caller and withdrawn by Stop.
type Service struct {
	registry *Registry
	owner    string
	fsys     fs.FS
	logger   *zap.Logger
}

// NewService returns the service for owner. fsys backs the resources of
// HTTP contexts created by CreateDefaultHTTPContext.
func NewService(registry *Registry, owner string, fsys fs.FS, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry: registry,
		owner:    owner,
		fsys:     fsys,
		logger:   logger.With(zap.String("owner", owner)),
	}
}

func (s *Service) Owner() string { return s.owner }

// CreateDefaultHTTPContext returns a new context that admits every request
// and serves resources from the caller's file system.
func (s *Service) CreateDefaultHTTPContext() HTTPContext {
	return NewDefaultHTTPContext(s.fsys)
}

// RegisterServlet routes alias to handler. A nil hc uses a fresh default
// context.
func (s *Service) RegisterServlet(ctx context.Context, alias string, handler http.Handler, initParams map[string]string, hc HTTPContext) (*Registration, error) {
	if hc == nil {
		hc = s.CreateDefaultHTTPContext()
	}
	return s.registry.Register(ctx, s.owner, alias, handler, initParams, securityOf(hc),
		WithMimeResolver(mimeOf(hc)))
}

// RegisterResources routes alias to the resources hc exposes under name.
func (s *Service) RegisterResources(ctx context.Context, alias, name string, hc HTTPContext) (*Registration, error) {
	if hc == nil {
		hc = s.CreateDefaultHTTPContext()
	}
	handler, err := NewResourceHandler(name, hc)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to wrap resource %s: %w", ErrNamespace, name, err)
	}
	return s.registry.Register(ctx, s.owner, alias, handler, nil, securityOf(hc),
		AsKind(KindResource), WithMimeResolver(mimeOf(hc)))
}

// Unregister withdraws an alias previously registered through this service.
func (s *Service) Unregister(ctx context.Context, alias string) error {
	return s.registry.Unregister(ctx, s.owner, alias)
}

// Stop withdraws every alias of the caller.
func (s *Service) Stop(ctx context.Context) error {
	if err := s.registry.UnregisterAll(ctx, s.owner); err != nil {
		s.logger.Error("Failed to release registrations", zap.Error(err))
		return err
	}
	return nil
}
