package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/sirosfoundation/go-httpservice/internal/httpservice"
	"github.com/sirosfoundation/go-httpservice/pkg/config"
	"github.com/sirosfoundation/go-httpservice/pkg/httpcontext"
)

// registerResources publishes each configured directory under its alias,
// on behalf of its owner.
func registerResources(ctx context.Context, factory *httpservice.Factory, resources []config.ResourceConfig, base string, logger *zap.Logger) error {
	for _, rc := range resources {
		dir := rc.AbsDir(base)
		svc := factory.Get(rc.Owner, os.DirFS(dir))

		hc, err := resourceContext(svc.CreateDefaultHTTPContext(), rc.Auth)
		if err != nil {
			return fmt.Errorf("resource %s: %w", rc.Alias, err)
		}

		if _, err := svc.RegisterResources(ctx, rc.Alias, rc.Name, hc); err != nil {
			return fmt.Errorf("resource %s: %w", rc.Alias, err)
		}
		logger.Info("Registered static resources",
			zap.String("alias", rc.Alias),
			zap.String("dir", dir),
			zap.String("owner", rc.Owner),
			zap.String("auth", rc.Auth.Type))
	}
	return nil
}

func resourceContext(base httpservice.HTTPContext, auth config.ResourceAuthConfig) (httpservice.HTTPContext, error) {
	switch auth.Type {
	case "", "none":
		return base, nil
	case "basic":
		return httpcontext.NewBasicAuth(base, auth.Realm, auth.Users), nil
	case "bearer":
		return httpcontext.NewBearer(base, auth.Secret, auth.Issuer), nil
	default:
		return nil, fmt.Errorf("unsupported auth type %q", auth.Type)
	}
}
