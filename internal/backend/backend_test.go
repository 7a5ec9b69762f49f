package backend

import (
	"context"
	"testing"
	"time"

	"github.com/sirosfoundation/go-httpservice/pkg/config"
)

func TestNew_MemoryBackend(t *testing.T) {
	cfg := &config.Config{
		Audit: config.AuditConfig{
			Type: "memory",
		},
	}

	backend, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = backend.Close() }()

	if backend.Audit() == nil {
		t.Error("expected Audit() to return non-nil store")
	}
	if err := backend.Ping(context.Background()); err != nil {
		t.Errorf("expected Ping() to succeed, got %v", err)
	}
}

func TestNew_DefaultToMemory(t *testing.T) {
	cfg := &config.Config{
		Audit: config.AuditConfig{
			Type: "", // Empty should default to memory
		},
	}

	backend, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("expected no error for empty type, got %v", err)
	}
	defer func() { _ = backend.Close() }()

	if backend.Audit() == nil {
		t.Error("expected Audit() to return non-nil store")
	}
}

func TestNew_UnsupportedType(t *testing.T) {
	cfg := &config.Config{
		Audit: config.AuditConfig{
			Type: "unsupported",
		},
	}

	_, err := New(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for unsupported storage type")
	}
}

func TestNew_MongoDBWithInvalidURI(t *testing.T) {
	cfg := &config.Config{
		Audit: config.AuditConfig{
			Type: "mongodb",
			MongoDB: config.MongoDBConfig{
				URI:      "mongodb://invalid-host-that-does-not-exist:27017",
				Database: "test",
				Timeout:  1, // Short timeout for faster test failure
			},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := New(ctx, cfg)
	if err == nil {
		t.Fatal("expected error for invalid MongoDB URI")
	}
}

func TestMemoryBackend_Close(t *testing.T) {
	cfg := &config.Config{
		Audit: config.AuditConfig{
			Type: "memory",
		},
	}

	backend, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := backend.Close(); err != nil {
		t.Errorf("expected no error on Close(), got %v", err)
	}
}
