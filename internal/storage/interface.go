package storage

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrDatabase      = errors.New("database error")
)

// AuditRecord is one committed registry change
type AuditRecord struct {
	ID             string    `json:"id" bson:"_id"`
	Event          string    `json:"event" bson:"event"`
	Alias          string    `json:"alias,omitempty" bson:"alias,omitempty"`
	ContextPath    string    `json:"context_path" bson:"context_path"`
	Owner          string    `json:"owner,omitempty" bson:"owner,omitempty"`
	Kind           string    `json:"kind,omitempty" bson:"kind,omitempty"`
	RegistrationID string    `json:"registration_id,omitempty" bson:"registration_id,omitempty"`
	Time           time.Time `json:"time" bson:"time"`
}

// AuditFilter narrows List results. Zero fields match everything.
type AuditFilter struct {
	Owner string
	Alias string
	Event string
	Since time.Time
	// Limit caps the result size, 0 means DefaultAuditLimit
	Limit int
}

// DefaultAuditLimit is the List page size when none is given
const DefaultAuditLimit = 100

// EffectiveLimit returns the limit List applies
func (f AuditFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultAuditLimit
	}
	return f.Limit
}

// Matches reports whether rec passes the filter
func (f AuditFilter) Matches(rec *AuditRecord) bool {
	if f.Owner != "" && rec.Owner != f.Owner {
		return false
	}
	if f.Alias != "" && rec.Alias != f.Alias {
		return false
	}
	if f.Event != "" && rec.Event != f.Event {
		return false
	}
	if !f.Since.IsZero() && rec.Time.Before(f.Since) {
		return false
	}
	return true
}

// AuditStore defines the interface for the registration audit trail
type AuditStore interface {
	// Append stores a new record. ID must be set and unique.
	Append(ctx context.Context, rec *AuditRecord) error

	// GetByID retrieves a record by ID
	GetByID(ctx context.Context, id string) (*AuditRecord, error)

	// List returns matching records, newest first
	List(ctx context.Context, filter AuditFilter) ([]*AuditRecord, error)

	// DeleteBefore removes records older than t and returns how many went
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
}

// Store aggregates all storage interfaces
type Store interface {
	Audit() AuditStore

	// Close closes the storage connection
	Close() error

	// Ping checks if the storage is alive
	Ping(ctx context.Context) error
}
