package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirosfoundation/go-httpservice/internal/storage"
)

func record(id, event, alias, owner string, at time.Time) *storage.AuditRecord {
	return &storage.AuditRecord{
		ID:          id,
		Event:       event,
		Alias:       alias,
		ContextPath: alias,
		Owner:       owner,
		Time:        at,
	}
}

func TestNewStore(t *testing.T) {
	store := NewStore(0)

	if store == nil {
		t.Fatal("NewStore() returned nil")
	}
	if store.Audit() == nil {
		t.Fatal("Audit() returned nil")
	}
	if store.audit.max != DefaultMaxRecords {
		t.Errorf("max = %d, want %d", store.audit.max, DefaultMaxRecords)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestAuditStore_Append(t *testing.T) {
	ctx := context.Background()
	audit := NewStore(10).Audit()

	rec := record("r1", "registered", "/a", "one", time.Now())
	if err := audit.Append(ctx, rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := audit.Append(ctx, rec); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Errorf("Append() duplicate error = %v, want ErrAlreadyExists", err)
	}
	if err := audit.Append(ctx, &storage.AuditRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Append() empty ID error = %v, want ErrInvalidInput", err)
	}
	if err := audit.Append(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Append(nil) error = %v, want ErrInvalidInput", err)
	}
}

func TestAuditStore_AppendStampsTime(t *testing.T) {
	ctx := context.Background()
	audit := NewStore(10).Audit()

	if err := audit.Append(ctx, &storage.AuditRecord{ID: "r1", Event: "registered"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	got, err := audit.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Time.IsZero() {
		t.Error("Append() did not set Time")
	}
}

func TestAuditStore_GetByIDReturnsCopy(t *testing.T) {
	ctx := context.Background()
	audit := NewStore(10).Audit()
	_ = audit.Append(ctx, record("r1", "registered", "/a", "one", time.Now()))

	got, _ := audit.GetByID(ctx, "r1")
	got.Alias = "/changed"

	again, _ := audit.GetByID(ctx, "r1")
	if again.Alias != "/a" {
		t.Errorf("stored record mutated through returned copy: %q", again.Alias)
	}

	if _, err := audit.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetByID() missing error = %v, want ErrNotFound", err)
	}
}

func TestAuditStore_List(t *testing.T) {
	ctx := context.Background()
	audit := NewStore(10).Audit()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_ = audit.Append(ctx, record("a", "registered", "/a", "one", base))
	_ = audit.Append(ctx, record("b", "registered", "/b", "two", base.Add(time.Minute)))
	_ = audit.Append(ctx, record("c", "unregistered", "/a", "one", base.Add(2*time.Minute)))

	tests := []struct {
		name   string
		filter storage.AuditFilter
		want   []string
	}{
		{"all newest first", storage.AuditFilter{}, []string{"c", "b", "a"}},
		{"by owner", storage.AuditFilter{Owner: "one"}, []string{"c", "a"}},
		{"by alias", storage.AuditFilter{Alias: "/b"}, []string{"b"}},
		{"by event", storage.AuditFilter{Event: "unregistered"}, []string{"c"}},
		{"since", storage.AuditFilter{Since: base.Add(time.Minute)}, []string{"c", "b"}},
		{"limit", storage.AuditFilter{Limit: 2}, []string{"c", "b"}},
		{"no match", storage.AuditFilter{Owner: "nobody"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := audit.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			var ids []string
			for _, rec := range got {
				ids = append(ids, rec.ID)
			}
			if fmt.Sprint(ids) != fmt.Sprint(tt.want) {
				t.Errorf("List() = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestAuditStore_Eviction(t *testing.T) {
	ctx := context.Background()
	store := NewStore(3)
	base := time.Now()

	for i := 0; i < 5; i++ {
		_ = store.Audit().Append(ctx, record(fmt.Sprintf("r%d", i), "registered", "/a", "one", base.Add(time.Duration(i)*time.Second)))
	}

	got, _ := store.Audit().List(ctx, storage.AuditFilter{})
	if len(got) != 3 {
		t.Fatalf("List() len = %d, want 3", len(got))
	}
	if got[2].ID != "r2" {
		t.Errorf("oldest kept = %s, want r2", got[2].ID)
	}
	if _, err := store.Audit().GetByID(ctx, "r0"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("evicted record still retrievable: %v", err)
	}
}

func TestAuditStore_DeleteBefore(t *testing.T) {
	ctx := context.Background()
	audit := NewStore(10).Audit()
	base := time.Now()

	_ = audit.Append(ctx, record("old", "registered", "/a", "one", base.Add(-48*time.Hour)))
	_ = audit.Append(ctx, record("new", "registered", "/b", "one", base))

	removed, err := audit.DeleteBefore(ctx, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("DeleteBefore() removed = %d, want 1", removed)
	}
	if _, err := audit.GetByID(ctx, "old"); !errors.Is(err, storage.ErrNotFound) {
		t.Error("old record still present")
	}
	if _, err := audit.GetByID(ctx, "new"); err != nil {
		t.Errorf("new record missing: %v", err)
	}
}

func TestAuditStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	audit := NewStore(1000).Audit()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = audit.Append(ctx, record(fmt.Sprintf("r%d", i), "registered", "/a", "one", time.Now()))
			_, _ = audit.List(ctx, storage.AuditFilter{Limit: 5})
		}(i)
	}
	wg.Wait()

	got, _ := audit.List(ctx, storage.AuditFilter{Limit: 100})
	if len(got) != 50 {
		t.Errorf("List() len = %d, want 50", len(got))
	}
}
