package agentstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"docroute/internal/domain"
	"docroute/internal/infra/config"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "data", "agents.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SeedAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	defs := []domain.AgentDefinition{
		{Key: domain.AgentMetadata, Name: "Metadata", IsActive: true},
		{Key: domain.AgentContent, Name: "Content", Description: "text answers", IsActive: true},
		{Key: domain.AgentCasual, Name: "Casual", IsActive: false},
	}
	if err := store.Seed(ctx, "default", defs); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	active, err := store.ListActiveAgents(ctx, "default")
	if err != nil {
		t.Fatalf("ListActiveAgents: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active = %d, want 2", len(active))
	}
	if active[0].Key != domain.AgentContent || active[0].Description != "text answers" {
		t.Errorf("active[0] = %+v", active[0])
	}

	all, err := store.ListAgents(ctx, "default")
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}

	other, err := store.ListActiveAgents(ctx, "tenant-b")
	if err != nil {
		t.Fatalf("ListActiveAgents(other scope): %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other scope = %d, want 0", len(other))
	}
}

func TestSQLiteStore_UpsertReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "s", domain.AgentDefinition{Key: domain.AgentContent, Name: "Old", IsActive: true}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert(ctx, "s", domain.AgentDefinition{Key: domain.AgentContent, Name: "New", IsActive: true}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	all, _ := store.ListAgents(ctx, "s")
	if len(all) != 1 || all[0].Name != "New" {
		t.Errorf("after upsert = %+v", all)
	}
}

func TestSQLiteStore_SetActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "s", domain.AgentDefinition{Key: domain.AgentMetadata, Name: "M", IsActive: true}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.SetActive(ctx, "s", domain.AgentMetadata, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	active, _ := store.ListActiveAgents(ctx, "s")
	if len(active) != 0 {
		t.Errorf("active = %+v, want none", active)
	}

	err := store.SetActive(ctx, "s", domain.AgentCasual, true)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("SetActive(unknown) = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_ClosedDBReportsStoreError(t *testing.T) {
	store := newTestStore(t)
	store.Close()

	_, err := store.ListActiveAgents(context.Background(), "default")
	if !errors.Is(err, domain.ErrAgentStore) {
		t.Errorf("err = %v, want ErrAgentStore", err)
	}
}

func TestStaticStore(t *testing.T) {
	store := NewStaticStore([]config.AgentEntry{
		{Key: "content", Name: "Content"},
		{Key: "casual", Name: "Casual", Disabled: true},
	})
	active, err := store.ListActiveAgents(context.Background(), "ignored")
	if err != nil {
		t.Fatalf("ListActiveAgents: %v", err)
	}
	if len(active) != 1 || active[0].Key != domain.AgentContent {
		t.Errorf("active = %+v", active)
	}
}
