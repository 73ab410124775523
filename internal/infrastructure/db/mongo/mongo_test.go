package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/qrstock/inventory-api/internal/core/domain"
	"github.com/qrstock/inventory-api/internal/core/ports"
)

func getTestDatabase(t *testing.T) *mongo.Database {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	client, db, err := Connect(context.Background(), Config{
		URI:      uri,
		Database: "inventory_test_" + uuid.NewString()[:8],
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func TestRecordRepository_Lifecycle(t *testing.T) {
	db := getTestDatabase(t)
	repo := NewRecordRepository(db)
	ctx := context.Background()
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("indexes: %v", err)
	}

	stocked := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	a := &domain.InventoryRecord{Reference: "A", Serial: "1", Status: domain.StatusInStock, StockedAt: &stocked, Client: "acme"}
	b := &domain.InventoryRecord{Reference: "B", Serial: "1", Status: domain.StatusInStock}
	for _, rec := range []*domain.InventoryRecord{a, b} {
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("expected sequential ids, got %d and %d", a.ID, b.ID)
	}

	a.Status = domain.StatusDispatched
	dispatched := stocked.Add(time.Hour)
	a.DispatchedAt = &dispatched
	if err := repo.Update(ctx, a); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.FindByKey(ctx, a.Key())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != domain.StatusDispatched || got.DispatchedAt == nil || !got.DispatchedAt.Equal(dispatched) {
		t.Fatalf("unexpected record: %+v", got)
	}

	list, err := repo.List(ctx, ports.ListRecordsFilter{Limit: 10})
	if err != nil || len(list) != 2 || list[0].Reference != "B" {
		t.Fatalf("unexpected list: %+v (err=%v)", list, err)
	}

	if _, err := repo.FindByKey(ctx, domain.Key{Reference: "no", Serial: "pe"}); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if err := repo.Update(ctx, &domain.InventoryRecord{Reference: "no", Serial: "pe"}); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestCredentialRepository_SaveDelete(t *testing.T) {
	db := getTestDatabase(t)
	repo := NewCredentialRepository(db)
	ctx := context.Background()
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("indexes: %v", err)
	}

	created, err := repo.Save(ctx, &domain.Credential{Username: "ana", Role: domain.RoleWorker, Password: "1"})
	if err != nil || !created {
		t.Fatalf("expected create, got created=%v err=%v", created, err)
	}
	created, err = repo.Save(ctx, &domain.Credential{Username: "ana", Role: domain.RoleAdmin, Password: "2"})
	if err != nil || created {
		t.Fatalf("expected update, got created=%v err=%v", created, err)
	}

	got, err := repo.FindByUsername(ctx, "ana")
	if err != nil || got.Role != domain.RoleAdmin {
		t.Fatalf("unexpected user: %+v (err=%v)", got, err)
	}
	if err := repo.Delete(ctx, "ana"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "ana"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
