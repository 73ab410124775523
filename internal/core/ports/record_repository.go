package ports

import (
	"context"

	"github.com/qrstock/inventory-api/internal/core/domain"
)

// ListRecordsFilter carries the query parameters for listing records.
type ListRecordsFilter struct {
	Client string // empty = all clients
	Limit  int    // <= 0 returns every matching record
}

// RecordRepository defines persistence operations for inventory records.
type RecordRepository interface {
	// FindByKey returns domain.ErrRecordNotFound when no record exists for key.
	FindByKey(ctx context.Context, key domain.Key) (*domain.InventoryRecord, error)
	// Create inserts a new record and assigns its ID.
	Create(ctx context.Context, r *domain.InventoryRecord) error
	// Update overwrites the record identified by r's key.
	Update(ctx context.Context, r *domain.InventoryRecord) error
	// List returns records newest-first (highest ID first).
	List(ctx context.Context, filter ListRecordsFilter) ([]*domain.InventoryRecord, error)
	// InsertEvent appends an entry to the scan audit trail.
	InsertEvent(ctx context.Context, event *domain.ScanEvent) error
}
