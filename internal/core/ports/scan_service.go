package ports

import (
	"context"

	"github.com/qrstock/inventory-api/internal/core/domain"
)

// ScanInput is the DTO passed from the transport layer to ScanService.
type ScanInput struct {
	QRContent string
	Actor     string // acting user, recorded on stock/install/uninstall
	Client    string // client tag stamped on newly stored records
	// IdempotencyKey, when set, makes a retried request return the first result.
	IdempotencyKey string
}

// ScanResult is returned after a scan was applied.
type ScanResult struct {
	Action domain.ScanAction      `json:"action"`
	Record domain.InventoryRecord `json:"record"`
	// Replayed is true when the result came from the idempotency cache.
	Replayed bool `json:"-"`
}

// RecentScansInput carries the parameters of the recent-scans listing.
type RecentScansInput struct {
	Limit  int
	Client string
}

// Stats summarizes records by status.
type Stats struct {
	Total       int
	InStock     int
	Dispatched  int
	Installed   int
	Uninstalled int
	Today       int
}

// ScanService defines the scan use cases.
type ScanService interface {
	Scan(ctx context.Context, input ScanInput) (*ScanResult, error)
	RecentScans(ctx context.Context, input RecentScansInput) ([]*domain.InventoryRecord, error)
	Stats(ctx context.Context, client string) (*Stats, error)
}
