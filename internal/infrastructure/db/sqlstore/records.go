package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/qrstock/inventory-api/internal/core/domain"
	"github.com/qrstock/inventory-api/internal/core/ports"
)

const recordColumns = `id, reference, serial, status, stocked_by, installed_by, uninstalled_by,
	stocked_at, dispatched_at, installed_at, uninstalled_at, client`

type recordRow struct {
	ID            int64        `db:"id"`
	Reference     string       `db:"reference"`
	Serial        string       `db:"serial"`
	Status        string       `db:"status"`
	StockedBy     string       `db:"stocked_by"`
	InstalledBy   string       `db:"installed_by"`
	UninstalledBy string       `db:"uninstalled_by"`
	StockedAt     sql.NullTime `db:"stocked_at"`
	DispatchedAt  sql.NullTime `db:"dispatched_at"`
	InstalledAt   sql.NullTime `db:"installed_at"`
	UninstalledAt sql.NullTime `db:"uninstalled_at"`
	Client        string       `db:"client"`
}

func (r recordRow) toDomain() *domain.InventoryRecord {
	return &domain.InventoryRecord{
		ID:            r.ID,
		Reference:     r.Reference,
		Serial:        r.Serial,
		Status:        domain.RecordStatus(r.Status),
		StockedBy:     r.StockedBy,
		InstalledBy:   r.InstalledBy,
		UninstalledBy: r.UninstalledBy,
		StockedAt:     fromNullTime(r.StockedAt),
		DispatchedAt:  fromNullTime(r.DispatchedAt),
		InstalledAt:   fromNullTime(r.InstalledAt),
		UninstalledAt: fromNullTime(r.UninstalledAt),
		Client:        r.Client,
	}
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// RecordRepository implements ports.RecordRepository on SQL tables.
type RecordRepository struct {
	db *sqlx.DB
}

var _ ports.RecordRepository = (*RecordRepository)(nil)

func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) FindByKey(ctx context.Context, key domain.Key) (*domain.InventoryRecord, error) {
	var row recordRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+recordColumns+` FROM inventory_records WHERE reference = ? AND serial = ?`,
		key.Reference, key.Serial)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, domain.NewStoreError("find record", err)
	}
	return row.toDomain(), nil
}

func (r *RecordRepository) Create(ctx context.Context, rec *domain.InventoryRecord) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory_records
			(reference, serial, status, stocked_by, installed_by, uninstalled_by,
			 stocked_at, dispatched_at, installed_at, uninstalled_at, client)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Reference, rec.Serial, string(rec.Status), rec.StockedBy, rec.InstalledBy, rec.UninstalledBy,
		toNullTime(rec.StockedAt), toNullTime(rec.DispatchedAt), toNullTime(rec.InstalledAt), toNullTime(rec.UninstalledAt),
		rec.Client,
	)
	if err != nil {
		return domain.NewStoreError("create record", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.NewStoreError("create record", err)
	}
	rec.ID = id
	return nil
}

func (r *RecordRepository) Update(ctx context.Context, rec *domain.InventoryRecord) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE inventory_records
		SET status = ?, stocked_by = ?, installed_by = ?, uninstalled_by = ?,
			stocked_at = ?, dispatched_at = ?, installed_at = ?, uninstalled_at = ?, client = ?
		WHERE reference = ? AND serial = ?`,
		string(rec.Status), rec.StockedBy, rec.InstalledBy, rec.UninstalledBy,
		toNullTime(rec.StockedAt), toNullTime(rec.DispatchedAt), toNullTime(rec.InstalledAt), toNullTime(rec.UninstalledAt),
		rec.Client, rec.Reference, rec.Serial,
	)
	if err != nil {
		return domain.NewStoreError("update record", err)
	}
	// MySQL reports 0 affected rows when nothing changed, so only a missing
	// row is treated as not found.
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.FindByKey(ctx, rec.Key()); err != nil {
			return err
		}
	}
	return nil
}

func (r *RecordRepository) List(ctx context.Context, f ports.ListRecordsFilter) ([]*domain.InventoryRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM inventory_records`
	var args []interface{}
	if f.Client != "" {
		q += ` WHERE client = ?`
		args = append(args, f.Client)
	}
	q += ` ORDER BY id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, domain.NewStoreError("list records", err)
	}
	out := make([]*domain.InventoryRecord, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *RecordRepository) InsertEvent(ctx context.Context, e *domain.ScanEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scan_events (id, reference, serial, from_status, to_status, action, actor, client, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Reference, e.Serial, string(e.From), string(e.To), string(e.Action), e.Actor, e.Client, e.Timestamp.UTC(),
	)
	return domain.NewStoreError("insert event", err)
}
