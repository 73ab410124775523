package sheet

import (
	"context"
	"sort"

	"github.com/qrstock/inventory-api/internal/core/domain"
	"github.com/qrstock/inventory-api/internal/core/ports"
)

// Records implements ports.RecordRepository on the REGISTROS sheet.
type Records struct {
	wb *Workbook
}

var _ ports.RecordRepository = (*Records)(nil)

func cloneRecord(r *domain.InventoryRecord) *domain.InventoryRecord {
	c := *r
	return &c
}

func (s *Records) FindByKey(_ context.Context, key domain.Key) (*domain.InventoryRecord, error) {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	rr, ok := s.wb.byKey[key]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return cloneRecord(rr.rec), nil
}

func (s *Records) Create(_ context.Context, r *domain.InventoryRecord) error {
	wb := s.wb
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if wb.f == nil {
		return domain.NewStoreError("create record", errClosed)
	}

	rec := cloneRecord(r)
	rec.ID = wb.nextID
	rr := &recordRow{rec: rec, row: wb.nextRow}
	err := wb.apply(
		func() error { return wb.writeRecord(rr) },
		func() error { return wb.f.RemoveRow(RecordsSheet, rr.row) },
	)
	if err != nil {
		return domain.NewStoreError("create record", err)
	}
	r.ID = rec.ID

	wb.nextID++
	wb.nextRow++
	wb.records = append(wb.records, rr)
	wb.byKey[r.Key()] = rr
	return nil
}

func (s *Records) Update(_ context.Context, r *domain.InventoryRecord) error {
	wb := s.wb
	wb.mu.Lock()
	defer wb.mu.Unlock()

	rr, ok := wb.byKey[r.Key()]
	if !ok {
		return domain.ErrRecordNotFound
	}
	if wb.f == nil {
		return domain.NewStoreError("update record", errClosed)
	}

	next := cloneRecord(r)
	next.ID = rr.rec.ID
	updated := &recordRow{rec: next, row: rr.row}
	err := wb.apply(
		func() error { return wb.writeRecord(updated) },
		func() error { return wb.writeRecord(rr) },
	)
	if err != nil {
		return domain.NewStoreError("update record", err)
	}
	rr.rec = next
	return nil
}

func (s *Records) List(_ context.Context, f ports.ListRecordsFilter) ([]*domain.InventoryRecord, error) {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	out := make([]*domain.InventoryRecord, 0, len(s.wb.records))
	for _, rr := range s.wb.records {
		if f.Client != "" && rr.rec.Client != f.Client {
			continue
		}
		out = append(out, cloneRecord(rr.rec))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// InsertEvent appends a row to the MOVIMIENTOS sheet.
func (s *Records) InsertEvent(_ context.Context, e *domain.ScanEvent) error {
	wb := s.wb
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if wb.f == nil {
		return domain.NewStoreError("insert event", errClosed)
	}

	ts := e.Timestamp
	row := wb.nextEventRow
	write := func() error {
		return wb.writeCells(EventsSheet, wb.eventCols, row, map[string]interface{}{
			colID:        e.ID,
			colReference: e.Reference,
			colSerial:    e.Serial,
			colFrom:      string(e.From),
			colTo:        string(e.To),
			colAction:    string(e.Action),
			colActor:     e.Actor,
			colClient:    e.Client,
			colDate:      wb.formatDate(&ts),
			colTime:      wb.formatTime(&ts),
		})
	}
	err := wb.apply(write, func() error { return wb.f.RemoveRow(EventsSheet, row) })
	if err != nil {
		return domain.NewStoreError("insert event", err)
	}
	wb.nextEventRow++
	return nil
}

func (wb *Workbook) writeRecord(rr *recordRow) error {
	r := rr.rec
	return wb.writeCells(RecordsSheet, wb.recordCols, rr.row, map[string]interface{}{
		colID:            r.ID,
		colReference:     r.Reference,
		colSerial:        r.Serial,
		colStatus:        string(r.Status),
		colStockedBy:     r.StockedBy,
		colInstalledBy:   r.InstalledBy,
		colUninstalledBy: r.UninstalledBy,
		colStockedDate:   wb.formatDate(r.StockedAt),
		colDispatchDate:  wb.formatDate(r.DispatchedAt),
		colInstallDate:   wb.formatDate(r.InstalledAt),
		colUninstallDate: wb.formatDate(r.UninstalledAt),
		colStockedTime:   wb.formatTime(r.StockedAt),
		colDispatchTime:  wb.formatTime(r.DispatchedAt),
		colInstallTime:   wb.formatTime(r.InstalledAt),
		colUninstallTime: wb.formatTime(r.UninstalledAt),
		colClient:        r.Client,
	})
}
