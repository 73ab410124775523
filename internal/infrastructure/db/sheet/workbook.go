// Package sheet persists inventory records and user accounts in an .xlsx
// workbook laid out the way the warehouse spreadsheets are kept by hand:
// one REGISTROS sheet for items, one USUARIOS sheet for accounts and one
// MOVIMIENTOS sheet for the scan audit trail.
//
// The workbook is loaded once and held open. Lookups are served from
// in-memory indexes and every mutation is written through to disk before it
// returns, so edits made to the file by other programs while the service runs
// are not seen.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/qrstock/inventory-api/internal/core/domain"
)

const (
	RecordsSheet = "REGISTROS"
	UsersSheet   = "USUARIOS"
	EventsSheet  = "MOVIMIENTOS"
)

// Column headers of the REGISTROS sheet.
const (
	colID            = "ID"
	colReference     = "REFERENCIA"
	colSerial        = "SERIAL"
	colStatus        = "ESTADO"
	colStockedBy     = "USUARIO_PLANTA"
	colInstalledBy   = "USUARIO_INSTALACION"
	colUninstalledBy = "USUARIO_DESINSTALACION"
	colStockedDate   = "FECHA_ALMACEN"
	colDispatchDate  = "FECHA_DESPACHO"
	colInstallDate   = "FECHA_INSTALACION"
	colUninstallDate = "FECHA_DESINSTALACION"
	colStockedTime   = "HORA_ALMACEN"
	colDispatchTime  = "HORA_DESPACHO"
	colInstallTime   = "HORA_INSTALACION"
	colUninstallTime = "HORA_DESINSTALACION"
	colClient        = "CLIENTE"
)

// Column headers of the USUARIOS sheet.
const (
	colUsername = "USUARIO"
	colType     = "TIPO"
	colPassword = "CONTRASEÑA"
)

// Column headers of the MOVIMIENTOS sheet.
const (
	colFrom   = "DESDE"
	colTo     = "HACIA"
	colAction = "ACCION"
	colActor  = "USUARIO"
	colDate   = "FECHA"
	colTime   = "HORA"
)

var (
	recordHeaders = []string{
		colID, colReference, colSerial, colStatus,
		colStockedBy, colInstalledBy, colUninstalledBy,
		colStockedDate, colDispatchDate, colInstallDate, colUninstallDate,
		colStockedTime, colDispatchTime, colInstallTime, colUninstallTime,
		colClient,
	}
	userHeaders  = []string{colUsername, colType, colPassword, colClient}
	eventHeaders = []string{colID, colReference, colSerial, colFrom, colTo, colAction, colActor, colClient, colDate, colTime}
)

// headerAliases maps header spellings found in older workbooks to the
// canonical name.
var headerAliases = map[string]string{
	"CONTRASENA": colPassword,
	"PASSWORD":   colPassword,
}

var errClosed = errors.New("workbook closed")

type recordRow struct {
	rec *domain.InventoryRecord
	row int
}

type userRow struct {
	cred *domain.Credential
	row  int
}

// Workbook is the shared state behind the Records and Credentials stores.
type Workbook struct {
	mu   sync.Mutex
	f    *excelize.File
	path string
	loc  *time.Location
	log  zerolog.Logger

	recordCols map[string]int
	records    []*recordRow
	byKey      map[domain.Key]*recordRow
	nextID     int64
	nextRow    int

	userCols    map[string]int
	users       map[string]*userRow
	nextUserRow int

	eventCols    map[string]int
	nextEventRow int
}

// Open loads the workbook at path, creating it with empty sheets when it does
// not exist. Missing sheets and missing header columns are added. Dates are
// read and written in loc.
func Open(path string, loc *time.Location, log zerolog.Logger) (*Workbook, error) {
	if loc == nil {
		loc = time.Local
	}

	f, err := openOrCreate(path)
	if err != nil {
		return nil, err
	}

	wb := &Workbook{
		f:     f,
		path:  path,
		loc:   loc,
		log:   log,
		byKey: make(map[domain.Key]*recordRow),
		users: make(map[string]*userRow),
	}

	if err := wb.load(); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := wb.save(); err != nil {
		_ = f.Close()
		return nil, err
	}

	log.Info().
		Str("path", path).
		Int("records", len(wb.records)).
		Int("users", len(wb.users)).
		Msg("workbook loaded")
	return wb, nil
}

func openOrCreate(path string) (*excelize.File, error) {
	if _, err := os.Stat(path); err == nil {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open workbook %s: %w", path, err)
		}
		return f, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat workbook %s: %w", path, err)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", RecordsSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create workbook: %w", err)
	}
	return f, nil
}

func (wb *Workbook) load() error {
	var err error
	if wb.recordCols, err = wb.ensureSheet(RecordsSheet, recordHeaders); err != nil {
		return err
	}
	if wb.userCols, err = wb.ensureSheet(UsersSheet, userHeaders); err != nil {
		return err
	}
	if wb.eventCols, err = wb.ensureSheet(EventsSheet, eventHeaders); err != nil {
		return err
	}
	if err := wb.loadRecords(); err != nil {
		return err
	}
	if err := wb.loadUsers(); err != nil {
		return err
	}

	rows, err := wb.f.GetRows(EventsSheet)
	if err != nil {
		return fmt.Errorf("read %s: %w", EventsSheet, err)
	}
	wb.nextEventRow = len(rows) + 1
	return nil
}

// ensureSheet creates the sheet if needed and returns the column index of
// every wanted header, appending headers the sheet lacks.
func (wb *Workbook) ensureSheet(name string, headers []string) (map[string]int, error) {
	idx, err := wb.f.GetSheetIndex(name)
	if err != nil {
		return nil, fmt.Errorf("lookup sheet %s: %w", name, err)
	}
	if idx == -1 {
		if _, err := wb.f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	rows, err := wb.f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	cols := make(map[string]int, len(headers))
	var width int
	if len(rows) > 0 {
		width = len(rows[0])
		for i, h := range rows[0] {
			key := canonicalHeader(h)
			if _, dup := cols[key]; key != "" && !dup {
				cols[key] = i
			}
		}
	}

	for _, h := range headers {
		if _, ok := cols[h]; ok {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(width+1, 1)
		if err != nil {
			return nil, err
		}
		if err := wb.f.SetCellValue(name, cell, h); err != nil {
			return nil, fmt.Errorf("write header %s!%s: %w", name, cell, err)
		}
		cols[h] = width
		width++
	}
	return cols, nil
}

func canonicalHeader(h string) string {
	h = strings.ToUpper(strings.TrimSpace(h))
	if alias, ok := headerAliases[h]; ok {
		return alias
	}
	return h
}

func (wb *Workbook) loadRecords() error {
	rows, err := wb.f.GetRows(RecordsSheet)
	if err != nil {
		return fmt.Errorf("read %s: %w", RecordsSheet, err)
	}
	wb.nextRow = len(rows) + 1

	var maxID int64
	for i := 1; i < len(rows); i++ {
		rec := wb.parseRecord(rows[i], i+1)
		if rec == nil {
			continue
		}
		if rec.ID > maxID {
			maxID = rec.ID
		}
		rr := &recordRow{rec: rec, row: i + 1}
		if _, dup := wb.byKey[rec.Key()]; dup {
			wb.log.Warn().Str("key", rec.Key().String()).Int("row", i+1).Msg("duplicate record row ignored")
			continue
		}
		wb.records = append(wb.records, rr)
		wb.byKey[rec.Key()] = rr
	}
	wb.nextID = maxID + 1
	return nil
}

func (wb *Workbook) parseRecord(row []string, rowNum int) *domain.InventoryRecord {
	get := cellGetter(row, wb.recordCols)

	ref, serial := strings.TrimSpace(get(colReference)), strings.TrimSpace(get(colSerial))
	if ref == "" || serial == "" {
		return nil
	}

	id, err := strconv.ParseInt(strings.TrimSpace(get(colID)), 10, 64)
	if err != nil || id <= 0 {
		id = int64(rowNum - 1)
	}

	return &domain.InventoryRecord{
		ID:            id,
		Reference:     ref,
		Serial:        serial,
		Status:        domain.RecordStatus(strings.TrimSpace(get(colStatus))),
		StockedBy:     get(colStockedBy),
		InstalledBy:   get(colInstalledBy),
		UninstalledBy: get(colUninstalledBy),
		StockedAt:     wb.parseTimestamp(get(colStockedDate), get(colStockedTime)),
		DispatchedAt:  wb.parseTimestamp(get(colDispatchDate), get(colDispatchTime)),
		InstalledAt:   wb.parseTimestamp(get(colInstallDate), get(colInstallTime)),
		UninstalledAt: wb.parseTimestamp(get(colUninstallDate), get(colUninstallTime)),
		Client:        get(colClient),
	}
}

func (wb *Workbook) loadUsers() error {
	rows, err := wb.f.GetRows(UsersSheet)
	if err != nil {
		return fmt.Errorf("read %s: %w", UsersSheet, err)
	}
	wb.nextUserRow = len(rows) + 1

	for i := 1; i < len(rows); i++ {
		get := cellGetter(rows[i], wb.userCols)
		name := domain.NormalizeUsername(get(colUsername))
		if name == "" {
			continue
		}
		rawType := strings.TrimSpace(get(colType))
		role, err := domain.ParseRole(rawType)
		if err != nil {
			// Unknown types are kept so the row survives a rewrite but never
			// match a login path.
			role = domain.Role(rawType)
		}
		if prev, dup := wb.users[name]; dup {
			wb.log.Warn().Str("username", name).Int("row", i+1).Int("kept_row", prev.row).Msg("duplicate user row ignored")
			continue
		}
		wb.users[name] = &userRow{
			cred: &domain.Credential{
				Username: name,
				Role:     role,
				Password: get(colPassword),
				Client:   strings.TrimSpace(get(colClient)),
			},
			row: i + 1,
		}
	}
	return nil
}

func cellGetter(row []string, cols map[string]int) func(string) string {
	return func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
}

// parseTimestamp joins a date cell (d/m/yyyy) and a time cell (H:mm:ss).
// Unparseable values yield nil.
func (wb *Workbook) parseTimestamp(date, clock string) *time.Time {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" {
		return nil
	}
	var (
		ts  time.Time
		err error
	)
	if clock == "" {
		ts, err = time.ParseInLocation(domain.DateLayout, date, wb.loc)
	} else {
		ts, err = time.ParseInLocation(domain.DateLayout+" "+domain.TimeLayout, date+" "+clock, wb.loc)
	}
	if err != nil {
		wb.log.Debug().Err(err).Str("date", date).Str("time", clock).Msg("unparseable timestamp cell")
		return nil
	}
	return &ts
}

func (wb *Workbook) formatDate(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.In(wb.loc).Format(domain.DateLayout)
}

func (wb *Workbook) formatTime(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.In(wb.loc).Format(domain.TimeLayout)
}

// writeCells sets each named column of row. Columns the sheet does not know
// are skipped and cells outside the mapping are left untouched.
func (wb *Workbook) writeCells(sheet string, cols map[string]int, row int, values map[string]interface{}) error {
	for name, v := range values {
		col, ok := cols[name]
		if !ok {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := wb.f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

// apply runs write and saves the workbook. When either step fails, undo puts
// the touched cells back so a later save of another change cannot persist the
// failed one. Callers update their indexes only after apply succeeds.
func (wb *Workbook) apply(write, undo func() error) error {
	err := write()
	if err == nil {
		err = wb.save()
	}
	if err == nil {
		return nil
	}
	if uerr := undo(); uerr != nil {
		wb.log.Error().Err(uerr).AnErr("cause", err).Msg("rollback of failed write failed, workbook diverges from disk")
	}
	return err
}

// rowValues copies the raw cells of one row.
func (wb *Workbook) rowValues(sheet string, row int) ([]interface{}, error) {
	rows, err := wb.f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if row-1 >= len(rows) {
		return nil, nil
	}
	vals := make([]interface{}, len(rows[row-1]))
	for i, v := range rows[row-1] {
		vals[i] = v
	}
	return vals, nil
}

// restoreRow re-inserts a removed row at its old position.
func (wb *Workbook) restoreRow(sheet string, row int, vals []interface{}) error {
	if err := wb.f.InsertRows(sheet, row, 1); err != nil {
		return err
	}
	if len(vals) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return wb.f.SetSheetRow(sheet, cell, &vals)
}

func (wb *Workbook) save() error {
	if wb.f == nil {
		return errClosed
	}
	if err := wb.f.SaveAs(wb.path); err != nil {
		return fmt.Errorf("save workbook %s: %w", wb.path, err)
	}
	return nil
}

// Records returns the inventory record store backed by this workbook.
func (wb *Workbook) Records() *Records {
	return &Records{wb: wb}
}

// Credentials returns the user account store backed by this workbook.
func (wb *Workbook) Credentials() *Credentials {
	return &Credentials{wb: wb}
}

// Ping reports whether the workbook file is still reachable.
func (wb *Workbook) Ping(_ context.Context) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	if wb.f == nil {
		return errClosed
	}
	if _, err := os.Stat(wb.path); err != nil {
		return fmt.Errorf("workbook %s: %w", wb.path, err)
	}
	return nil
}

// Close releases the workbook. Further calls fail.
func (wb *Workbook) Close() error {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	if wb.f == nil {
		return nil
	}
	err := wb.f.Close()
	wb.f = nil
	return err
}
