package domain

import (
	"errors"
	"time"
)

// RecordStatus represents the lifecycle state of an inventory item.
// Values are the labels written to the backing store.
type RecordStatus string

const (
	StatusInStock     RecordStatus = "EN ALMACEN"
	StatusDispatched  RecordStatus = "DESPACHADO"
	StatusInstalled   RecordStatus = "INSTALADO"
	StatusUninstalled RecordStatus = "DESINSTALADO"
)

// Layouts used when a timestamp is split into a date and a time of day.
const (
	DateLayout = "2/1/2006"
	TimeLayout = "15:04:05"
)

var ErrRecordNotFound = errors.New("record not found")

// Valid reports whether s is one of the four known statuses.
func (s RecordStatus) Valid() bool {
	switch s {
	case StatusInStock, StatusDispatched, StatusInstalled, StatusUninstalled:
		return true
	}
	return false
}

// Key identifies one physical item.
type Key struct {
	Reference string `json:"referencia" bson:"reference"`
	Serial    string `json:"serial" bson:"serial"`
}

func (k Key) String() string {
	return k.Reference + QRSeparator + k.Serial
}

// InventoryRecord is the persisted state of one scanned item.
type InventoryRecord struct {
	ID            int64        `json:"id" bson:"record_id"`
	Reference     string       `json:"referencia" bson:"reference"`
	Serial        string       `json:"serial" bson:"serial"`
	Status        RecordStatus `json:"estado" bson:"status"`
	StockedBy     string       `json:"usuarioPlanta" bson:"stocked_by"`
	InstalledBy   string       `json:"usuarioInstalacion" bson:"installed_by"`
	UninstalledBy string       `json:"usuarioDesinstalacion" bson:"uninstalled_by"`
	StockedAt     *time.Time   `json:"fechaAlmacen,omitempty" bson:"stocked_at,omitempty"`
	DispatchedAt  *time.Time   `json:"fechaDespacho,omitempty" bson:"dispatched_at,omitempty"`
	InstalledAt   *time.Time   `json:"fechaInstalacion,omitempty" bson:"installed_at,omitempty"`
	UninstalledAt *time.Time   `json:"fechaDesinstalacion,omitempty" bson:"uninstalled_at,omitempty"`
	Client        string       `json:"cliente,omitempty" bson:"client,omitempty"`
}

// Key returns the compound identity of the record.
func (r *InventoryRecord) Key() Key {
	return Key{Reference: r.Reference, Serial: r.Serial}
}

// Touched reports whether any transition of the record happened on the same
// calendar day as now, evaluated in loc.
func (r *InventoryRecord) Touched(now time.Time, loc *time.Location) bool {
	y, m, d := now.In(loc).Date()
	for _, ts := range []*time.Time{r.StockedAt, r.DispatchedAt, r.InstalledAt, r.UninstalledAt} {
		if ts == nil {
			continue
		}
		ty, tm, td := ts.In(loc).Date()
		if ty == y && tm == m && td == d {
			return true
		}
	}
	return false
}
