package handler

import (
	"time"

	"github.com/qrstock/inventory-api/internal/core/domain"
	"github.com/qrstock/inventory-api/internal/core/ports"
)

var actionMessages = map[domain.ScanAction]string{
	domain.ActionStored:           "✅ Producto registrado EN ALMACEN",
	domain.ActionDispatched:       "🚚 Producto marcado como DESPACHADO",
	domain.ActionInstalled:        "🔧 Producto marcado como INSTALADO",
	domain.ActionUninstalled:      "📤 Producto marcado como DESINSTALADO",
	domain.ActionAlreadyCompleted: "⚠️ Este producto ya completó todo el ciclo (DESINSTALADO)",
}

// --- Service result → HTTP response ---

func toScanResponse(r *ports.ScanResult, loc *time.Location) scanResponse {
	return scanResponse{
		Success: true,
		Action:  string(r.Action),
		Message: actionMessages[r.Action],
		Data:    toRecordResponse(&r.Record, loc),
	}
}

func toRecordResponse(r *domain.InventoryRecord, loc *time.Location) recordResponse {
	return recordResponse{
		ID:                    r.ID,
		Referencia:            r.Reference,
		Serial:                r.Serial,
		Estado:                string(r.Status),
		UsuarioPlanta:         r.StockedBy,
		UsuarioInstalacion:    r.InstalledBy,
		UsuarioDesinstalacion: r.UninstalledBy,
		FechaAlmacen:          formatDate(r.StockedAt, loc),
		FechaDespacho:         formatDate(r.DispatchedAt, loc),
		FechaInstalacion:      formatDate(r.InstalledAt, loc),
		FechaDesinstalacion:   formatDate(r.UninstalledAt, loc),
		HoraAlmacen:           formatTime(r.StockedAt, loc),
		HoraDespacho:          formatTime(r.DispatchedAt, loc),
		HoraInstalacion:       formatTime(r.InstalledAt, loc),
		HoraDesinstalacion:    formatTime(r.UninstalledAt, loc),
		Cliente:               r.Client,
	}
}

func toRecordResponses(records []*domain.InventoryRecord, loc *time.Location) []recordResponse {
	out := make([]recordResponse, len(records))
	for i, r := range records {
		out[i] = toRecordResponse(r, loc)
	}
	return out
}

func toStatsResponse(s *ports.Stats) statsResponse {
	return statsResponse{
		Success: true,
		Data: statsBody{
			Total:         s.Total,
			EnAlmacen:     s.InStock,
			Despachados:   s.Dispatched,
			Instalados:    s.Installed,
			Desinstalados: s.Uninstalled,
			Today:         s.Today,
		},
	}
}

func formatDate(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(domain.DateLayout)
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(domain.TimeLayout)
}
