package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/qrstock/inventory-api/internal/api/metrics"
	"github.com/qrstock/inventory-api/internal/core/domain"
	"github.com/qrstock/inventory-api/internal/core/ports"
)

// HeaderIdempotentReplay marks a response served from the replay cache.
const HeaderIdempotentReplay = "Idempotent-Replayed"

// ScanHandler handles QR scans and the inventory read endpoints.
type ScanHandler struct {
	service ports.ScanService
	loc     *time.Location
}

// NewScanHandler creates a ScanHandler rendering dates in loc.
func NewScanHandler(service ports.ScanService, loc *time.Location) *ScanHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ScanHandler{service: service, loc: loc}
}

// SaveQR handles POST /api/save-qr.
//
// @Summary      Register a QR scan
// @Description  Advances the scanned item one step: EN ALMACEN → DESPACHADO → INSTALADO → DESINSTALADO.
// @Tags         scans
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string         false  "Replays the first result for a repeated key"
// @Param        body             body      saveQRRequest  true   "Scanned payload REFERENCIA|SERIAL"
// @Success      200              {object}  scanResponse
// @Failure      400              {object}  map[string]any
// @Failure      500              {object}  map[string]any
// @Router       /api/save-qr [post]
func (h *ScanHandler) SaveQR(c echo.Context) error {
	var req saveQRRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "payload inválido")
	}

	actor, client := req.UserEmail, req.UserClient
	if p, ok := principalFromContext(c); ok {
		if actor == "" {
			actor = p.Username
		}
		if client == "" {
			client = p.Client
		}
	}
	idempotencyKey := c.Request().Header.Get("Idempotency-Key")

	start := time.Now()
	result, err := h.service.Scan(c.Request().Context(), ports.ScanInput{
		QRContent:      req.QRContent,
		Actor:          actor,
		Client:         client,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		metrics.ScanErrorsTotal.WithLabelValues(scanErrorReason(err)).Inc()
		metrics.ScanDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return err
	}

	if idempotencyKey != "" {
		if result.Replayed {
			metrics.ScanReplaysTotal.WithLabelValues("hit").Inc()
			c.Response().Header().Set(HeaderIdempotentReplay, "true")
		} else {
			metrics.ScanReplaysTotal.WithLabelValues("miss").Inc()
		}
	}
	if !result.Replayed {
		metrics.ScansProcessedTotal.WithLabelValues(string(result.Action)).Inc()
		metrics.ScanDuration.WithLabelValues(string(result.Action)).Observe(time.Since(start).Seconds())
	}

	return c.JSON(http.StatusOK, toScanResponse(result, h.loc))
}

func scanErrorReason(err error) string {
	var ve *domain.ValidationError
	var se *domain.StoreError
	switch {
	case errors.As(err, &ve) && ve.Field == "qrContent":
		return "invalid_qr"
	case errors.As(err, &ve):
		return "invalid_request"
	case errors.As(err, &se):
		return "store"
	default:
		return "internal"
	}
}

// RecentScans handles GET /api/recent-scans.
//
// @Summary      List the most recently created records
// @Tags         scans
// @Produce      json
// @Param        limit    query     int     false  "Maximum records (default 10, max 1000)"
// @Param        cliente  query     string  false  "Only records of this client"
// @Success      200      {object}  recentScansResponse
// @Failure      500      {object}  map[string]any
// @Router       /api/recent-scans [get]
func (h *ScanHandler) RecentScans(c echo.Context) error {
	// Non-numeric limits fall back to the default like an absent one.
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	records, err := h.service.RecentScans(c.Request().Context(), ports.RecentScansInput{
		Limit:  limit,
		Client: c.QueryParam("cliente"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recentScansResponse{Success: true, Data: toRecordResponses(records, h.loc)})
}

// Stats handles GET /api/stats.
//
// @Summary      Count records per status
// @Tags         scans
// @Produce      json
// @Param        cliente  query     string  false  "Only records of this client"
// @Success      200      {object}  statsResponse
// @Failure      500      {object}  map[string]any
// @Router       /api/stats [get]
func (h *ScanHandler) Stats(c echo.Context) error {
	stats, err := h.service.Stats(c.Request().Context(), c.QueryParam("cliente"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toStatsResponse(stats))
}
