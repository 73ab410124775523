package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/qrstock/inventory-api/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors. Error
// carries faults and Message carries refusals the user can act on.
type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	QRContent string `json:"qrContent,omitempty"`
	Details   string `json:"details,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that maps domain errors
// to status codes and renders the envelope. Unexpected errors are logged and
// answered with a generic message.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := fmt.Sprintf("%v", he.Message)
		if he.Code == http.StatusNotFound && msg == http.StatusText(http.StatusNotFound) {
			msg = "Ruta no encontrada"
		}
		return he.Code, errorResponse{Error: msg}
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, validationResponse(ve)
	}

	var se *domain.StoreError
	if errors.As(err, &se) {
		log.Error().
			Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("store failure")
		return http.StatusInternalServerError, errorResponse{
			Error:   "Error al acceder al almacenamiento",
			Details: se.Err.Error(),
		}
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrTypeMismatch):
		return http.StatusUnauthorized, errorResponse{Message: "Tipo no autorizado"}
	case errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusUnauthorized, errorResponse{Message: "No autorizado"}
	case errors.Is(err, domain.ErrInvalidRole):
		return http.StatusBadRequest, errorResponse{Message: "Tipo inválido"}
	case errors.Is(err, domain.ErrSuperadminNotAllowed):
		return http.StatusBadRequest, errorResponse{Message: "Este usuario no puede ser superadmin"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorResponse{Message: "Acción no permitida"}
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, errorResponse{Message: "Usuario no encontrado"}
	case errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound, errorResponse{Message: "Registro no encontrado"}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "Error interno del servidor"}
}

func validationResponse(ve *domain.ValidationError) errorResponse {
	if ve.Field != "qrContent" {
		return errorResponse{Message: ve.Error()}
	}
	if ve.Input == "" {
		return errorResponse{Error: "El contenido del QR es requerido"}
	}
	return errorResponse{
		Error:     fmt.Sprintf("Formato de QR inválido. Esperado: REFERENCIA|SERIAL. Recibido: %q", preview(ve.Input, 50)),
		QRContent: ve.Input,
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
