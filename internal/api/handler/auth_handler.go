package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/qrstock/inventory-api/internal/api/metrics"
	"github.com/qrstock/inventory-api/internal/core/domain"
	"github.com/qrstock/inventory-api/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type validateUserRequest struct {
	Usuario  string `json:"usuario"`
	Tipo     string `json:"tipo"`
	Password string `json:"password"`
}

type validateUserResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Usuario   string `json:"usuario,omitempty"`
	Tipo      string `json:"tipo,omitempty"`
	Role      string `json:"role,omitempty"`
	Cliente   string `json:"cliente,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// responseRole is the role name the front end switches on.
func responseRole(r domain.Role) string {
	switch r {
	case domain.RoleSuperadmin:
		return "superadmin"
	case domain.RoleAdmin:
		return "admin"
	default:
		return "user"
	}
}

// ValidateUser checks a login attempt.
//
// Rejected credentials are reported with 200 and success=false; only a
// malformed request is a 400.
//
// @Summary      Validate user credentials
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      validateUserRequest  true  "Login attempt"
// @Success      200   {object}  validateUserResponse
// @Failure      400   {object}  validateUserResponse
// @Failure      500   {object}  map[string]any
// @Router       /api/validate-user [post]
func (h *AuthHandler) ValidateUser(c echo.Context) error {
	var req validateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "payload inválido")
	}
	if strings.TrimSpace(req.Usuario) == "" || strings.TrimSpace(req.Tipo) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, validateUserResponse{
			Message: "Usuario, tipo y contraseña son requeridos",
		})
	}

	res, err := h.authService.Validate(c.Request().Context(), req.Usuario, req.Tipo, req.Password)
	if err != nil {
		var msg, result string
		switch {
		case errors.Is(err, domain.ErrTypeMismatch):
			msg, result = "Tipo no autorizado", "type_mismatch"
		case errors.Is(err, domain.ErrNotAllowListed):
			msg, result = "Usuario no autorizado como superadmin", "not_authorized"
		case errors.Is(err, domain.ErrNotAuthorized):
			msg, result = "Usuario no autorizado", "not_authorized"
		default:
			metrics.AuthAttemptsTotal.WithLabelValues("error").Inc()
			return err
		}
		metrics.AuthAttemptsTotal.WithLabelValues(result).Inc()
		return c.JSON(http.StatusOK, validateUserResponse{Message: msg})
	}

	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	resp := validateUserResponse{
		Success: true,
		Usuario: res.Username,
		Tipo:    res.Role.SheetLabel(),
		Role:    responseRole(res.Role),
		Cliente: res.Client,
		Token:   res.Token,
	}
	if !res.ExpiresAt.IsZero() {
		resp.ExpiresAt = res.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, resp)
}
