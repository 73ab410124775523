package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qrstock/inventory-api/internal/api/metrics"
	"github.com/qrstock/inventory-api/internal/core/domain"
	"github.com/qrstock/inventory-api/internal/core/ports"
)

// UserHandler serves the superadmin user management endpoints. Callers are
// resolved by the credentials middleware before any handler runs.
type UserHandler struct {
	authService ports.AuthService
}

func NewUserHandler(authService ports.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

type saveUserRequest struct {
	Usuario  string `json:"usuario" validate:"required,max=254"`
	Tipo     string `json:"tipo" validate:"required"`
	Password string `json:"password" validate:"required"`
	Cliente  string `json:"cliente" validate:"max=128"`
}

type updateUserRequest struct {
	Tipo     string `json:"tipo" validate:"required"`
	Password string `json:"password"`
	Cliente  string `json:"cliente" validate:"max=128"`
}

type userResponse struct {
	Usuario string `json:"usuario"`
	Tipo    string `json:"tipo"`
	Cliente string `json:"cliente"`
}

type listUsersResponse struct {
	Success bool           `json:"success"`
	Data    []userResponse `json:"data"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func caller(c echo.Context) (domain.Principal, error) {
	p, ok := principalFromContext(c)
	if !ok {
		return domain.Principal{}, domain.ErrNotAuthorized
	}
	return p, nil
}

func badRequest(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

// List handles GET /api/users.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Param        X-Auth-User      header    string  false  "Caller username"
// @Param        X-Auth-Password  header    string  false  "Caller password"
// @Success      200              {object}  listUsersResponse
// @Failure      401              {object}  messageResponse
// @Security     BearerAuth
// @Router       /api/users [get]
func (h *UserHandler) List(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	users, err := h.authService.ListUsers(c.Request().Context(), p)
	if err != nil {
		return err
	}

	out := make([]userResponse, len(users))
	for i, u := range users {
		out[i] = userResponse{Usuario: u.Username, Tipo: u.Role.SheetLabel(), Cliente: u.Client}
	}
	return c.JSON(http.StatusOK, listUsersResponse{Success: true, Data: out})
}

// Save handles POST /api/users, creating the user or updating it in place.
//
// @Summary      Create or update a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      saveUserRequest  true  "User fields"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  messageResponse
// @Failure      401   {object}  messageResponse
// @Security     BearerAuth
// @Router       /api/users [post]
func (h *UserHandler) Save(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	var req saveUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "payload inválido")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(err)
	}

	created, err := h.authService.SaveUser(c.Request().Context(), p, ports.SaveUserInput{
		Username: req.Usuario,
		Type:     req.Tipo,
		Password: req.Password,
		Client:   req.Cliente,
	})
	if err != nil {
		return err
	}

	msg, op := "Usuario actualizado", "updated"
	if created {
		msg, op = "Usuario creado", "created"
	}
	metrics.UserChangesTotal.WithLabelValues(op).Inc()
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: msg})
}

// Update handles PUT /api/users/:usuario. An empty password keeps the current one.
//
// @Summary      Update an existing user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        usuario  path      string             true  "Username"
// @Param        body     body      updateUserRequest  true  "User fields"
// @Success      200      {object}  messageResponse
// @Failure      400      {object}  messageResponse
// @Failure      401      {object}  messageResponse
// @Failure      404      {object}  messageResponse
// @Security     BearerAuth
// @Router       /api/users/{usuario} [put]
func (h *UserHandler) Update(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "payload inválido")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(err)
	}

	err = h.authService.UpdateUser(c.Request().Context(), p, ports.SaveUserInput{
		Username: c.Param("usuario"),
		Type:     req.Tipo,
		Password: req.Password,
		Client:   req.Cliente,
	})
	if err != nil {
		return err
	}
	metrics.UserChangesTotal.WithLabelValues("updated").Inc()
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Usuario actualizado"})
}

// Delete handles DELETE /api/users/:usuario.
//
// @Summary      Delete a user
// @Tags         users
// @Produce      json
// @Param        usuario  path      string  true  "Username"
// @Success      200      {object}  messageResponse
// @Failure      401      {object}  messageResponse
// @Failure      403      {object}  messageResponse
// @Failure      404      {object}  messageResponse
// @Security     BearerAuth
// @Router       /api/users/{usuario} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	if err := h.authService.DeleteUser(c.Request().Context(), p, c.Param("usuario")); err != nil {
		return err
	}
	metrics.UserChangesTotal.WithLabelValues("deleted").Inc()
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Usuario eliminado"})
}
