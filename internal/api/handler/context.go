package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/qrstock/inventory-api/internal/core/domain"
)

// Context keys set by the authentication middleware.
const (
	CtxUsername = "username"
	CtxRole     = "role"
	CtxClient   = "client_id"
)

// principalFromContext rebuilds the caller injected by the auth middleware.
// A missing username means the request is anonymous.
func principalFromContext(c echo.Context) (domain.Principal, bool) {
	username, _ := c.Get(CtxUsername).(string)
	if username == "" {
		return domain.Principal{}, false
	}
	role, _ := c.Get(CtxRole).(string)
	client, _ := c.Get(CtxClient).(string)
	return domain.Principal{Username: username, Role: domain.Role(role), Client: client}, true
}
