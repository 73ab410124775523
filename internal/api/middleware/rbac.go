package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/qrstock/inventory-api/internal/core/domain"
)

// RBAC enforces role-based access control. Callers outside allowedRoles get
// domain.ErrNotAuthorized, rendered as 401 by the error handler.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if _, ok := allowed[domain.Role(role)]; !ok {
				return domain.ErrNotAuthorized
			}
			return next(c)
		}
	}
}
