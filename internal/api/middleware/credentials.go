package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/qrstock/inventory-api/internal/core/domain"
)

// Headers carrying re-presented credentials.
const (
	HeaderAuthUser     = "X-Auth-User"
	HeaderAuthPassword = "X-Auth-Password"
)

// maxCredentialBody bounds how much of a request body is buffered while
// looking for authUser/authPassword.
const maxCredentialBody = 1 << 20

// Authenticator resolves a username and password into the calling principal.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*domain.Principal, error)
}

type bodyCredentials struct {
	AuthUser     string `json:"authUser"`
	AuthPassword string `json:"authPassword"`
}

// Credentials requires an authenticated caller. A principal already set by
// BearerToken is accepted as is; otherwise the caller must re-present its
// username and password in the X-Auth-* headers or in the JSON body as
// authUser/authPassword. The body is restored for the handler.
func Credentials(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if u, _ := c.Get("username").(string); u != "" {
				return next(c)
			}

			user := c.Request().Header.Get(HeaderAuthUser)
			pass := c.Request().Header.Get(HeaderAuthPassword)
			if user == "" || pass == "" {
				var err error
				if user, pass, err = credentialsFromBody(c); err != nil {
					return err
				}
			}
			if user == "" || pass == "" {
				return domain.ErrNotAuthorized
			}

			p, err := auth.Authenticate(c.Request().Context(), user, pass)
			if err != nil {
				return err
			}

			c.Set("username", p.Username)
			c.Set("role", string(p.Role))
			c.Set("client_id", p.Client)
			return next(c)
		}
	}
}

func credentialsFromBody(c echo.Context) (string, string, error) {
	req := c.Request()
	if req.Body == nil || !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return "", "", nil
	}

	raw, err := io.ReadAll(io.LimitReader(req.Body, maxCredentialBody))
	if err != nil {
		return "", "", err
	}
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(raw))

	var bc bodyCredentials
	if len(raw) == 0 || json.Unmarshal(raw, &bc) != nil {
		return "", "", nil
	}
	return bc.AuthUser, bc.AuthPassword, nil
}
