package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// Role is the permission tier of a user.
type Role string

const (
	RoleWorker     Role = "worker"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// roleAliases maps every accepted spelling, including the labels used by
// existing user sheets, to its role.
var roleAliases = map[string]Role{
	"worker":        RoleWorker,
	"user":          RoleWorker,
	"mecanico":      RoleWorker,
	"mecánico":      RoleWorker,
	"admin":         RoleAdmin,
	"administrador": RoleAdmin,
	"superadmin":    RoleSuperadmin,
	"super":         RoleSuperadmin,
}

// ParseRole resolves a user type as typed by a person or stored in a sheet.
func ParseRole(s string) (Role, error) {
	if r, ok := roleAliases[NormalizeUsername(s)]; ok {
		return r, nil
	}
	return "", ErrInvalidRole
}

// SheetLabel is the TIPO value written to spreadsheet user tables.
func (r Role) SheetLabel() string {
	switch r {
	case RoleWorker:
		return "mecanico"
	case RoleAdmin:
		return "administrador"
	case RoleSuperadmin:
		return "super"
	}
	return string(r)
}

// AcceptsLogin reports whether a user holding r may sign in through the
// login path declared as loginType. Superadmins also sign in as admin.
func (r Role) AcceptsLogin(loginType Role) bool {
	return r == loginType || (r == RoleSuperadmin && loginType == RoleAdmin)
}

// NormalizeUsername trims and case-folds a username so lookups are
// case-insensitive.
func NormalizeUsername(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Credential is a stored user account.
type Credential struct {
	Username string `json:"usuario" bson:"username"`
	Role     Role   `json:"tipo" bson:"role"`
	Password string `json:"-" bson:"password"`
	Client   string `json:"cliente" bson:"client"`
}

// Principal is the authenticated caller of a request.
type Principal struct {
	Username string
	Role     Role
	Client   string
}
