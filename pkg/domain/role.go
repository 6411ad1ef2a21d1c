package domain

import (
	"strings"

	dErrors "rumbo/pkg/domain-errors"
)

// Role is the canonical enumeration of actor roles. The original platform
// re-derived role/id mappings ad hoc per call site; here the mapping is
// constructed once and every layer consumes this type.
type Role string

const (
	RoleClient   Role = "CLIENT"
	RoleAdmin    Role = "ADMIN"
	RoleOperator Role = "OPERATOR"
)

// roleNames is the single mapping table from wire names (including the legacy
// Spanish names still emitted by older dashboard builds) to canonical roles.
var roleNames = map[string]Role{
	"CLIENT":   RoleClient,
	"CLIENTE":  RoleClient,
	"ADMIN":    RoleAdmin,
	"OPERATOR": RoleOperator,
	"OPERADOR": RoleOperator,
}

// ParseRole maps a wire-format role name to its canonical Role.
func ParseRole(raw string) (Role, error) {
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	role, ok := roleNames[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", raw)
	}
	return role, nil
}

// IsValid checks the role is one of the supported enum values.
func (r Role) IsValid() bool {
	switch r {
	case RoleClient, RoleAdmin, RoleOperator:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}
