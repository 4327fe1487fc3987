package rpcapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// role models the three authorization tiers the admin surface exposes.
// Authentication itself (verifying who the caller is) happens upstream of
// this process; the engine only trusts the role the upstream gateway
// attaches to the request and enforces tier ordering.
type role int

const (
	roleNone role = iota
	roleAuthed
	roleManager
	roleAdmin
)

const roleHeader = "X-Sla-Role"

func roleFromHeader(v string) role {
	switch v {
	case "admin":
		return roleAdmin
	case "manager":
		return roleManager
	case "authed":
		return roleAuthed
	default:
		return roleNone
	}
}

// requireRole rejects requests whose attached role is below min, returning
// the same structured-error shape the rest of the RPC boundary uses.
func requireRole(min role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := roleFromHeader(c.Request().Header.Get(roleHeader))
			if got < min {
				return writeError(c, http.StatusForbidden, "Forbidden", "FORBIDDEN")
			}
			return next(c)
		}
	}
}
