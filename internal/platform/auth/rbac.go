package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole gates a route on the caller holding at least one of the given
// roles. The admin role satisfies every check, so mutating routes stay open
// to operators without enumerating admin everywhere.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			held := RolesFromContext(c.Request().Context())
			if hasAnyRole(held, roles) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

func hasAnyRole(held, required []string) bool {
	for _, h := range held {
		if h == "admin" {
			return true
		}
		for _, r := range required {
			if h == r {
				return true
			}
		}
	}
	return false
}
