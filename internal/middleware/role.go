package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/model-booking/internal/access"
)

// RequireAction rejects the request with 403 unless the caller's role may
// perform action on any resource. Use it for routes whose action is not
// owner-scoped, such as catalog management.
func RequireAction(gate access.Gate, action access.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s := SubjectFrom(c)
			if err := gate.Check(s.Role, action, "", s.ID); err != nil {
				return WriteError(c, err)
			}
			return next(c)
		}
	}
}
