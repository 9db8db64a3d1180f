package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/model-booking/internal/access"
	"github.com/iliyamo/model-booking/internal/apperror"
	"github.com/iliyamo/model-booking/internal/session"
)

// Authenticate validates the bearer credential and stores the subject and
// session in the context. With optional set, a request without an
// Authorization header continues as a guest; a header that fails
// validation is rejected either way.
func Authenticate(v *session.Validator, optional bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := BearerToken(c)
			if raw == "" {
				if optional {
					c.Set(subjectKey, access.Guest)
					return next(c)
				}
				return WriteError(c, apperror.AuthMalformed(errors.New("missing bearer token")))
			}

			sess, err := v.Validate(c.Request().Context(), raw)
			if err != nil {
				return WriteError(c, err)
			}
			c.Set(sessionKey, sess)
			c.Set(subjectKey, access.Subject{ID: sess.SubjectID, Role: sess.Role})
			return next(c)
		}
	}
}
