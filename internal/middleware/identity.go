package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/model-booking/internal/access"
	"github.com/iliyamo/model-booking/internal/apperror"
	"github.com/iliyamo/model-booking/internal/session"
)

// Context keys set by Authenticate.
const (
	subjectKey = "subject"
	sessionKey = "session"
)

// BearerToken returns the credential from the Authorization header, or ""
// when there is none.
func BearerToken(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}

// SubjectFrom returns the authenticated caller, or access.Guest.
func SubjectFrom(c echo.Context) access.Subject {
	if s, ok := c.Get(subjectKey).(access.Subject); ok {
		return s
	}
	return access.Guest
}

// SessionFrom returns the validated session, if the request carried one.
func SessionFrom(c echo.Context) (session.Session, bool) {
	s, ok := c.Get(sessionKey).(session.Session)
	return s, ok
}

// WriteError renders err as the JSON error body with its status code.
func WriteError(c echo.Context, err error) error {
	appErr := apperror.AsAppError(err)
	return c.JSON(appErr.StatusCode(), appErr.Response())
}
