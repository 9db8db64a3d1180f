package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports that the process is serving. It does not touch MySQL or
// Redis so a slow dependency never takes the instance out of rotation.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
