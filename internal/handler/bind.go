package handler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/model-booking/internal/apperror"
)

// bind decodes the request body into dst and runs the registered validator.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperror.Validation("invalid body", map[string]any{"error": err.Error()})
	}
	return c.Validate(dst)
}

// storeTimeout bounds the store calls an auth request makes.
const storeTimeout = 5 * time.Second

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), storeTimeout)
}
