package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/model-booking/internal/booking"
	"github.com/iliyamo/model-booking/internal/middleware"
)

// AdminHandler serves the admin dashboard.
type AdminHandler struct {
	Bookings *booking.Manager
}

func NewAdminHandler(m *booking.Manager) *AdminHandler {
	return &AdminHandler{Bookings: m}
}

// Stats: GET /v1/admin/stats
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	stats, err := h.Bookings.Stats(ctx, middleware.SubjectFrom(c))
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
