// Package router registers the HTTP routes on an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/model-booking/internal/access"
	"github.com/iliyamo/model-booking/internal/handler"
	"github.com/iliyamo/model-booking/internal/middleware"
	"github.com/iliyamo/model-booking/internal/session"
)

// RegisterRoutes registers routes that do not need authentication or the
// /v1 middleware stack.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the account endpoints on g (the /v1 group).
// register, login and both refresh flows need no session; logout, password
// change and /me do.
func RegisterAuth(g *echo.Group, a *handler.AuthHandler, v *session.Validator) {
	auth := g.Group("/auth")
	auth.POST("/register", a.Register)
	auth.POST("/login", a.Login)
	auth.POST("/refresh", a.Refresh)
	auth.POST("/refresh-access", a.RefreshAccess)
	auth.POST("/logout", a.Logout, middleware.Authenticate(v, false))
	auth.POST("/password", a.ChangePassword, middleware.Authenticate(v, false))

	g.GET("/me", a.Me, middleware.Authenticate(v, false))
}

// RegisterCatalog registers model browsing (guests allowed, responses
// cached) and the admin-only write endpoints.
func RegisterCatalog(g *echo.Group, m *handler.ModelHandler, v *session.Validator, gate access.Gate, cache echo.MiddlewareFunc) {
	read := []echo.MiddlewareFunc{middleware.Authenticate(v, true)}
	if cache != nil {
		read = append(read, cache)
	}
	g.GET("/models", m.List, read...)
	g.GET("/models/:id", m.Get, read...)

	admin := []echo.MiddlewareFunc{middleware.Authenticate(v, false), middleware.RequireAction(gate, access.ManageCatalog)}
	g.POST("/models", m.Create, admin...)
	g.PATCH("/models/:id", m.Update, admin...)
	g.DELETE("/models/:id", m.Delete, admin...)
}

// RegisterBookings registers the booking routes. Credentials are validated
// by the envelope dispatcher, so no auth middleware is attached here; a
// missing bearer token is treated as a guest and refused by the gate.
func RegisterBookings(g *echo.Group, b *handler.BookingHandler) {
	g.POST("/bookings", b.Submit)
	g.GET("/bookings", b.List)
	g.GET("/bookings/:id", b.Get)
	g.POST("/bookings/:id/confirm", b.Confirm)
	g.POST("/bookings/:id/cancel", b.Cancel)
	g.POST("/bookings/:id/complete", b.Complete)

	g.POST("/envelope", b.Envelope)
}

// RegisterAdmin registers the admin dashboard.
func RegisterAdmin(g *echo.Group, a *handler.AdminHandler, v *session.Validator, gate access.Gate) {
	g.GET("/admin/stats", a.Stats, middleware.Authenticate(v, false), middleware.RequireAction(gate, access.ViewStats))
}
