package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-reservation/internal/handler"
	"github.com/iliyamo/slot-reservation/internal/middleware"
	"github.com/iliyamo/slot-reservation/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health
// check.
func RegisterRoutes(e *echo.Echo) {
	// Used by load balancers and monitoring to verify the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes.
// Unauthenticated operations live under /v1/auth; profile endpoints
// require a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Issues a new access token without rotating the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout does not require JWT middleware: the handler accepts either
	// a bearer token (revoke all sessions) or a refresh_token in the
	// body (revoke one session).
	g.POST("/logout", a.Logout)
	e.POST("/v1/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	auth.PUT("/me/profile", a.UpdateProfile)
}

// RegisterPublic registers the unauthenticated browse surface: the
// upcoming-slot listing guests see before signing in. cacheMW, when
// non-nil, serves repeated listing hits from Redis.
func RegisterPublic(e *echo.Echo, s *handler.SlotHandler, cacheMW echo.MiddlewareFunc) {
	if cacheMW != nil {
		e.GET("/v1/slots", s.ListUpcoming, cacheMW)
		return
	}
	e.GET("/v1/slots", s.ListUpcoming)
}

// RegisterParticipant registers booking operations for authenticated
// users of either role.
func RegisterParticipant(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.POST("/slots/:id/book", b.Book)
	g.GET("/my-booking", b.MyBooking)
	g.DELETE("/my-booking", b.CancelMyBooking)
	// Atomic move to another slot; the original booking survives a
	// failed move.
	g.PUT("/my-booking", b.ModifyMyBooking)
}

// RegisterAdmin registers the management surface behind the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin))

	g.GET("/slots", a.Dashboard)
	g.POST("/slots", a.CreateSlot)
	g.DELETE("/slots/:id", a.DeleteSlot)
	g.POST("/slots/:id/recount", a.Recount)
	g.DELETE("/bookings/:id", a.CancelBooking)

	g.GET("/admins", a.ListAdmins)
	g.POST("/slots/:id/admins/:adminID/toggle", a.ToggleAssignment)
	g.PUT("/slots/:id/admins/:adminID", a.AssignAdmin)
	g.DELETE("/slots/:id/admins/:adminID", a.UnassignAdmin)
}

// RegisterLive registers the change-event stream. The JWT middleware
// accepts ?token= so browser WebSocket clients can authenticate.
func RegisterLive(e *echo.Echo, l *handler.LiveHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.GET("/live", l.Subscribe)
}
