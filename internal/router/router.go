package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/tuition-marketplace/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/tuition-marketplace/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/iliyamo/tuition-marketplace/internal/model"      // role constants used for route guards
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Token issuing endpoints do not require an existing session.
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates the refresh token; refresh-access only issues a new
	// access token and leaves the refresh token untouched.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts either an Authorization header (revoke all sessions)
	// or a refresh_token body (revoke one session) and therefore does not
	// sit behind the JWT middleware.
	g.POST("/logout", a.Logout)
	e.POST("/v1/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers unauthenticated browse endpoints.  Guests and
// tutors can search open listings without a session; payloads are
// sanitized and never include other statuses.  The extra middleware
// (typically the response cache) applies only to these routes.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, mw ...echo.MiddlewareFunc) {
	e.GET("/v1/search/listings", p.SearchListings, mw...)
	e.GET("/v1/public/listings/:id", p.GetListing, mw...)
}

// RegisterMarketplace registers the role-guarded marketplace surface:
// student listing management, admin moderation, tutor applications and
// the checkout/payment endpoints.
func RegisterMarketplace(e *echo.Echo, l *handler.ListingHandler, a *handler.ApplicationHandler, p *handler.PaymentHandler, jwtSecret string) {
	// Students own listings, initiate checkouts and screen candidates.
	student := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleStudent))
	student.POST("/listings", l.Create)
	student.GET("/listings", l.ListMine)
	student.GET("/listings/:id", l.Get)
	student.PUT("/listings/:id", l.Update)
	student.DELETE("/listings/:id", l.Withdraw)
	student.GET("/listings/:id/applications", l.ListApplications)
	student.POST("/applications/:id/reject", a.Reject)
	student.POST("/checkout", p.BeginCheckout)
	student.POST("/checkout/confirm", p.ConfirmCheckout)

	// Tutors bid on open listings and manage their own applications.
	tutor := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleTutor))
	tutor.POST("/listings/:id/applications", a.Apply)
	tutor.GET("/applications", a.ListMine)
	tutor.GET("/applications/:id", a.Get)
	tutor.PUT("/applications/:id", a.Amend)
	tutor.DELETE("/applications/:id", a.Withdraw)

	// Admins moderate newly posted listings.
	admin := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	admin.POST("/listings/:id/approve", l.Approve)
	admin.POST("/listings/:id/reject", l.Reject)

	// Payment history is visible to both sides of a hire.
	pay := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleStudent, model.RoleTutor))
	pay.GET("/payments", p.ListMine)

	// The gateway webhook authenticates with neither role; the session it
	// names is re-read from the gateway before anything is trusted.
	e.POST("/v1/webhooks/checkout", p.Webhook)
}
