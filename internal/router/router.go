package router // defines how HTTP routes are registered for the booking API

import (
    "github.com/labstack/echo/v4" // Echo web framework used for routing

    "github.com/iliyamo/cinema-box-office/internal/handler"
    "github.com/iliyamo/cinema-box-office/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
    // Used by load balancers and monitoring to verify the service is up.
    e.GET("/healthz", handler.Health)
}

// RegisterBooking registers the box-office endpoints and their
// middleware.  All of them require a valid identity token: the API is
// operated by cashier terminals and the kiosk backend, never directly by
// guests.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, s *handler.SeatMapHandler, cu *handler.CustomerHandler, jwtSecret string) {
    g := e.Group("/v1")
    g.Use(middleware.Identity(jwtSecret))

    // Order lifecycle.  Create holds the seats, the PUT/POST mutations
    // re-price the order, complete books the seats for good.
    g.POST("/orders", b.Create)
    g.GET("/orders/:id", b.Get)
    g.PUT("/orders/:id/products", b.SetProducts)
    g.POST("/orders/:id/discount", b.ApplyDiscount)
    g.DELETE("/orders/:id/discount", b.ClearDiscount)
    g.POST("/orders/:id/complete", b.Complete)
    g.DELETE("/orders/:id", b.Cancel)

    // Live seat availability for the seat picker.
    g.GET("/showtimes/:id/seats", s.Get)

    // Walk-in customer lookup by phone number.
    g.GET("/customers", cu.Lookup)
}
