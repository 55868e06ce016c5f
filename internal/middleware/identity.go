package middleware // reusable HTTP middleware for the booking API

import (
    "net/http" // HTTP status codes for responses
    "strings"  // prefix checking and trimming for the Authorization header

    "github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
    "github.com/labstack/echo/v4"  // Echo framework used for defining middleware
)

// Identity returns an Echo middleware that validates a Bearer access
// token and injects the caller's identity into the request context.
// The box office terminals authenticate against the identity service
// elsewhere; this middleware only verifies the token they carry.  After
// it runs, handlers can read `c.Get("staff_id")` and `c.Get("role")`.
func Identity(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // A valid header is "Bearer " followed by the JWT.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            // Parse with HS256 and our secret; reject any other signing
            // method so a token signed with "none" can never pass.
            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }

            // Leave type assertions to downstream consumers.
            c.Set("staff_id", claims["sub"])
            c.Set("role", claims["role"])
            return next(c)
        }
    }
}
