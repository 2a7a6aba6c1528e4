package middleware // reusable HTTP middleware for authentication and authorization

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects the token's claims into the request context. The
// provided secret must match the one used when issuing tokens.
// Handlers behind this middleware read the caller's identity via
// c.Get("user_id") (uint64), c.Get("email") (string, normalized) and
// c.Get("role") (string).
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			raw := ""
			switch {
			case strings.HasPrefix(auth, "Bearer "):
				raw = strings.TrimPrefix(auth, "Bearer ")
			case c.QueryParam("token") != "":
				// Browser WebSocket clients cannot set headers on the
				// upgrade request, so the live endpoint passes ?token=.
				raw = c.QueryParam("token")
			default:
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			// Parse with HS256 only; tokens signed with any other
			// algorithm are rejected.
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

			c.Set("user_id", subjectID(claims))
			if email, ok := claims["email"].(string); ok {
				c.Set("email", strings.ToLower(email))
			}
			c.Set("role", claims["role"])
			return next(c)
		}
	}
}

// subjectID converts the sub claim to uint64. JSON numbers decode as
// float64; string subjects are parsed for compatibility.
func subjectID(claims jwt.MapClaims) uint64 {
	switch v := claims["sub"].(type) {
	case float64:
		return uint64(v)
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
