package middleware

// identity.go holds helpers shared across middleware files for
// reading the caller identity that JWTAuth stored in the context.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// callerKey returns a stable string identifying the caller for rate
// limit bucketing: the user id when authenticated, otherwise "guest".
func callerKey(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case uint64:
		if v != 0 {
			return strconv.FormatUint(v, 10)
		}
	case string:
		if v != "" {
			return v
		}
	}
	return "guest"
}
