package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/videotube/account-service/internal/api/handler"
	"github.com/videotube/account-service/internal/core/ports"
)

// Auth validates the access token and injects its claims into context. The
// token is read from the accessToken cookie, falling back to a Bearer header.
func Auth(verifier ports.TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := accessToken(c)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized request")
			}

			claims, err := verifier.ParseAccessToken(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}

			c.Set(handler.ContextUserID, claims.UserID)
			c.Set("username", claims.Username)
			c.Set("email", claims.Email)

			return next(c)
		}
	}
}

func accessToken(c echo.Context) string {
	if ck, err := c.Cookie(handler.AccessTokenCookie); err == nil && ck.Value != "" {
		return ck.Value
	}

	parts := strings.SplitN(c.Request().Header.Get(echo.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
