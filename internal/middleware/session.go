package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const SessionIDKey = "session_id"

// SessionMiddleware assigns each browser a session id cookie. The payment
// session record that bridges the hosted-page redirect is keyed by it, so
// the cookie has to survive the round trip to the gateway and back.
func SessionMiddleware(cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				cookie = &http.Cookie{
					Name:     cookieName,
					Value:    uuid.NewString(),
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				}
				c.SetCookie(cookie)
			}
			c.Set(SessionIDKey, cookie.Value)
			return next(c)
		}
	}
}

// SessionID returns the session id the middleware attached.
func SessionID(c echo.Context) string {
	id, _ := c.Get(SessionIDKey).(string)
	return id
}
