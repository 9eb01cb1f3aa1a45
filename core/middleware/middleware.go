package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"go-meeting-core/core/controller"
	"go-meeting-core/core/errors"
	"go-meeting-core/core/logger"
)

const ContextUserID = "user_id"

type Middleware struct{}

func NewMiddleware() *Middleware {
	return &Middleware{}
}

// Identity extracts the authenticated caller identity placed upstream by the
// gateway. The core never performs authentication itself; requests without a
// valid X-User-ID are rejected.
func (m *Middleware) Identity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get("X-User-ID")
			userID, err := uuid.Parse(raw)
			if err != nil {
				return controller.NewErrorResponse(http.StatusUnauthorized, errors.ErrUnauthorized, "missing or invalid user identity")
			}
			c.Set(ContextUserID, userID)
			return next(c)
		}
	}
}

// RequestLogger logs one line per request with latency.
func (m *Middleware) RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("HTTP:Request",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", c.Response().Status,
				"latency_ms", time.Since(start).Milliseconds(),
			)
			return err
		}
	}
}

// UserID returns the authenticated user id stored by Identity.
func UserID(c echo.Context) uuid.UUID {
	if id, ok := c.Get(ContextUserID).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
