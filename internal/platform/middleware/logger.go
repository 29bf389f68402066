package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger writes one structured line per request. Agenda traffic carries the
// practitioner and date query parameters so a practitioner's day can be
// followed across availability reads and booking writes.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}
			evt.
				Str("request_id", requestIDOf(c)).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Int64("bytes_out", res.Size).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP())
			if pid := c.QueryParam("practitioner_id"); pid != "" {
				evt.Str("practitioner_id", pid)
			}
			if date := c.QueryParam("date"); date != "" {
				evt.Str("date", date)
			}
			evt.Msg("request")

			return err
		}
	}
}
