package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the connection pool snapshot the health endpoint exposes.
type PoolStats struct {
	Total       int32  `json:"total_conns"`
	Idle        int32  `json:"idle_conns"`
	Acquired    int32  `json:"acquired_conns"`
	Max         int32  `json:"max_conns"`
	Acquires    int64  `json:"acquire_count"`
	AcquireWait string `json:"acquire_wait"`
}

func snapshot(pool *pgxpool.Pool) PoolStats {
	s := pool.Stat()
	return PoolStats{
		Total:       s.TotalConns(),
		Idle:        s.IdleConns(),
		Acquired:    s.AcquiredConns(),
		Max:         s.MaxConns(),
		Acquires:    s.AcquireCount(),
		AcquireWait: s.AcquireDuration().String(),
	}
}

const healthPingTimeout = 5 * time.Second

// HealthHandler reports database reachability plus pool statistics. A
// failing ping answers 503.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	type response struct {
		Status string    `json:"status"`
		Error  string    `json:"error,omitempty"`
		Pool   PoolStats `json:"pool"`
	}
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthPingTimeout)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, response{
				Status: "unhealthy",
				Error:  err.Error(),
				Pool:   snapshot(pool),
			})
		}
		return c.JSON(http.StatusOK, response{Status: "healthy", Pool: snapshot(pool)})
	}
}
