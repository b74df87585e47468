package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// readiness is the /readyz body when the session store is Postgres-backed.
type readiness struct {
	Status     string `json:"status"`
	Store      string `json:"store"`
	PingMS     int64  `json:"ping_ms"`
	Error      string `json:"error,omitempty"`
	TotalConns int32  `json:"total_conns"`
	IdleConns  int32  `json:"idle_conns"`
	InUseConns int32  `json:"in_use_conns"`
	MaxConns   int32  `json:"max_conns"`
}

// HealthHandler serves the session-store readiness check. A session turn
// needs one connection for load and one logical round trip for save+event,
// so an unreachable pool means no turn can complete and readiness fails.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		start := time.Now()
		pingErr := pool.Ping(ctx)

		stat := pool.Stat()
		body := readiness{
			Status:     "healthy",
			Store:      "postgres",
			PingMS:     time.Since(start).Milliseconds(),
			TotalConns: stat.TotalConns(),
			IdleConns:  stat.IdleConns(),
			InUseConns: stat.AcquiredConns(),
			MaxConns:   stat.MaxConns(),
		}

		if pingErr != nil {
			body.Status = "unhealthy"
			body.Error = pingErr.Error()
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		return c.JSON(http.StatusOK, body)
	}
}
