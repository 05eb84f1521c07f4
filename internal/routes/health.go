package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds liveness/readiness style endpoints. Backends that
// are not configured report "memory" and do not fail readiness.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		healthy := true
		probe := func(configured bool, ping func() error) string {
			if !configured {
				return "memory"
			}
			if err := ping(); err != nil {
				healthy = false
				return err.Error()
			}
			return "ok"
		}
		dbStatus := probe(d.DB != nil, func() error { return d.DB.Ping(ctx) })
		redisStatus := probe(d.Cache != nil, func() error { return d.Cache.Ping(ctx).Err() })

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"postgres": dbStatus, "redis": redisStatus},
			"env":       d.Cfg.AppEnv,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
