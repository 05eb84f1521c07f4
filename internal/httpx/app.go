package httpx

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// AppConfig is the fiber configuration shared by the server and in-process
// tests. Immutable makes Params, Get and friends return copies: client
// references and ids read from a request end up stored in ledger rows and
// repositories, and fasthttp reuses the request buffers they point into.
func AppConfig(appName string, logger *slog.Logger) fiber.Config {
	return fiber.Config{
		AppName:      appName,
		Immutable:    true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    64 * 1024,
		ErrorHandler: ErrorHandler(logger),
	}
}
