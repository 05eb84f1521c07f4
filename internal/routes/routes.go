package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/chema/chema_ledger/internal/auth"
	"github.com/chema/chema_ledger/internal/campaign"
	"github.com/chema/chema_ledger/internal/config"
	"github.com/chema/chema_ledger/internal/funding"
	"github.com/chema/chema_ledger/internal/httpx"
	"github.com/chema/chema_ledger/internal/identity"
	"github.com/chema/chema_ledger/internal/ledger"
	"github.com/chema/chema_ledger/internal/membership"
	"github.com/chema/chema_ledger/internal/middleware"
	"github.com/chema/chema_ledger/internal/notification"
	"github.com/chema/chema_ledger/internal/payments"
	"github.com/chema/chema_ledger/internal/settlement"
	"github.com/chema/chema_ledger/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	// Gateway overrides the static funding gateway when set.
	Gateway funding.Gateway

	// Notifier overrides the logging notifier when set.
	Notifier notification.Notifier
}

// backends selects Postgres repositories when a pool is configured and the
// in-memory ones otherwise.
type backends struct {
	store      ledger.Store
	identities identity.Repository
	members    membership.Repository
	campaigns  campaign.Repository
}

func newBackends(db *pgxpool.Pool) backends {
	if db != nil {
		return backends{
			store:      ledger.NewPostgres(db),
			identities: identity.NewPostgresRepository(db),
			members:    membership.NewPostgresRepository(db),
			campaigns:  campaign.NewPostgresRepository(db),
		}
	}
	return backends{
		store:      ledger.NewInMemory(),
		identities: identity.NewMemoryRepository(),
		members:    membership.NewMemoryRepository(),
		campaigns:  campaign.NewMemoryRepository(),
	}
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	} else {
		app.Use(middleware.Audit(d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Services and handlers
	b := newBackends(d.DB)
	identitySvc := identity.NewService(b.identities)
	campaignSvc := campaign.NewService(b.campaigns, b.members)

	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}
	engine, err := settlement.New(settlement.Deps{
		Store:      b.store,
		Campaigns:  campaignSvc,
		Authorizer: b.members,
		Principals: identitySvc,
		Gateway:    d.Gateway,
		Notifier:   notifier,
		Logger:     d.Logger,
	})
	if err != nil {
		return err
	}

	validator := httpx.NewValidator()
	authSvc := auth.NewService(d.Cfg, b.identities)
	identityHandler := identity.NewHandler(identitySvc, engine, validator, d.Logger)
	authHandler := auth.NewHandler(identitySvc, authSvc, engine, validator)
	walletHandler := wallet.NewHandler(engine, validator)
	paymentHandler := payments.NewHandler(engine, validator)
	campaignHandler := campaign.NewHandler(campaignSvc, engine, validator)
	groupHandler := membership.NewHandler(b.members, validator)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterIdentityRoutes(api, identityHandler)
	jwtmw := middleware.JWTAuth(authSvc)
	rateLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit)
	RegisterAuthRoutes(api, authHandler, rateLimiter, jwtmw)

	// Protected routes
	protected := api.Group("", jwtmw, middleware.ActiveGroup(b.members, d.Logger))
	protected.Get("/me", func(c *fiber.Ctx) error {
		uid, err := httpx.RequireUser(c)
		if err != nil {
			return err
		}
		user, err := identitySvc.FindByID(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "user not found")
		}
		return c.JSON(fiber.Map{
			"user_id":       user.ID,
			"email":         user.Email,
			"display_name":  user.DisplayName,
			"token_version": user.TokenVersion,
			"created_at":    user.CreatedAt,
			"last_login":    user.LastLogin,
		})
	})

	var money fiber.Handler
	if d.Cache != nil {
		money = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	RegisterWalletRoutes(protected, walletHandler, money)
	RegisterPaymentRoutes(protected, paymentHandler, money)
	RegisterGroupRoutes(protected, groupHandler, campaignHandler, money)
	RegisterCampaignRoutes(protected, campaignHandler, money)

	return nil
}

// withMoney prepends the idempotency middleware when it is configured.
func withMoney(money fiber.Handler, h fiber.Handler) []fiber.Handler {
	if money == nil {
		return []fiber.Handler{h}
	}
	return []fiber.Handler{money, h}
}
