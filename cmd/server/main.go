package main // Entry point package

import (
	"context" // Context for startup database calls
	"log"     // Logging library
	"time"    // Timeouts for schema and seed work

	"github.com/joho/godotenv"    // Load .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/clinicore/access-control/internal/config"
	"github.com/clinicore/access-control/internal/database"
	"github.com/clinicore/access-control/internal/handler"
	"github.com/clinicore/access-control/internal/middleware"
	"github.com/clinicore/access-control/internal/obs"
	"github.com/clinicore/access-control/internal/queue"
	"github.com/clinicore/access-control/internal/repository"
	"github.com/clinicore/access-control/internal/router"
	"github.com/clinicore/access-control/internal/service"
)

func main() {
	// Load variables from a local .env file if one exists.  Missing files
	// are fine; production supplies real environment variables.
	_ = godotenv.Load()

	cfg := config.Load() // Load environment config

	// Open the MySQL pool and make sure the schema and built-in RBAC rows
	// exist before serving any traffic.
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("schema: %v", err)
	}

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	perms := repository.NewPermissionRepo(db)
	tokens := repository.NewTokenRepo(db)

	// Seeding is idempotent, so every instance can run it at boot.
	if err := repository.SeedBuiltins(ctx, roles, perms); err != nil {
		log.Fatalf("seed: %v", err)
	}

	hasher := service.NewHasher(cfg.BcryptCost, cfg.HashWorkers)
	tokenSvc := service.NewTokenService(tokens, users, cfg.JWTSecret, cfg.AccessTTLMin, cfg.RefreshTTLDays,
		service.WithNotifier(service.PublishSecurityEvent))

	authH := handler.NewAuthHandler(cfg, users, roles, tokenSvc, hasher)
	rbacH := handler.NewRBACHandler(roles, perms)

	obs.Init() // Register Prometheus collectors

	// Redis backs both the rate limiter and the permission-catalog cache.
	// A nil client degrades each middleware rather than failing startup.
	rdb := config.NewRedisClient()
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	catalogCache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	e := echo.New() // Create Echo instance
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret, rateLimit)
	router.RegisterRBAC(e, rbacH, cfg.JWTSecret, roles, catalogCache)

	// Drain security events (token reuse, mass revocation) in the
	// background; the consumer reconnects on its own if the broker drops.
	go func() {
		if err := queue.StartSecurityConsumer(); err != nil {
			log.Printf("security consumer: %v", err)
		}
	}()

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err)
	}
}
