package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/model-booking/internal/access"
	"github.com/iliyamo/model-booking/internal/availability"
	"github.com/iliyamo/model-booking/internal/booking"
	"github.com/iliyamo/model-booking/internal/catalog"
	"github.com/iliyamo/model-booking/internal/clock"
	"github.com/iliyamo/model-booking/internal/config"
	"github.com/iliyamo/model-booking/internal/database"
	"github.com/iliyamo/model-booking/internal/envelope"
	"github.com/iliyamo/model-booking/internal/handler"
	"github.com/iliyamo/model-booking/internal/logger"
	"github.com/iliyamo/model-booking/internal/middleware"
	"github.com/iliyamo/model-booking/internal/queue"
	"github.com/iliyamo/model-booking/internal/repository"
	"github.com/iliyamo/model-booking/internal/router"
	"github.com/iliyamo/model-booking/internal/session"
	"github.com/iliyamo/model-booking/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{}).Fatal("config", "error", err)
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "model-booking"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB.DSN())
	if err != nil {
		log.Fatal("mysql connect failed", "error", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal("schema migration failed", "error", err)
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unreachable: rate limit and cache disabled, revocations kept in memory", "addr", cfg.Redis.Address())
	} else {
		defer rdb.Close()
	}

	clk := clock.System()
	gate := access.NewGate()
	validate := validation.New()

	// Stores
	bookings := repository.NewRetryingStore(repository.NewBookingRepo(db), repository.RetryPolicy{
		MaxAttempts: cfg.Store.MaxAttempts,
		Timeout:     cfg.Store.Timeout,
		Backoff:     cfg.Store.Backoff,
		MaxBackoff:  cfg.Store.MaxBackoff,
	}, log.With("component", "store"))
	models := repository.NewModelRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	index := newIndex(cfg, rdb, log)
	events := newPublisher(cfg.Events, log)
	defer events.Close()

	var revocations session.RevocationStore = session.NewMemoryRevocations(clk)
	if rdb != nil {
		revocations = session.NewRedisRevocations(rdb, "revoked", clk)
	}
	issuer := session.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL(), clk)
	validator := session.NewValidator(cfg.Auth.JWTSecret, revocations, clk)

	catalogSvc := catalog.NewService(models, gate, clk, log, cfg.Booking.PriceFloor,
		catalog.WithChangeHook(func(ctx context.Context) {
			if rdb == nil || !cfg.Cache.Enabled {
				return
			}
			if err := middleware.PurgeCache(ctx, cfg.Cache, rdb); err != nil {
				log.Warn("cache purge failed", "error", err)
			}
		}))

	policy := booking.DefaultPolicy()
	policy.MinLeadTime = cfg.Booking.MinLeadTime
	policy.MinDuration = cfg.Booking.MinDuration
	manager := booking.NewManager(booking.Deps{
		Store:   bookings,
		Catalog: catalogSvc,
		Index:   index,
		Gate:    gate,
		Clock:   clk,
		Events:  events,
		Log:     log,
		Policy:  policy,
	})

	// The index must agree with the confirmed bookings before traffic arrives.
	if err := manager.Rebuild(ctx); err != nil {
		log.Fatal("availability rebuild failed", "error", err)
	}
	go manager.RunSweeper(ctx, cfg.Booking.SweepInterval)

	if cfg.Admin.Email != "" {
		created, err := repository.EnsureUser(ctx, users, cfg.Admin.Email, cfg.Admin.Password, string(access.RoleAdmin), cfg.Auth.BcryptCost)
		if err != nil {
			log.Fatal("admin bootstrap failed", "error", err)
		}
		if created {
			log.Info("admin account created", "email", cfg.Admin.Email)
		}
	}

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.Validator = validate
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				log.Error("request", append(args, "error", v.Error)...)
				return nil
			}
			log.Info("request", args...)
			return nil
		},
	}))

	router.RegisterRoutes(e)
	v1 := e.Group("/v1", middleware.NewTokenBucket(cfg.RateLimit, rdb, log))
	router.RegisterAuth(v1, handler.NewAuthHandler(cfg.Auth, users, tokens, issuer, revocations, clk), validator)

	var cache echo.MiddlewareFunc
	if rdb != nil && cfg.Cache.Enabled {
		cache = middleware.NewRedisCache(cfg.Cache, rdb)
	}
	router.RegisterCatalog(v1, handler.NewModelHandler(catalogSvc), validator, gate, cache)

	dispatcher := envelope.NewDispatcher(validator, manager, validate, log)
	router.RegisterBookings(v1, handler.NewBookingHandler(dispatcher))
	router.RegisterAdmin(v1, handler.NewAdminHandler(manager), validator, gate)

	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", "addr", addr, "env", cfg.Env, "index", cfg.IndexBackend, "events", cfg.Events.Driver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
	log.Info("stopped")
}

func newIndex(cfg config.Config, rdb *redis.Client, log *logger.Logger) availability.Index {
	if strings.ToLower(cfg.IndexBackend) == "redis" {
		if rdb == nil {
			log.Fatal("INDEX_BACKEND=redis but redis is unreachable", "addr", cfg.Redis.Address())
		}
		return availability.NewRedisIndex(rdb, "avail")
	}
	return availability.NewMemoryIndex()
}

func newPublisher(cfg config.EventsConfig, log *logger.Logger) queue.Publisher {
	switch strings.ToLower(cfg.Driver) {
	case "amqp":
		p, err := queue.NewAMQPPublisher(cfg.RabbitURL, cfg.Exchange, log)
		if err != nil {
			log.Warn("amqp publisher unavailable, events dropped", "error", err)
			return queue.NopPublisher{}
		}
		return p
	case "kafka":
		p, err := queue.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Warn("kafka publisher unavailable, events dropped", "error", err)
			return queue.NopPublisher{}
		}
		return p
	}
	return queue.NopPublisher{}
}
