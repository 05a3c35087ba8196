package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/shift-desk/internal/api/http"
	"github.com/spec-kit/shift-desk/internal/api/http/handlers"
	"github.com/spec-kit/shift-desk/internal/auth"
	"github.com/spec-kit/shift-desk/internal/config"
	"github.com/spec-kit/shift-desk/internal/feed"
	"github.com/spec-kit/shift-desk/internal/observability"
	"github.com/spec-kit/shift-desk/internal/persistence"
	"github.com/spec-kit/shift-desk/internal/repository"
	"github.com/spec-kit/shift-desk/internal/service"
	"github.com/spec-kit/shift-desk/internal/shiftsync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	changeFeed := feed.NewRedisFeed(redis.Client, logger, metrics)

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	shiftRepo := repository.NewShiftRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo: userRepo,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Feed:       changeFeed,
		Logger:     logger,
	})
	shiftService := service.NewShiftService(service.ShiftDependencies{
		ShiftRepo:    shiftRepo,
		Feed:         changeFeed,
		Logger:       logger,
		BoundaryHour: cfg.Shift.BoundaryHour,
	})
	commentService := service.NewCommentService(service.CommentDependencies{
		CommentRepo: commentRepo,
		Feed:        changeFeed,
		Logger:      logger,
	})
	authMiddleware := auth.NewMiddleware(authService.TokenManager(), userRepo)

	shiftSync := shiftsync.NewManager(shiftService, changeFeed, logger, shiftsync.Options{
		ReconcileDebounce: cfg.Shift.ReconcileDebounce(),
		DurationTick:      cfg.Shift.DurationTick(),
	})
	defer shiftSync.Close()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Shifts:         handlers.NewShiftsHandler(shiftService, shiftSync),
		Comments:       handlers.NewCommentsHandler(commentService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
