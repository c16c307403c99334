package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"todo_service/internal/auth"
	"todo_service/internal/config"
	"todo_service/internal/http_server/router"
	"todo_service/internal/lib/jwt"
	"todo_service/internal/lib/logger/sl"
	"todo_service/internal/lib/mailer"
	"todo_service/internal/middleware/metrics"
	"todo_service/internal/notifier"
	"todo_service/internal/rabbitmq"
	"todo_service/internal/storage/postgres"
	"todo_service/internal/storage/redis"
	"todo_service/internal/todos"
	"todo_service/internal/users"

	"github.com/urfave/cli/v2"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	app := &cli.App{
		Name:  "todo",
		Usage: "todo list backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML config",
				Value:   "./config/local.yaml",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database schema",
				Action: migrate,
			},
			{
				Name:   "notify",
				Usage:  "send emails for domain events from RabbitMQ",
				Action: notify,
			},
			{
				Name:  "import-users",
				Usage: "create or update users from a CSV/XLSX file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "path to .csv or .xlsx file",
						Required: true,
					},
				},
				Action: importUsers,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	log := setupLogger(cfg.Env)

	log.Info("starting todo service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", sl.Err(err))
		return err
	}
	defer storage.Close()

	if err := storage.Migrate(ctx); err != nil {
		log.Error("failed to migrate database", sl.Err(err))
		return err
	}

	tokens, err := jwt.New(cfg.Tokens.Secret, cfg.Tokens.Algorithm, cfg.Tokens.AccessTokenTTL, cfg.Tokens.RefreshTokenTTL)
	if err != nil {
		return err
	}

	var denylist auth.Denylist
	if cfg.Redis.Addr != "" {
		redisRepo, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Error("failed to connect redis", sl.Err(err))
			return err
		}
		defer redisRepo.Close()

		denylist = redisRepo
	} else {
		log.Warn("redis is not configured, logout will not revoke access tokens")
	}

	events, closeEvents, err := setupEvents(log, cfg)
	if err != nil {
		return err
	}
	defer closeEvents()

	authService := auth.New(log, storage, storage, tokens, denylist, events)

	handler := router.New(log, router.Deps{
		Auth:    authService,
		Users:   users.New(log, storage, events),
		Todos:   todos.New(log, storage),
		DB:      storage,
		Metrics: metrics.New(),

		CORSOrigins: cfg.HTTPServer.CORSOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", sl.Err(err))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", sl.Err(err))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")

	return nil
}

func migrate(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	log := setupLogger(cfg.Env)

	storage, err := postgres.New(c.Context, cfg)
	if err != nil {
		log.Error("failed to connect postgres", sl.Err(err))
		return err
	}
	defer storage.Close()

	if err := storage.Migrate(c.Context); err != nil {
		log.Error("failed to migrate database", sl.Err(err))
		return err
	}

	log.Info("schema applied")

	return nil
}

func importUsers(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	log := setupLogger(cfg.Env)

	path := c.String("file")

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	storage, err := postgres.New(c.Context, cfg)
	if err != nil {
		log.Error("failed to connect postgres", sl.Err(err))
		return err
	}
	defer storage.Close()

	events, closeEvents, err := setupEvents(log, cfg)
	if err != nil {
		return err
	}
	defer closeEvents()

	failures, err := users.New(log, storage, events).Import(c.Context, filepath.Base(path), f)
	if err != nil {
		log.Error("import failed", sl.Err(err))
		return err
	}

	for _, failure := range failures {
		log.Warn("user was not imported",
			slog.String("username", failure.Username),
			slog.String("reason", failure.Error),
		)
	}

	log.Info("import finished", slog.Int("failed", len(failures)))

	return nil
}

func notify(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	log := setupLogger(cfg.Env)

	if cfg.RabbitMQ.URL == "" || cfg.Mail.Host == "" {
		return errors.New("notify requires rabbitmq.url and mail.host")
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to init rabbitmq", sl.Err(err))
		return err
	}
	defer r.Close()

	m := mailer.New(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From)

	log.Info("consumer successfully started", slog.String("queue", cfg.RabbitMQ.QueueName))

	if err := r.Consume(ctx, notifier.New(log, m).Handle); err != nil {
		log.Error("consumer stopped", sl.Err(err))
		return err
	}

	log.Info("service gracefully stopped")

	return nil
}

// * setupEvents возвращает nil-издателя, если RabbitMQ не настроен
func setupEvents(log *slog.Logger, cfg *config.Config) (auth.Publisher, func(), error) {
	if cfg.RabbitMQ.URL == "" {
		log.Warn("rabbitmq is not configured, domain events are disabled")
		return nil, func() {}, nil
	}

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", sl.Err(err))
		return nil, nil, err
	}

	return msgBroker, msgBroker.Close, nil
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
