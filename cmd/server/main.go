package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
	users "github.com/goliatone/go-users"
	"github.com/goliatone/go-users/middleware/csrf"
	"github.com/goliatone/go-users/migrations"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// a missing .env file is fine, the environment may carry everything
	_ = godotenv.Load()

	cfg, err := users.LoadConfig()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	zl := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsLocal() {
		zl = zl.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	logger := users.NewZerologLogger(zl)

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN())))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	if err := runMigrations(sqldb); err != nil {
		zl.Fatal().Err(err).Msg("migrations failed")
	}

	store := users.NewBunUserStore(db)
	hasher := users.NewBcryptHasher(users.DefaultBcryptCost)
	tokens := users.NewTokenService([]byte(cfg.JWTSecret), cfg.AppName, logger)

	var mail users.MailSink = users.NoopMailSink{}
	if cfg.EmailEnabled {
		mail = users.NewSMTPMailSink(users.SMTPOptions{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			AppName:  cfg.AppName,
			BaseURL:  cfg.APIURL,
			Logger:   logger,
		})
	}

	service := users.NewUserService(store, hasher, tokens).
		WithMailSink(mail).
		WithLogger(logger).
		WithAccessTokenTTL(cfg.AccessTTL()).
		WithResetTokenTTL(cfg.ResetTTL())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := seedSuperuser(ctx, store, hasher, cfg); err != nil {
		cancel()
		zl.Fatal().Err(err).Msg("superuser seed failed")
	}
	cancel()

	app := newApp(cfg, service, store, logger)

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			zl.Fatal().Err(err).Msg("server stopped")
		}
	}()

	zl.Info().Str("addr", cfg.HTTPAddr).Str("env", cfg.Environment).Msg("server listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		zl.Error().Err(err).Msg("shutdown error")
	}
}

func newApp(cfg *users.Config, service *users.UserService, store users.UserStore, logger users.Logger) *fiber.App {
	engine := django.New("./views", ".html")

	app := fiber.New(fiber.Config{
		AppName:           cfg.AppName,
		Views:             engine,
		PassLocalsToViews: true,
		ErrorHandler:      errorHandler,
	})

	app.Use(recover.New())

	// API clients authenticate every call with a bearer token, only the
	// cookie driven HTML surface needs CSRF
	csrfKey := sha256.Sum256([]byte(cfg.CSRFSecret))
	app.Use(csrf.New(csrf.Config{
		SecureKey: csrfKey[:],
		Skip: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/")
		},
	}))

	guard := users.NewAuthGuard(service).WithLogger(logger)

	api := users.NewAPIController(service).WithLogger(logger)
	api.RegisterRoutes(app.Group("/api"), guard)

	web := users.NewWebController(service, users.NewPaginator(store)).
		WithLogger(logger).
		WithSecureCookies(!cfg.IsLocal())
	web.RegisterRoutes(app, guard)

	return app
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, ".")
}

// seedSuperuser makes sure the configured admin account exists so a fresh
// deployment can be signed into
func seedSuperuser(ctx context.Context, store users.UserStore, hasher users.PasswordHasher, cfg *users.Config) error {
	if cfg.SuperuserEmail == "" || cfg.SuperuserPassword == "" {
		return nil
	}

	if _, err := store.GetByEmail(ctx, cfg.SuperuserEmail); err == nil {
		return nil
	} else if !goerrors.IsNotFound(err) {
		return err
	}

	hashed, err := hasher.Hash(cfg.SuperuserPassword)
	if err != nil {
		return err
	}

	name := cfg.SuperuserName
	if name == "" {
		name = "Administrator"
	}

	_, err = store.Insert(ctx, &users.User{
		FullName:       name,
		Email:          cfg.SuperuserEmail,
		HashedPassword: hashed,
		Role:           users.RoleAdmin,
		Status:         users.UserStatusActive,
	})
	return err
}

// errorHandler is the last stop for errors that escape a handler. API
// callers get the JSON detail envelope, browsers get an error page.
func errorHandler(c *fiber.Ctx, err error) error {
	status := users.HTTPStatus(err)

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
	}

	if strings.HasPrefix(c.Path(), "/api/") {
		return c.Status(status).JSON(fiber.Map{"detail": users.ErrorDetail(err)})
	}

	view := "errors/500"
	switch status {
	case fiber.StatusForbidden:
		view = "errors/403"
	case fiber.StatusNotFound:
		view = "errors/404"
	}

	if renderErr := c.Status(status).Render(view, fiber.Map{"detail": users.ErrorDetail(err)}); renderErr != nil {
		return c.Status(status).SendString(users.ErrorDetail(err))
	}
	return nil
}
