package app

import (
	"context"
	"database/sql"
	"errors"
	"lighthouse-api/config"
	"lighthouse-api/db"
	"lighthouse-api/handler"
	"lighthouse-api/ledger"
	"lighthouse-api/logger"
	"lighthouse-api/metrics"
	"lighthouse-api/notify"
	"lighthouse-api/repository"
	"lighthouse-api/router"
	"lighthouse-api/service"
	"lighthouse-api/token"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// components is everything the router needs, built once per process or test.
type components struct {
	db        *sql.DB
	redis     *redis.Client
	issuer    *token.Issuer
	ledger    ledger.Ledger
	mailer    notify.Mailer
	causesTTL time.Duration
	authOpts  []service.AuthOption
}

func (c components) wire() (http.Handler, *service.AuthService) {
	var cache service.ICacheClient
	if c.redis != nil {
		cache = c.redis
	}

	userRepo := repository.NewUserRepository(c.db)
	causeRepo := repository.NewCauseRepository(c.db)
	donationRepo := repository.NewDonationRepository(c.db)

	authService := service.NewAuthService(userRepo, c.issuer, c.ledger, c.mailer, c.authOpts...)
	userService := service.NewUserService(userRepo)
	causeService := service.NewCauseService(causeRepo, cache, c.causesTTL)
	donationService := service.NewDonationService(c.db, causeRepo, donationRepo, cache)

	authHandler := handler.NewAuthHandler(authService, userService)
	causeHandler := handler.NewCauseHandler(causeService)
	donationHandler := handler.NewDonationHandler(donationService)

	r := router.NewRouter(authHandler, causeHandler, donationHandler, c.issuer, metrics.Handler(metrics.NewRegistry()))
	return r, authService
}

func newLedger(driver string, redisClient *redis.Client) (ledger.Ledger, error) {
	switch driver {
	case "redis":
		if redisClient == nil {
			return nil, errors.New("ledger driver redis requires redis.host")
		}
		return ledger.NewRedisLedger(redisClient, ""), nil
	default:
		logger.Log.Warn("Using in-memory refresh token ledger; logouts do not survive restarts or span instances")
		return ledger.NewMemoryLedger(), nil
	}
}

// newMailer returns the configured mailer and a close function for it.
func newMailer(cfg *config.Config) (notify.Mailer, func() error) {
	renderer := notify.Renderer{FrontendURL: cfg.Server.FrontendURL}
	noop := func() error { return nil }

	switch cfg.Mail.Driver {
	case "smtp":
		smtp := cfg.Mail.SMTP
		if smtp.Host == "" || smtp.User == "" {
			logger.Log.Warn("SMTP not configured, emails will not be sent")
			return notify.DisabledMailer{}, noop
		}
		return notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     smtp.Host,
			Port:     smtp.Port,
			User:     smtp.User,
			Password: smtp.Password,
			From:     smtp.From,
		}, renderer), noop
	case "kafka":
		m := notify.NewKafkaMailer(cfg.Mail.Kafka.Brokers, cfg.Mail.Kafka.Topic, renderer)
		return m, m.Close
	default:
		return notify.DisabledMailer{}, noop
	}
}

func Run() {
	logger.Init()
	if err := config.LoadConfig("."); err != nil {
		logger.Log.Fatalf("Error loading configuration: %v", err)
	}
	cfg := &config.AppConfig
	logger.SetLevel(cfg.Log.Level)
	logger.Log.Info("Configuration loaded successfully")

	database, err := db.Connect()
	if err != nil {
		logger.Log.Fatalf("Error connecting to the database: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(cfg.Database.MigrationsPath, db.MigrationURL()); err != nil {
		logger.Log.Fatalf("Error applying migrations: %v", err)
	}

	redisClient, err := db.ConnectRedis()
	if err != nil {
		logger.Log.Fatalf("Error connecting to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	refreshLedger, err := newLedger(cfg.Ledger.Driver, redisClient)
	if err != nil {
		logger.Log.Fatalf("Error creating ledger: %v", err)
	}
	mailer, closeMailer := newMailer(cfg)

	issuer := token.NewIssuer(token.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	})
	logger.Log.WithField("access_key", logger.Fingerprint(cfg.JWT.AccessSecret)).
		WithField("refresh_key", logger.Fingerprint(cfg.JWT.RefreshSecret)).
		Info("Token signing keys loaded")

	r, authService := components{
		db:        database,
		redis:     redisClient,
		issuer:    issuer,
		ledger:    refreshLedger,
		mailer:    mailer,
		causesTTL: cfg.Cache.CausesTTL,
		authOpts: []service.AuthOption{
			service.WithResetTokenTTL(cfg.Auth.ResetTokenTTL),
			service.WithBcryptCost(cfg.Auth.BcryptCost),
			service.WithForgotPasswordFloor(cfg.Auth.ForgotPasswordMinDuration),
		},
	}.wire()

	port := cfg.Server.Port
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	authService.Wait()
	if err := closeMailer(); err != nil {
		logger.Log.WithError(err).Error("Failed to close mailer")
	}

	logger.Log.Info("Server exited properly")
}

// TestApp is a fully wired router over caller-supplied stores, for router-level tests.
type TestApp struct {
	DB          *sql.DB
	Router      http.Handler
	Issuer      *token.Issuer
	Ledger      ledger.Ledger
	AuthService *service.AuthService
}

func NewTestApp(database *sql.DB, redisClient *redis.Client) *TestApp {
	issuer := token.NewIssuer(token.Config{
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})
	var refreshLedger ledger.Ledger = ledger.NewMemoryLedger()
	if redisClient != nil {
		refreshLedger = ledger.NewRedisLedger(redisClient, "")
	}

	r, authService := components{
		db:        database,
		redis:     redisClient,
		issuer:    issuer,
		ledger:    refreshLedger,
		mailer:    notify.DisabledMailer{},
		causesTTL: time.Minute,
		authOpts:  []service.AuthOption{service.WithBcryptCost(bcrypt.MinCost)},
	}.wire()

	return &TestApp{
		DB:          database,
		Router:      r,
		Issuer:      issuer,
		Ledger:      refreshLedger,
		AuthService: authService,
	}
}
