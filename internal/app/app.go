package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arcanalabs/arcana/internal/audit"
	"github.com/arcanalabs/arcana/internal/auth"
	"github.com/arcanalabs/arcana/internal/credit"
	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/arcanalabs/arcana/internal/mailer"
	"github.com/arcanalabs/arcana/internal/payment"
	"github.com/arcanalabs/arcana/internal/reconciler"
	"github.com/arcanalabs/arcana/internal/repository"
	appvalidator "github.com/arcanalabs/arcana/internal/validator"
	"github.com/arcanalabs/arcana/internal/vcs"
	"github.com/arcanalabs/arcana/migrations"
	"github.com/exaring/otelpgx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxstd "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/riandyrn/otelchi"
	"github.com/stripe/stripe-go/v82"
)

var (
	version = vcs.Version()
)

type application struct {
	config    config
	logger    *slog.Logger
	db        *pgxpool.Pool
	redis     redis.UniversalClient
	validator *validator.Validate
	mailer    mailer.Mailer
	tokens    auth.TokenVerifier

	userRepo    domain.UserRepository
	ledgerRepo  domain.LedgerRepository
	readingRepo domain.ReadingRepository

	credits    domain.CreditService
	reconciler *reconciler.Reconciler

	// providers maps the lowercase provider name used in URLs and request
	// bodies to its gateway adapter. Unconfigured providers stay in the map so
	// callers get PROVIDER_NOT_CONFIGURED instead of a 404.
	providers map[string]domain.PaymentProvider
}

type config struct {
	port int
	env  string
	db   struct {
		dsn          string
		maxOpenConns int
		maxIdleTime  time.Duration
	}
	redis struct {
		url          string
		maxOpenConns int
		maxIdleConns int
		maxIdleTime  time.Duration
	}
	smtp struct {
		host     string
		port     int
		username string
		password string
		sender   string
	}
	stripe struct {
		secretKey     string
		webhookSecret string
	}
	paypal struct {
		clientID  string
		secret    string
		webhookID string
		live      bool
	}
	jwtSecret        string
	frontendURL      string
	otelCollectorUrl string
	migrate          bool
}

func Run() error {
	var cfg config

	flag.IntVar(&cfg.port, "port", 3000, "server port")
	flag.StringVar(&cfg.env, "env", "dev", "Environment (dev|staging|prod)")

	flag.StringVar(&cfg.db.dsn, "db-dsn", "", "PostgreSQL DSN")
	flag.IntVar(&cfg.db.maxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.DurationVar(&cfg.db.maxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max idle time for connections")

	flag.StringVar(&cfg.redis.url, "redis-url", "", "Redis URL")
	flag.IntVar(&cfg.redis.maxOpenConns, "redis-max-open-conns", 25, "Redis max open connections")
	flag.IntVar(&cfg.redis.maxIdleConns, "redis-max-idle-conns", 10, "Redis max idle connections")
	flag.DurationVar(&cfg.redis.maxIdleTime, "redis-max-idle-time", 2*time.Minute, "Redis max idle time for connections")

	flag.StringVar(&cfg.smtp.host, "smtp-host", "sandbox.smtp.mailtrap.io", "SMTP host")
	flag.IntVar(&cfg.smtp.port, "smtp-port", 2525, "SMTP port")
	flag.StringVar(&cfg.smtp.username, "smtp-username", "", "SMTP username")
	flag.StringVar(&cfg.smtp.password, "smtp-password", "", "SMTP password")
	flag.StringVar(&cfg.smtp.sender, "smtp-sender", "Arcana <no-reply@arcanalabs.io>", "SMTP sender")

	flag.StringVar(&cfg.stripe.secretKey, "stripe-key", "", "Stripe secret key")
	flag.StringVar(&cfg.stripe.webhookSecret, "stripe-webhook-secret", "", "Stripe webhook secret")

	flag.StringVar(&cfg.paypal.clientID, "paypal-client-id", "", "PayPal client ID")
	flag.StringVar(&cfg.paypal.secret, "paypal-secret", "", "PayPal client secret")
	flag.StringVar(&cfg.paypal.webhookID, "paypal-webhook-id", "", "PayPal webhook ID")
	flag.BoolVar(&cfg.paypal.live, "paypal-live", false, "Use the PayPal live environment instead of the sandbox")

	flag.StringVar(&cfg.jwtSecret, "jwt-secret", "", "HMAC secret for bearer token verification")
	flag.StringVar(&cfg.frontendURL, "frontend-url", "https://app.arcanalabs.io", "Frontend base URL for checkout redirects")
	flag.StringVar(&cfg.otelCollectorUrl, "otel-collector-url", "", "OpenTelemetry collector URL")
	flag.BoolVar(&cfg.migrate, "migrate", false, "Run database migrations on startup")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	stripe.Key = cfg.stripe.secretKey

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if cfg.migrate {
		err := runMigrations(cfg.db.dsn)
		if err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	db, err := newDatabasePool(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := newRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	userRepo := repository.NewPostgresUserRepository(db)
	ledgerRepo := repository.NewPostgresLedgerRepository(db)
	readingRepo := repository.NewPostgresReadingRepository(db)

	smtpMailer := mailer.NewSMTPMailer(cfg.smtp.host, cfg.smtp.port, cfg.smtp.username, cfg.smtp.password, cfg.smtp.sender)

	creditService := credit.NewService(ledgerRepo, userRepo, audit.NewSlogLogger(logger), logger)

	paypalProvider, err := payment.NewPayPalProvider(cfg.paypal.clientID, cfg.paypal.secret, cfg.paypal.webhookID, cfg.paypal.live)
	if err != nil {
		return err
	}

	app := &application{
		config:      cfg,
		logger:      logger,
		db:          db,
		redis:       redisClient,
		validator:   appvalidator.NewValidator(),
		mailer:      smtpMailer,
		tokens:      auth.NewJWTVerifier(cfg.jwtSecret),
		userRepo:    userRepo,
		ledgerRepo:  ledgerRepo,
		readingRepo: readingRepo,
		credits:     creditService,
		reconciler:  reconciler.New(creditService, ledgerRepo, userRepo, redisClient, smtpMailer, logger),
		providers: map[string]domain.PaymentProvider{
			payment.ProviderStripe: payment.NewStripeProvider(cfg.stripe.secretKey, cfg.stripe.webhookSecret),
			payment.ProviderPayPal: paypalProvider,
		},
	}

	return app.run()
}

func runMigrations(dsn string) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return err
	}

	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return err
	}

	db := pgxstd.OpenDB(*connConfig)
	defer db.Close()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "pgx", driver)
	if err != nil {
		return err
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

func newRedisClient(cfg config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.redis.url,
		MaxIdleConns:    cfg.redis.maxIdleConns,
		MaxActiveConns:  cfg.redis.maxOpenConns,
		ConnMaxIdleTime: cfg.redis.maxIdleTime,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func newDatabasePool(cfg config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.db.dsn)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.db.maxIdleTime
	config.MaxConns = int32(cfg.db.maxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *application) run() error {
	shutdownTelemetry, err := app.initTelemetry()
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(ctx)
		if err != nil {
			shutdownError <- err
		}

		shutdownError <- nil
	}()

	app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.env)

	err = srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}

func (app *application) routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)

	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(otelchi.Middleware("arcana-api", otelchi.WithChiRoutes(r)))
	r.Use(app.recoverPanic)

	r.Get("/health", app.HealthcheckHandler)
	r.Get("/credits/packages", app.GetPackagesHandler)

	// Webhooks authenticate with provider signatures, not bearer tokens.
	r.Post("/webhooks/{provider}", app.WebhookHandler)

	r.Group(func(r chi.Router) {
		r.Use(app.requireAuthentication)

		r.Get("/credits/balance", app.GetBalanceHandler)
		r.Get("/credits/ledger", app.GetLedgerHandler)

		r.Post("/checkout/sessions", app.CreateCheckoutSessionHandler)
		r.Post("/payments/{provider}/capture", app.CapturePaymentHandler)
		r.Get("/payments/verify", app.VerifyPaymentHandler)

		r.Post("/readings", app.CreateReadingHandler)
		r.Post("/readings/{readingId}/questions", app.AddFollowUpQuestionHandler)
	})

	return r
}
