package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"clinic-booking-api/internal/auth"
	"clinic-booking-api/internal/clinic"
	"clinic-booking-api/internal/config"
	"clinic-booking-api/internal/handler"
	"clinic-booking-api/internal/middleware"
	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/notify"
	"clinic-booking-api/internal/payment"
	"clinic-booking-api/internal/store"
	"clinic-booking-api/internal/telemetry"
)

const serviceName = "clinic-booking-api"

// backend is what both the Postgres and in-memory stores provide.
type backend interface {
	clinic.Gateway
	Ping(ctx context.Context) error
	Close()
	UpsertOption(ctx context.Context, o *model.AppointmentOption) error
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic appointment booking API",
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd(), seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newEcho builds the HTTP server with the shared middleware chain; routes
// are registered by the caller.
func newEcho(cfg *config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestID())
	e.Use(otelecho.Middleware(serviceName))
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "traceparent", "tracestate"},
	}))
	return e
}

// openBackend returns the store named by DATABASE_URL; memory:// selects the in-process one.
func openBackend(ctx context.Context, cfg *config.Config) (backend, error) {
	if cfg.InMemory() {
		return store.NewMemory(), nil
	}
	return store.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func migrate(ctx context.Context, b backend, file string) error {
	st, ok := b.(*store.Store)
	if !ok {
		return nil
	}
	return st.Migrate(ctx, file)
}

func serveCmd() *cobra.Command {
	var (
		runMigrations bool
		seedFile      string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and gRPC health servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(runMigrations, seedFile)
		},
	}
	cmd.Flags().BoolVar(&runMigrations, "migrate", false, "apply the schema before serving")
	cmd.Flags().StringVar(&seedFile, "seed", "", "upsert the catalog from this YAML file before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx := cmd.Context()
			b, err := openBackend(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			if err := migrate(ctx, b, cfg.MigrationsFile); err != nil {
				return err
			}
			logger.Info().Str("file", cfg.MigrationsFile).Msg("migration applied")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert appointment options from a YAML catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx := cmd.Context()
			b, err := openBackend(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			n, err := seedCatalog(ctx, b, file)
			if err != nil {
				return err
			}
			logger.Info().Int("options", n).Str("file", file).Msg("catalog seeded")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "db/seed/options.yaml", "catalog file")
	return cmd
}

func runServer(runMigrations bool, seedFile string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.OTelEnabled,
		Exporter:    cfg.OTelExporter,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: serviceName,
		Environment: cfg.Env,
		SampleRatio: cfg.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer b.Close()
	if cfg.InMemory() {
		logger.Warn().Msg("using in-memory store; data is lost on exit")
	} else {
		logger.Info().Msg("connected to database")
	}

	if runMigrations {
		if err := migrate(ctx, b, cfg.MigrationsFile); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("migration applied")
	}
	if seedFile != "" {
		n, err := seedCatalog(ctx, b, seedFile)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		logger.Info().Int("options", n).Msg("catalog seeded")
	}

	// notifications
	var sender notify.Sender = notify.LogSender{Log: logger}
	if cfg.AMQPURL != "" {
		amqpSender, err := notify.NewAMQPSender(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fmt.Errorf("connect to broker: %w", err)
		}
		defer amqpSender.Close()
		sender = amqpSender
	}
	dispatcher := notify.NewDispatcher(sender, cfg.NotifyBuffer, logger)
	dispatcher.Start()

	var payments payment.Gateway
	if cfg.PaymentsEnabled() {
		gw, err := payment.NewOmise(cfg.OmisePublicKey, cfg.OmiseSecretKey, cfg.PaymentCurrency, cfg.PaymentSourceType)
		if err != nil {
			return fmt.Errorf("init payment gateway: %w", err)
		}
		payments = gw
	} else {
		logger.Warn().Msg("payment gateway not configured; /create-payment-intent answers 503")
	}

	svc := clinic.NewService(b, dispatcher, logger)
	h := handler.New(svc, auth.NewValidator(b, cfg.TokenSecret), payments, b, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Stop()

	e := newEcho(cfg, logger)
	h.RegisterRoutes(e, limiter)

	// grpc health, reflecting store readiness
	healthSrv := health.NewServer()
	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.UnaryRateLimit(limiter),
			middleware.UnaryLogger(logger),
		),
	)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	reflection.Register(grpcSrv)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting http server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", lis.Addr().String()).Msg("starting grpc server")
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		watchHealth(gctx, b, healthSrv, logger)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		healthSrv.Shutdown()

		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcSrv.GracefulStop()
		if err := e.Shutdown(sctx); err != nil {
			logger.Error().Err(err).Msg("http shutdown failed")
		}
		if err := dispatcher.Close(sctx); err != nil {
			logger.Warn().Err(err).Msg("notifications not fully drained")
		}
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// watchHealth flips the gRPC serving status with the store's reachability.
func watchHealth(ctx context.Context, p interface{ Ping(context.Context) error }, hs *health.Server, logger zerolog.Logger) {
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		st := healthpb.HealthCheckResponse_SERVING
		if err := p.Ping(pctx); err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			logger.Warn().Err(err).Msg("store ping failed")
		}
		hs.SetServingStatus("", st)
	}
	check()
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}
