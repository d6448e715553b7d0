package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"car-rental/internal/data/repository"
	"car-rental/internal/scheduler"
	"car-rental/internal/usecase"
	"car-rental/internal/wire"
	"car-rental/pkg/crypto"
	"car-rental/pkg/database"
	"car-rental/pkg/middleware"
	"car-rental/pkg/payos"
	"car-rental/pkg/rabbitmq"
	"car-rental/pkg/ratelimit"
	"car-rental/pkg/utils"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the booking sweeps",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	config, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(config.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	logger.Info("Database connected successfully")

	if autoMigrate {
		if err := database.Migrate(ctx, db, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	repos := repository.NewRepository(db, logger)

	deps, err := buildDependencies(config, logger)
	if err != nil {
		return err
	}
	defer deps.Publisher.Close()

	limiter, closeLimiter := buildLimiter(ctx, config.Redis, logger)
	defer closeLimiter()

	app := wire.Wiring(repos, config, logger, deps, limiter)

	var sched *scheduler.Scheduler
	if config.Scheduler.Enabled {
		jobs := scheduler.NewJobs(ctx, app.Service.Booking, logger)
		sched = scheduler.NewScheduler(jobs, config.Scheduler, logger)
		if err := sched.Start(); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return APIServer(gctx, app.Router, config.App.Port, config.App.ShutdownTimeout, logger)
	})
	if sched != nil {
		g.Go(func() error {
			<-gctx.Done()
			<-sched.Stop().Done()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// buildDependencies assembles the optional collaborators. Missing
// configuration degrades to the no-op variants instead of failing startup.
func buildDependencies(config *utils.Config, logger *zap.Logger) (usecase.Dependencies, error) {
	var deps usecase.Dependencies

	if config.PayOS.ClientID != "" && config.PayOS.APIKey != "" && config.PayOS.ChecksumKey != "" {
		deps.Gateway = payos.NewClient(config.PayOS, logger)
	} else {
		logger.Warn("PayOS not configured, payment links are disabled")
	}

	if config.RabbitMQ.URL != "" {
		producer, err := rabbitmq.NewEventProducer(config.RabbitMQ.URL, config.RabbitMQ.Exchange, logger)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, events will not be published", zap.Error(err))
			deps.Publisher = rabbitmq.NewFallback(logger)
		} else {
			deps.Publisher = producer
		}
	} else {
		deps.Publisher = rabbitmq.NewFallback(logger)
	}

	if config.Crypto.FieldKeyHex != "" {
		cipher, err := crypto.NewFieldCipher(config.Crypto.FieldKeyHex)
		if err != nil {
			return deps, fmt.Errorf("field cipher: %w", err)
		}
		deps.Cipher = cipher
	}

	return deps, nil
}

// buildLimiter connects to Redis when configured. A nil limiter disables
// rate limiting.
func buildLimiter(ctx context.Context, config utils.RedisConfig, logger *zap.Logger) (middleware.Limiter, func()) {
	if config.Addr == "" {
		return nil, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, rate limiting disabled", zap.Error(err))
		client.Close()
		return nil, func() {}
	}

	logger.Info("Redis connected", zap.String("addr", config.Addr))
	return ratelimit.New(client, config.Prefix), func() { client.Close() }
}
