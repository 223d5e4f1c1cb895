package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-workflow/internal/applications"
	"ms-workflow/internal/applications/application_api"
	applications_db "ms-workflow/internal/applications/db"
	"ms-workflow/internal/auth"
	"ms-workflow/internal/config"
	"ms-workflow/internal/credentials"
	"ms-workflow/internal/credentials/credential_api"
	credentials_db "ms-workflow/internal/credentials/db"
	"ms-workflow/internal/database/migrations"
	"ms-workflow/internal/kafka"
	"ms-workflow/internal/locks"
	"ms-workflow/internal/logger"
	"ms-workflow/internal/notify"
	notify_db "ms-workflow/internal/notify/db"
	"ms-workflow/internal/removals"
	removals_db "ms-workflow/internal/removals/db"
	"ms-workflow/internal/removals/removal_api"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Workflow Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		log.Info("DATABASE", "Running schema migrations")
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: "./migrations",
			AutoMigrate:   true,
		})
		if err := runner.MigrateUp(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
		}
		log.Info("DATABASE", "Schema migrations applied")
	}

	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers)
		log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for brokers %v", cfg.Kafka.Brokers))

		requiredTopics := []string{
			cfg.Kafka.Topics.ApplicationDecided,
			cfg.Kafka.Topics.CredentialIssued,
			cfg.Kafka.Topics.CredentialRedeemed,
			cfg.Kafka.Topics.VolunteerRemoved,
			cfg.Kafka.Topics.Notifications,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		log.Warn("KAFKA", "Kafka disabled, events will not be published")
	}

	advisoryLocks := locks.NewRedis(redisClient)

	notifier := notify.NewService(
		&notify_db.DB{Bun: bunDB},
		producer,
		cfg.Kafka.Topics.Notifications,
		log,
	)

	applicationService := applications.NewService(
		&applications_db.DB{Bun: bunDB},
		advisoryLocks,
		notifier,
		producer,
		cfg.Kafka.Topics.ApplicationDecided,
		log,
	)

	credentialService := credentials.NewService(
		&credentials_db.DB{Bun: bunDB},
		advisoryLocks,
		notifier,
		producer,
		cfg.Kafka.Topics.CredentialIssued,
		cfg.Kafka.Topics.CredentialRedeemed,
		cfg.Credential.CodePrefix,
		cfg.Credential.DefaultTTL,
		log,
	)

	removalService := removals.NewService(
		&removals_db.DB{Bun: bunDB},
		notifier,
		producer,
		cfg.Kafka.Topics.VolunteerRemoved,
		log,
	)

	applicationHandler := application_api.NewHandler(applicationService, log)
	credentialHandler := credential_api.NewHandler(credentialService, log)
	removalHandler := removal_api.NewHandler(removalService, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		log.Info("AUTH", "Token middleware applied to protected API routes")

		r.Route("/api", func(r chi.Router) {
			applicationHandler.RegisterRoutes(r)
			log.Info("ROUTER", "Application routes registered under /api/workflow")

			credentialHandler.RegisterRoutes(r)
			log.Info("ROUTER", "Credential routes registered under /api/workflow/credentials")

			removalHandler.RegisterRoutes(r)
			log.Info("ROUTER", "Removal routes registered under /api/workflow/sub-events")
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Workflow Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Error("KAFKA", fmt.Sprintf("Kafka producer close failed: %v", err))
		}
	}

	log.Info("APP", "Workflow Service stopped cleanly")
}
