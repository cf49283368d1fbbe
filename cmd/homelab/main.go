// Homelab Dashboard - backend for a self-hosted services dashboard.
//
// The binary serves the REST API (registration, login, user management,
// dashboard data) and an admin event stream. Users are kept in SQLite,
// PostgreSQL or MongoDB; the audit trail always lives in SQLite.
//
// Usage:
//
//	homelab                      run the API server
//	homelab useradd -email ...   create an account from the command line
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/shvydak/homelab-dashboard/internal/api"
	"github.com/shvydak/homelab-dashboard/internal/audit"
	"github.com/shvydak/homelab-dashboard/internal/auth"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/config"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/database"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/influxdb"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/logging"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/mongodb"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/mqtt"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/postgres"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/redis"
	"github.com/shvydak/homelab-dashboard/internal/ratelimit"
	"github.com/shvydak/homelab-dashboard/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "useradd" {
		err = runUserAdd(ctx, os.Args[2:], os.Stdin, os.Stdout)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run starts the API server and blocks until ctx is cancelled.
// It is separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting homelab dashboard",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"environment", cfg.Environment,
	)
	if cfg.UsesDefaultSecret() {
		log.Warn("using the default JWT secret; set HOMELAB_JWT_SECRET before exposing this server")
	}

	// SQLite always holds the audit trail, and the users when store.driver is sqlite.
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path)

	authn, closeStore, err := buildAuthenticator(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Seed.Enabled {
		if _, seedErr := auth.SeedAdminAccount(ctx, authn.Store(), auth.SeedAdmin{
			Email:     cfg.Seed.AdminEmail,
			Password:  cfg.Seed.AdminPassword,
			FirstName: cfg.Seed.AdminFirstName,
			LastName:  cfg.Seed.AdminLastName,
		}, log.Logger); seedErr != nil {
			return fmt.Errorf("seeding admin account: %w", seedErr)
		}
	}

	// MQTT, InfluxDB and Redis are optional. A failed connection is logged
	// and the server runs without that integration.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("MQTT unavailable, audit events will not be published", "error", err)
		} else {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
			mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
		}
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			log.Warn("InfluxDB unavailable, auth events will not be recorded", "error", err)
			influxClient = nil
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	limiter, closeLimiter := buildLimiter(ctx, cfg, log)
	defer closeLimiter()

	srv, err := api.New(api.Deps{
		Config:    cfg,
		Logger:    log,
		Auth:      authn,
		AuditRepo: audit.NewSQLiteRepository(db.DB),
		MQTT:      mqttClient,
		Influx:    influxClient,
		Limiter:   limiter,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal", "address", srv.Addr())

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred closes run in reverse: API server, limiter, InfluxDB, MQTT,
	// user store, database.
	return nil
}

// loadConfig reads .env, then the YAML config. A missing config file falls
// back to the built-in defaults plus environment overrides.
func loadConfig(log *logging.Logger) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	switch {
	case err == nil:
		log.Info("configuration loaded", "path", configPath)
		return cfg, nil
	case errors.Is(err, fs.ErrNotExist):
		log.Info("no config file found, using defaults", "path", configPath)
		cfg, err = config.Default()
		if err != nil {
			return nil, fmt.Errorf("loading default config: %w", err)
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("loading config: %w", err)
	}
}

// getConfigPath returns the configuration file path.
// Uses HOMELAB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOMELAB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.SQLite()); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// buildAuthenticator opens the configured user store and assembles the
// hasher, token service and authenticator around it. The returned func
// releases the store's connections.
func buildAuthenticator(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger) (*auth.Authenticator, func(), error) {
	hasher, err := auth.NewHasher(cfg.Security.BcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("creating password hasher: %w", err)
	}

	ttl, err := cfg.Security.JWT.TTL()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing token lifetime: %w", err)
	}
	tokens, err := auth.NewTokenService(cfg.Security.JWT.Secret, ttl, auth.WithIssuer(cfg.Security.JWT.Issuer))
	if err != nil {
		return nil, nil, fmt.Errorf("creating token service: %w", err)
	}

	repo, closeRepo, err := openUserRepository(ctx, cfg, db, log)
	if err != nil {
		return nil, nil, err
	}

	store := auth.NewStore(repo, hasher)
	return auth.NewAuthenticator(store, hasher, tokens, log.Logger), closeRepo, nil
}

// openUserRepository connects the backend named by store.driver.
func openUserRepository(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger) (auth.UserRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		if err := postgres.Migrate(ctx, pool, migrations.Postgres()); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("running PostgreSQL migrations: %w", err)
		}
		log.Info("user store: postgres")
		return auth.NewPostgresUserRepository(pool), func() {
			log.Info("closing PostgreSQL pool")
			pool.Close()
		}, nil

	case config.StoreDriverMongo:
		client, err := mongodb.Connect(ctx, cfg.MongoDB)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to MongoDB: %w", err)
		}
		repo := auth.NewMongoUserRepository(client.Database())
		if err := repo.EnsureIndexes(ctx); err != nil {
			client.Close(context.Background()) //nolint:errcheck // already failing
			return nil, nil, fmt.Errorf("creating MongoDB indexes: %w", err)
		}
		log.Info("user store: mongo", "database", cfg.MongoDB.Database)
		return repo, func() {
			log.Info("disconnecting from MongoDB")
			if err := client.Close(context.Background()); err != nil {
				log.Error("error closing MongoDB", "error", err)
			}
		}, nil

	default:
		log.Info("user store: sqlite")
		return auth.NewSQLiteUserRepository(db.DB), func() {}, nil
	}
}

// buildLimiter returns the auth route limiter, or nil when rate limiting is
// disabled. With Redis available counters are shared across instances and
// the in-memory limiter takes over while Redis is unreachable.
func buildLimiter(ctx context.Context, cfg *config.Config, log *logging.Logger) (ratelimit.Limiter, func()) {
	rl := cfg.Security.RateLimit
	if !rl.Enabled {
		log.Info("rate limiting disabled")
		return nil, func() {}
	}

	memory := ratelimit.NewMemoryLimiter(rl.Window, rl.MaxRequests)
	if !cfg.Redis.Enabled {
		return memory, func() {}
	}

	client, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, using in-memory rate limiting", "error", err)
		return memory, func() {}
	}
	log.Info("Redis connected, rate limit counters are shared")

	limiter := ratelimit.NewFallback(ratelimit.NewRedisLimiter(client, rl.Window, rl.MaxRequests), memory, log.Logger)
	return limiter, func() {
		if err := client.Close(); err != nil {
			log.Error("error closing Redis", "error", err)
		}
	}
}
