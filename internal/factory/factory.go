package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"repairshop-api/internal/audit"
	"repairshop-api/internal/authn"
	"repairshop-api/internal/client"
	"repairshop-api/internal/clock"
	"repairshop-api/internal/config"
	"repairshop-api/internal/employee"
	"repairshop-api/internal/pinhash"
	"repairshop-api/internal/ratelimit"
	redisrepo "repairshop-api/internal/repository/redis"
	"repairshop-api/internal/repository/scylla"
	"repairshop-api/internal/session"
	"repairshop-api/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config *config.Config
	clock  clock.Clock

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	clickhouseClient *client.ClickHouseClient

	// Core components
	hasher         *pinhash.Hasher
	limiter        *ratelimit.Limiter
	sessionManager *session.Manager
	employeeRepo   employee.Repository
	recorder       *audit.Recorder
	authenticator  *authn.RequestAuthenticator
	employeeSvc    *employee.Service

	closeOnce sync.Once
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{
		config: cfg,
		clock:  clock.Real(),
	}

	if err := f.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	if err := f.initializeComponents(); err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("session_backend", cfg.Auth.SessionBackend),
		util.Bool("kafka_enabled", cfg.Kafka.Enabled),
		util.Bool("clickhouse_enabled", cfg.Clickhouse.Enabled),
	)

	return f, nil
}

// initializeClients brings up the external service clients the configured
// backends need and health-checks them concurrently.
func (f *Factory) initializeClients() error {
	cfg := f.config

	switch cfg.Auth.SessionBackend {
	case "scylla":
		sc, err := scylla.NewScyllaClient(cfg)
		if err != nil {
			return fmt.Errorf("scylla: %w", err)
		}
		f.scyllaClient = sc
	case "redis":
		rc, err := client.NewRedisClient(cfg)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		f.redisClient = rc
	case "memory":
		util.Warn("Using in-memory session backend - sessions will not survive a restart")
	default:
		return fmt.Errorf("unknown session backend %q", cfg.Auth.SessionBackend)
	}

	if cfg.Kafka.Enabled {
		producer, err := client.NewKafkaProducer(cfg)
		if err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
		}
	}

	if cfg.Clickhouse.Enabled {
		ch, err := client.NewClickHouseClient(cfg)
		if err != nil {
			util.Warn("ClickHouse initialization failed - proceeding without ClickHouse", util.ErrorField(err))
		} else {
			f.clickhouseClient = ch
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if f.scyllaClient != nil {
		g.Go(func() error {
			if err := f.scyllaClient.HealthCheck(); err != nil {
				return fmt.Errorf("scylla health check: %w", err)
			}
			return nil
		})
	}
	if f.redisClient != nil {
		g.Go(func() error {
			if err := f.redisClient.HealthCheck(gctx); err != nil {
				return fmt.Errorf("redis health check: %w", err)
			}
			return nil
		})
	}
	if f.clickhouseClient != nil {
		g.Go(func() error {
			if err := f.clickhouseClient.HealthCheck(gctx); err != nil {
				return fmt.Errorf("clickhouse health check: %w", err)
			}
			return nil
		})
	}
	if f.kafkaProducer != nil {
		g.Go(func() error {
			if err := f.kafkaProducer.HealthCheck(gctx); err != nil {
				return fmt.Errorf("kafka health check: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if f.config.IsProduction() {
			return err
		}
		util.Warn("Service health check warning", util.ErrorField(err))
	}

	return nil
}

// initializeComponents wires the domain stack on top of the clients.
func (f *Factory) initializeComponents() error {
	cfg := f.config

	f.hasher = pinhash.NewHasher(pinhash.DefaultParams())
	f.limiter = ratelimit.NewLimiter(
		cfg.RateLimit.LoginAttempts,
		cfg.RateLimit.LoginWindow,
		cfg.RateLimit.FailureShards,
		f.clock,
	)

	policy := session.LifetimePolicy{
		AdminTTL:    cfg.Auth.AdminSessionTTL,
		EmployeeTTL: cfg.Auth.EmployeeSessionTTL,
	}

	var store session.Store
	switch cfg.Auth.SessionBackend {
	case "scylla":
		store = scylla.NewSessionStore(f.scyllaClient)
		f.employeeRepo = scylla.NewEmployeeRepository(f.scyllaClient)
	case "redis":
		store = redisrepo.NewSessionStore(f.redisClient)
		f.employeeRepo = employee.NewMemoryRepository()
		util.Warn("Redis session backend uses an in-memory employee roster")
	default:
		store = session.NewMemoryStore()
		f.employeeRepo = employee.NewMemoryRepository()
	}

	f.sessionManager = session.NewManager(store, policy, f.clock)

	adminDigest := f.adminDigestSource()
	credentials := employee.NewCredentials(f.employeeRepo, adminDigest)

	f.recorder = audit.NewRecorder(f.kafkaProducer, f.clickhouseClient, cfg.Kafka.Topic, f.clock)

	f.authenticator = authn.NewRequestAuthenticator(
		f.limiter, credentials, f.hasher, f.sessionManager, f.recorder)

	f.employeeSvc = employee.NewService(f.employeeRepo, f.hasher, f.sessionManager, f.clock)

	return nil
}

// adminDigestSource prefers the environment override and falls back to
// the admin_credentials table when ScyllaDB is available.
func (f *Factory) adminDigestSource() employee.AdminDigestFunc {
	if digest := f.config.Auth.AdminPINDigest; digest != "" {
		return employee.StaticAdminDigest(digest)
	}
	if f.scyllaClient != nil {
		store := scylla.NewAdminCredentialStore(f.scyllaClient)
		return store.Get
	}
	util.Warn("No admin PIN digest configured - admin login is disabled")
	return employee.StaticAdminDigest("")
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) Authenticator() *authn.RequestAuthenticator {
	return f.authenticator
}

func (f *Factory) EmployeeService() *employee.Service {
	return f.employeeSvc
}

func (f *Factory) SessionManager() *session.Manager {
	return f.sessionManager
}

func (f *Factory) Recorder() *audit.Recorder {
	return f.recorder
}

// HealthCheck reports the health of every initialized client.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(); err != nil {
			healthErrors["scylla"] = err
		}
	}
	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}
	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}
	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	return healthErrors
}

// Close shuts dependencies down in reverse initialization order. The
// audit buffer flushes before its sinks close.
func (f *Factory) Close() {
	f.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if f.recorder != nil {
			f.recorder.Flush(ctx)
		}
		if f.kafkaProducer != nil {
			_ = f.kafkaProducer.Close()
		}
		if f.clickhouseClient != nil {
			_ = f.clickhouseClient.Close()
		}
		if f.redisClient != nil {
			_ = f.redisClient.Close()
		}
		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}

		util.Info("Factory closed")
		util.Sync()
	})
}
