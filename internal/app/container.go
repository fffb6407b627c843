package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/acme/sales-dialer/internal/config"
	"github.com/acme/sales-dialer/internal/dialer"
	"github.com/acme/sales-dialer/internal/infra/db"
	"github.com/acme/sales-dialer/internal/infra/redis"
	"github.com/acme/sales-dialer/internal/queue"
	"github.com/acme/sales-dialer/internal/repository"
	pgrepo "github.com/acme/sales-dialer/internal/repository/postgres"
	redisrepo "github.com/acme/sales-dialer/internal/repository/redis"
	scyllarepo "github.com/acme/sales-dialer/internal/repository/scylla"
	"github.com/acme/sales-dialer/internal/service/concurrency"
	"github.com/acme/sales-dialer/internal/service/followup"
	"github.com/acme/sales-dialer/internal/service/session"
	"github.com/acme/sales-dialer/internal/telemetry"
	"github.com/acme/sales-dialer/internal/telephony"
	telephonyMock "github.com/acme/sales-dialer/internal/telephony/mock"
	"github.com/acme/sales-dialer/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	// lazily initialised components
	components struct {
		once         sync.Once
		repositories *repositories
		publisher    *queue.EventPublisher
		metrics      *telemetry.Metrics
		provider     telephony.Provider
		session      *session.Service
		followUps    *followup.Service
	}
}

type repositories struct {
	Targets   repository.TargetRepository
	FollowUps repository.FollowUpRepository
	Attempts  repository.AttemptStore
	Statuses  repository.StatusCache
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	container := &Container{Config: cfg, Logger: lg}

	if container.Postgres, err = db.NewPostgres(ctx, cfg.Postgres); err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}
	if container.Scylla, err = db.NewScylla(cfg.Scylla); err != nil {
		return nil, multierr.Append(fmt.Errorf("bootstrap scylla: %w", err), container.Close())
	}
	if container.Redis, err = redis.NewClient(ctx, cfg.Redis); err != nil {
		return nil, multierr.Append(fmt.Errorf("bootstrap redis: %w", err), container.Close())
	}
	if container.Kafka, err = queue.NewKafka(cfg.Kafka); err != nil {
		return nil, multierr.Append(fmt.Errorf("bootstrap kafka: %w", err), container.Close())
	}

	return container, nil
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		repos := &repositories{
			Targets:   pgrepo.NewTargetRepository(c.Postgres.DB()),
			FollowUps: pgrepo.NewFollowUpRepository(c.Postgres.DB()),
			Attempts:  scyllarepo.NewAttemptStore(c.Scylla.Session()),
			Statuses:  redisrepo.NewStatusCache(c.Redis.Inner(), c.Config.Redis.KeyPrefix, c.Config.Redis.StatusTTL),
		}

		metrics := telemetry.NewMetrics()
		provider := telephonyMock.NewProvider(c.Config.CallBridge)

		var svc *session.Service
		publisher := queue.NewKafkaEventPublisher(c.Kafka, func() uuid.UUID { return svc.RunID() },
			c.Config.Kafka.PublishBuffer, c.Logger)

		svc = session.NewService(session.Deps{
			Targets:   repos.Targets,
			Attempts:  repos.Attempts,
			Lock:      concurrency.NewOwnerLock(c.Redis.Inner(), c.Config.Redis.KeyPrefix, c.Config.Dialer.RunLockTTL),
			Caller:    telephony.AsCaller(provider, c.Config.CallBridge.RequestTimeout),
			Listeners: []dialer.Listener{metrics, publisher},
			Config:    c.Config.Dialer,
			Logger:    c.Logger,
		})

		c.components.repositories = repos
		c.components.metrics = metrics
		c.components.provider = provider
		c.components.publisher = publisher
		c.components.session = svc
		c.components.followUps = followup.NewService(repos.FollowUps, repos.Targets, c.Logger)
	})
}

// Repositories exposes initialized repositories.
func (c *Container) Repositories() *repositories {
	c.initComponents()
	return c.components.repositories
}

// Session exposes the dial session service.
func (c *Container) Session() *session.Service {
	c.initComponents()
	return c.components.session
}

// FollowUps exposes the follow-up note service.
func (c *Container) FollowUps() *followup.Service {
	c.initComponents()
	return c.components.followUps
}

// Publisher exposes the Kafka event publisher fed by the session's scheduler.
func (c *Container) Publisher() *queue.EventPublisher {
	c.initComponents()
	return c.components.publisher
}

// Metrics exposes the Prometheus collectors.
func (c *Container) Metrics() *telemetry.Metrics {
	c.initComponents()
	return c.components.metrics
}

// HealthChecks lists dependency probes by name.
func (c *Container) HealthChecks() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"postgres": c.Postgres.Ping,
		"redis":    c.Redis.Ping,
		"scylla": func(ctx context.Context) error {
			return c.Scylla.Session().Query("SELECT now() FROM system.local").WithContext(ctx).Exec()
		},
	}
}

// Close releases all held resources.
func (c *Container) Close() error {
	var err error
	if c.components.publisher != nil {
		err = multierr.Append(err, wrapClose("event publisher", c.components.publisher.Close()))
	}
	if c.Redis != nil {
		err = multierr.Append(err, wrapClose("redis", c.Redis.Close()))
	}
	if c.Scylla != nil {
		err = multierr.Append(err, wrapClose("scylla", c.Scylla.Close()))
	}
	if c.Postgres != nil {
		err = multierr.Append(err, wrapClose("postgres", c.Postgres.Close()))
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	return err
}

func wrapClose(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s close: %w", name, err)
}

// EnsureTopics ensures the dial event topic exists.
func (c *Container) EnsureTopics(ctx context.Context) error {
	return c.Kafka.EnsureTopics(ctx, []string{c.Kafka.EventTopic()}, 12, 1)
}
