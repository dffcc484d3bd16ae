// Package app builds the engine's object graph once per process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"dsrengine/internal/access"
	"dsrengine/internal/audit"
	"dsrengine/internal/categoryrun"
	consenthandler "dsrengine/internal/consent/handler"
	consentservice "dsrengine/internal/consent/service"
	consentstore "dsrengine/internal/consent/store"
	"dsrengine/internal/deletion"
	"dsrengine/internal/export"
	"dsrengine/internal/identity"
	"dsrengine/internal/platform/config"
	"dsrengine/internal/platform/database"
	"dsrengine/internal/platform/health"
	"dsrengine/internal/platform/kafka/producer"
	"dsrengine/internal/platform/metrics"
	"dsrengine/internal/platform/privacy"
	redisclient "dsrengine/internal/platform/redis"
	"dsrengine/internal/platform/tracer"
	"dsrengine/internal/ratelimit"
	"dsrengine/internal/registry"
	requestshandler "dsrengine/internal/requests/handler"
	requestsservice "dsrengine/internal/requests/service"
	requestsstore "dsrengine/internal/requests/store"
	"dsrengine/internal/requests/worker"
	"dsrengine/internal/retention"
	"dsrengine/internal/seeder"
	"dsrengine/internal/subjectdata"
	httptransport "dsrengine/internal/transport/http"
	id "dsrengine/pkg/domain"
	authmw "dsrengine/pkg/platform/middleware/auth"
)

// DemoUsers are seeded when the engine runs without a database and without
// an identity service.
var DemoUsers = []id.UserID{"demo-alice", "demo-bob", "demo-carol"}

// Engine is the process-wide context object. Nothing in the engine reads
// globals; everything it needs hangs off this struct.
type Engine struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Prom    *prometheus.Registry
	Tracer  tracer.Tracer
	Health  *health.Handler

	DB       *database.Pool
	Redis    *redisclient.Client
	Producer *producer.Producer

	Categories  *registry.Registry
	SubjectData subjectdata.Store
	Identity    identity.Verifier
	Auditor     *audit.Publisher
	Exports     *export.Service

	Consent  *consentservice.Service
	Requests *requestsservice.Service
	Worker   *worker.Worker
	Sweeper  *retention.Sweeper

	// Limiter is nil when rate limiting is disabled.
	Limiter      *ratelimit.Middleware
	limitWindows *ratelimit.MemoryStore

	sweepWG sync.WaitGroup
	cancel  context.CancelFunc
}

// Build wires every dependency from cfg. Optional backends (Postgres, Redis,
// Kafka, S3, identity service) fall back to in-process implementations when
// their configuration is empty.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Engine, error) {
	e := &Engine{
		Config: cfg,
		Logger: logger,
		Prom:   prometheus.NewRegistry(),
		Tracer: tracer.NewOTel(),
		Health: health.New(envName(cfg)),
	}
	e.Prom.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	e.Metrics = metrics.New(e.Prom)

	if err := e.buildInfra(ctx); err != nil {
		e.closeInfra(ctx)
		return nil, err
	}
	if err := e.buildDomain(ctx); err != nil {
		e.closeInfra(ctx)
		return nil, err
	}
	return e, nil
}

func envName(cfg config.Config) string {
	if cfg.Database.URL == "" {
		return "development"
	}
	return "production"
}

func (e *Engine) buildInfra(ctx context.Context) error {
	cfg := e.Config

	pool, err := database.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if pool != nil {
		e.DB = pool
		e.Health.RegisterCheck("database", pool.Health)
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, pool.DB()); err != nil {
				return err
			}
		}
		e.Logger.Info("connected to postgres")
	}

	rc, err := redisclient.New(ctx, cfg.Redis, e.Metrics)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rc != nil {
		e.Redis = rc
		e.Health.RegisterCheck("redis", rc.Health)
		e.Logger.Info("connected to redis")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		p, err := producer.New(cfg.Kafka, e.Logger)
		if err != nil {
			return err
		}
		e.Producer = p
		if err := p.EnsureTopic(ctx, cfg.Kafka.AuditTopic); err != nil {
			e.Logger.Warn("could not ensure audit topic, relying on auto-creation", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		e.Health.RegisterCheck("kafka", p.Health)
		e.Logger.Info("audit fan-out to kafka enabled", "topic", cfg.Kafka.AuditTopic)
	}
	return nil
}

func (e *Engine) buildDomain(ctx context.Context) error {
	cfg := e.Config

	anonymizer, err := privacy.NewAnonymizer()
	if err != nil {
		return err
	}
	var subjectStore subjectdata.Store = subjectdata.NewInMemoryStore()
	if e.DB != nil {
		subjectStore = subjectdata.NewPostgresStore(e.DB.DB())
	}
	e.SubjectData = subjectStore

	policy, err := registry.LoadFile(cfg.Engine.RegistryFile)
	if err != nil {
		return err
	}
	e.Categories, err = registry.New(policy, subjectdata.NewFactory(subjectStore, anonymizer))
	if err != nil {
		return fmt.Errorf("build category registry: %w", err)
	}
	e.Logger.Info("category registry loaded",
		"file", cfg.Engine.RegistryFile,
		"categories", len(e.Categories.Current().ListAll()),
	)

	if err := e.buildIdentity(ctx); err != nil {
		return err
	}
	e.buildAuditor()
	if err := e.buildExports(ctx); err != nil {
		return err
	}

	var (
		consentStore consentservice.Store
		requestStore interface {
			requestsservice.Store
			worker.Store
		}
		consentOpts []consentservice.Option
	)
	if e.DB != nil {
		consentStore = consentstore.NewPostgres(e.DB.DB())
		consentOpts = append(consentOpts, consentservice.WithTx(newConsentPostgresTx(e.DB.DB())))
		requestStore = requestsstore.NewPostgres(e.DB.DB())
	} else {
		consentStore = consentstore.New()
		requestStore = requestsstore.New()
	}

	e.Consent = consentservice.New(consentStore, e.Categories, e.Auditor, append(consentOpts,
		consentservice.WithMetrics(e.Metrics),
		consentservice.WithLogger(e.Logger),
	)...)

	runner := categoryrun.New(
		categoryrun.WithMaxRetries(cfg.Engine.MaxCategoryRetries),
		categoryrun.WithBaseDelay(cfg.Engine.RetryBaseDelay),
		categoryrun.WithTimeout(cfg.Engine.CategoryTimeout),
		categoryrun.WithTracer(e.Tracer),
		categoryrun.WithMetrics(e.Metrics),
		categoryrun.WithLogger(e.Logger),
	)
	e.Worker = worker.New(requestStore, e.Categories,
		access.New(runner, e.Exports, e.Auditor,
			access.WithHandleTTL(cfg.Engine.ExportHandleTTL),
			access.WithLogger(e.Logger),
		),
		deletion.New(runner, e.Auditor,
			deletion.WithExports(e.Exports),
			deletion.WithLogger(e.Logger),
		),
		worker.WithWorkers(cfg.Engine.Workers),
		worker.WithQueueSize(cfg.Engine.QueueSize),
		worker.WithPollInterval(cfg.Engine.PollInterval),
		worker.WithClaimLease(claimLease(cfg.Engine, len(e.Categories.Current().ListAll()))),
		worker.WithAuditor(e.Auditor),
		worker.WithMetrics(e.Metrics),
		worker.WithTracer(e.Tracer),
		worker.WithLogger(e.Logger),
	)
	e.Requests = requestsservice.New(requestStore, e.Identity, e.Categories, e.Auditor,
		requestsservice.WithMetrics(e.Metrics),
		requestsservice.WithLogger(e.Logger),
		requestsservice.WithIdentityFreshness(cfg.Engine.IdentityFreshness),
		requestsservice.WithNotifier(e.Worker),
		requestsservice.WithExports(e.Exports),
	)
	e.Sweeper = retention.New(e.Categories,
		retention.WithInterval(cfg.Engine.SweepInterval),
		retention.WithAuditor(e.Auditor),
		retention.WithExports(e.Exports),
		retention.WithMetrics(e.Metrics),
		retention.WithTracer(e.Tracer),
		retention.WithLogger(e.Logger),
	)
	e.Health.RegisterGauge("queue_depth", e.Worker.QueueDepth)
	e.Health.RegisterGauge("categories", func() int { return len(e.Categories.Current().ListAll()) })
	e.buildLimiter()
	return nil
}

// claimLease bounds how long a request may stay PROCESSING: every category
// exhausting every attempt at the full timeout, plus a minute of slack.
func claimLease(cfg config.Engine, categories int) time.Duration {
	attempts := time.Duration(cfg.MaxCategoryRetries + 1)
	return cfg.CategoryTimeout*attempts*time.Duration(max(categories, 1)) + time.Minute
}

func (e *Engine) buildLimiter() {
	cfg := e.Config.Limits
	if cfg.Requests == 0 {
		return
	}
	var store ratelimit.Store
	if e.Redis != nil {
		store = ratelimit.NewRedisStore(e.Redis.Client, nil)
	} else {
		e.limitWindows = ratelimit.NewMemoryStore(nil)
		store = e.limitWindows
	}
	e.Limiter = ratelimit.New(store, cfg.Requests, cfg.Window,
		ratelimit.WithLogger(e.Logger),
		ratelimit.WithMetrics(e.Metrics),
	)
}

func (e *Engine) buildIdentity(ctx context.Context) error {
	cfg := e.Config.Identity
	if cfg.URL != "" {
		v := identity.NewHTTPVerifier(cfg.URL, cfg.Timeout, identity.WithLogger(e.Logger))
		e.Identity = v
		e.Health.RegisterCheck("identity", v.Health)
		return nil
	}

	static := identity.NewStaticVerifier()
	e.Identity = static
	e.Logger.Warn("IDENTITY_SERVICE_URL not set, using static verifier with demo users")
	if e.DB != nil {
		return nil
	}
	mem, ok := e.SubjectData.(*subjectdata.InMemoryStore)
	if !ok {
		return nil
	}
	return seeder.New(mem, static, e.Logger).SeedAll(ctx, DemoUsers)
}

func (e *Engine) buildAuditor() {
	var store audit.Store = audit.NewInMemoryStore()
	if e.DB != nil {
		store = audit.NewPostgresStore(e.DB.DB())
	}
	if e.Producer != nil {
		store = audit.NewFanOutStore(store, audit.NewKafkaSink(e.Producer, e.Config.Kafka.AuditTopic), e.Logger)
	}
	opts := []audit.PublisherOption{
		audit.WithPublisherLogger(e.Logger),
		audit.WithPublisherMetrics(e.Metrics),
	}
	if e.Config.Engine.AsyncAudit {
		opts = append(opts, audit.WithAsyncBuffer(1024))
	}
	e.Auditor = audit.NewPublisher(store, opts...)
}

func (e *Engine) buildExports(ctx context.Context) error {
	cfg := e.Config.Export

	var blobs export.Blobs = export.NewMemoryBlobs()
	if cfg.Bucket != "" {
		s3Blobs, err := export.NewS3BlobsFromConfig(ctx, cfg)
		if err != nil {
			return err
		}
		blobs = s3Blobs
		e.Logger.Info("export payloads stored in s3", "bucket", cfg.Bucket)
	}

	var index export.Index = export.NewMemoryIndex()
	if e.Redis != nil {
		index = export.NewRedisIndex(e.Redis.Client)
	}

	opts := []export.Option{
		export.WithKeyPrefix(cfg.KeyPrefix),
		export.WithBaseURL(cfg.PublicURL),
	}
	if cfg.AgeIdentity != "" {
		sealer, err := export.NewAgeSealer(cfg.AgeIdentity)
		if err != nil {
			return err
		}
		opts = append(opts, export.WithSealer(sealer))
		e.Logger.Info("export payloads sealed at rest")
	}
	e.Exports = export.NewService(blobs, index, opts...)
	return nil
}

// Router assembles the HTTP surface.
func (e *Engine) Router() http.Handler {
	var validator *authmw.Validator
	if e.Config.Auth.Enabled() {
		validator = authmw.NewValidator(e.Config.Auth.SigningKey, e.Config.Auth.Issuer)
	}
	authz := authmw.NewAuthorizer(e.Config.Auth.AdminRole)
	requests := requestshandler.New(e.Requests, authz, e.Logger)

	var limit func(http.Handler) http.Handler
	if e.Limiter != nil {
		limit = e.Limiter.Limit("api")
	}

	return httptransport.NewRouter(httptransport.Config{
		Logger:         e.Logger,
		Metrics:        e.Metrics,
		Gatherer:       e.Prom,
		Health:         e.Health,
		Validator:      validator,
		RateLimit:      limit,
		RequestTimeout: e.Config.Server.RequestTimeout,
		Handlers: []httptransport.RouteRegistrar{
			consenthandler.New(e.Consent, authz, e.Logger),
			requests,
		},
		Downloads: requests,
	})
}

// Start launches the background workers. They stop on Shutdown.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.Worker.Start()

	e.sweepWG.Add(1)
	go func() {
		defer e.sweepWG.Done()
		if err := e.Sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.Logger.Error("retention sweeper stopped", "error", err)
		}
	}()

	if e.Redis != nil {
		e.sweepWG.Add(1)
		go func() {
			defer e.sweepWG.Done()
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					e.Redis.RecordPoolStats()
				}
			}
		}()
	}

	if e.limitWindows != nil {
		e.sweepWG.Add(1)
		go func() {
			defer e.sweepWG.Done()
			ticker := time.NewTicker(e.Config.Limits.Window)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					e.limitWindows.Prune()
				}
			}
		}()
	}
}

// ReloadRegistry re-reads the category policy file and publishes it as a
// new snapshot. Requests already processing keep the snapshot they began with;
// on error the current snapshot stays in place.
func (e *Engine) ReloadRegistry() error {
	policy, err := registry.LoadFile(e.Config.Engine.RegistryFile)
	if err != nil {
		return err
	}
	snap, err := e.Categories.Publish(policy)
	if err != nil {
		return fmt.Errorf("publish category registry: %w", err)
	}
	e.Logger.Info("category registry reloaded",
		"file", e.Config.Engine.RegistryFile,
		"version", snap.Version(),
		"categories", len(snap.ListAll()),
	)
	return nil
}

// Shutdown stops background work, drains the audit buffer and closes
// connections. It returns every failure joined.
func (e *Engine) Shutdown(ctx context.Context) error {
	var errs []error
	if e.cancel != nil {
		e.cancel()
	}
	if e.Worker != nil {
		if err := e.Worker.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop worker: %w", err))
		}
	}
	e.sweepWG.Wait()
	if e.Auditor != nil {
		if err := e.Auditor.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain audit buffer: %w", err))
		}
	}
	errs = append(errs, e.closeInfra(ctx)...)
	return errors.Join(errs...)
}

func (e *Engine) closeInfra(ctx context.Context) []error {
	var errs []error
	if e.Producer != nil {
		if err := e.Producer.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
		}
	}
	if e.Redis != nil {
		if err := e.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := e.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errs
}
