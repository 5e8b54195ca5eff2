package apiapp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/shipyard/internal/config"
	"github.com/ivankudzin/shipyard/internal/infra/httpclient"
	s3infra "github.com/ivankudzin/shipyard/internal/infra/s3"
	pgrepo "github.com/ivankudzin/shipyard/internal/repo/postgres"
	redrepo "github.com/ivankudzin/shipyard/internal/repo/redis"
	authsvc "github.com/ivankudzin/shipyard/internal/services/auth"
	convsvc "github.com/ivankudzin/shipyard/internal/services/conversations"
	mediasvc "github.com/ivankudzin/shipyard/internal/services/media"
	msgsvc "github.com/ivankudzin/shipyard/internal/services/messages"
	profilesvc "github.com/ivankudzin/shipyard/internal/services/profiles"
	ratesvc "github.com/ivankudzin/shipyard/internal/services/rate"
	"github.com/ivankudzin/shipyard/internal/services/realtime"
	summarysvc "github.com/ivankudzin/shipyard/internal/services/summary"
)

const bucketCheckTimeout = 5 * time.Second

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler
	// stopStreams ends hijacked WebSocket connections, which server.Shutdown does not track.
	stopStreams context.CancelFunc
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, pgrepo.PoolConfig{
		DSN:              cfg.Postgres.DSN,
		StatementTimeout: cfg.Postgres.StatementTimeout,
		ConnectTimeout:   cfg.Postgres.ConnectTimeout,
	}); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	if pool != nil && cfg.Postgres.AutoMigrate {
		changed, err := pgrepo.Migrate(pool, pgrepo.MigrateOptions{})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		log.Info("migrations applied", zap.Bool("changed", changed))
	}

	var (
		redisClient *goredis.Client
		bus         realtime.Bus
		limiter     msgsvc.RateLimiter
	)
	if cfg.Redis.Enabled {
		redisClient = redrepo.NewClient(redrepo.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  cfg.Redis.Timeout,
		})
		bus = redrepo.NewMessageBus(redisClient)
		limiter = ratesvc.NewLimiter("message", redrepo.NewRateRepo(redisClient),
			cfg.Messages.RatePerMinute,
			cfg.Messages.RatePer10Seconds,
		)
	} else {
		log.Info("redis disabled, using in-process realtime bus without rate limits")
		bus = realtime.NewLocalBus()
	}

	authService, err := newAuthService(cfg.Auth)
	if err != nil {
		return nil, err
	}

	conversationRepo := pgrepo.NewConversationRepo(pool)
	messageRepo := pgrepo.NewMessageRepo(pool)
	profileRepo := pgrepo.NewProfileRepo(pool)
	diagnosticsRepo := pgrepo.NewDiagnosticsRepo(pool)

	conversationService := convsvc.NewService(conversationRepo, messageRepo)
	messageService := msgsvc.NewService(msgsvc.Dependencies{
		Store:      messageRepo,
		Authorizer: conversationService,
		Publisher:  bus,
		Limiter:    limiter,
		OnPublishError: func(conversationID string, err error) {
			log.Warn("realtime publish failed",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		},
	}, msgsvc.Config{MaxLength: cfg.Messages.MaxLength})
	realtimeService := realtime.NewService(bus, conversationService, messageRepo)
	profileService := profilesvc.NewService(profileRepo)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
		Region:    cfg.S3.Region,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}

	if s3Client != nil && cfg.S3.CreateBucket {
		bucketCtx, cancel := context.WithTimeout(ctx, bucketCheckTimeout)
		created, err := s3infra.EnsureBucket(bucketCtx, s3Client, cfg.S3.Bucket, cfg.S3.Region)
		cancel()
		if err != nil {
			log.Warn("s3 bucket check failed", zap.String("bucket", cfg.S3.Bucket), zap.Error(err))
		} else if created {
			log.Info("s3 bucket created", zap.String("bucket", cfg.S3.Bucket))
		}
	}

	var mediaStorage mediasvc.ObjectStorage
	if s3Client != nil {
		mediaStorage = mediasvc.NewS3Storage(s3Client, cfg.S3.Bucket, cfg.S3.PublicBaseURL)
	}
	mediaService := mediasvc.NewService(mediaStorage, int64(cfg.S3.MaxUploadMB)<<20)

	summaryService, err := newSummaryService(ctx, cfg.Summary)
	if err != nil {
		log.Warn("summary backend init failed, /summarize will fail", zap.Error(err))
	}

	RegisterRoutes(r, Dependencies{
		AuthService:         authService,
		ConversationService: conversationService,
		MessageService:      messageService,
		RealtimeService:     realtimeService,
		ProfileService:      profileService,
		MediaService:        mediaService,
		SummaryService:      summaryService,
		Diagnostics:         diagnosticsRepo,
		Logger:              log,
		Config:              cfg,
	})

	baseCtx, stopStreams := context.WithCancel(context.Background())
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}

	return &App{
		cfg:         cfg,
		logger:      log,
		server:      server,
		postgres:    pool,
		redis:       redisClient,
		s3:          s3Client,
		httpRouter:  r,
		stopStreams: stopStreams,
	}, nil
}

func newAuthService(cfg config.AuthConfig) (*authsvc.Service, error) {
	var provider authsvc.Provider
	switch cfg.Mode {
	case "jwt":
		provider = authsvc.NewJWTProvider(cfg.JWTSecret)
	case "remote":
		provider = authsvc.NewRemoteProvider(cfg.URL, cfg.APIKey, httpclient.New(cfg.Timeout), cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
	return authsvc.NewService(provider, cfg.CookieName), nil
}

func newSummaryService(ctx context.Context, cfg config.SummaryConfig) (*summarysvc.Service, error) {
	var generator summarysvc.Generator
	switch cfg.Provider {
	case "gemini":
		g, err := summarysvc.NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		generator = g
	default:
		g, err := summarysvc.NewOpenAIGenerator(cfg.APIKey, cfg.Model,
			summarysvc.WithBaseURL(cfg.BaseURL),
			summarysvc.WithHTTPClient(httpclient.New(cfg.Timeout)),
			summarysvc.WithSampling(math.Round(float64(cfg.Temperature)*100)/100, cfg.MaxTokens),
		)
		if err != nil {
			return nil, err
		}
		generator = g
	}
	return summarysvc.NewService(generator, cfg.Timeout)
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.stopStreams != nil {
		a.stopStreams()
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
