package workerapp

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ivankudzin/shipyard/internal/config"
	"github.com/ivankudzin/shipyard/internal/infra/logger"
	"github.com/ivankudzin/shipyard/internal/jobs/cleanup"
	pgrepo "github.com/ivankudzin/shipyard/internal/repo/postgres"
)

const defaultCleanupInterval = time.Hour

// Job is one unit of periodic maintenance.
type Job interface {
	Run(ctx context.Context) error
}

type scheduledJob struct {
	name     string
	interval time.Duration
	job      Job
}

type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	jobs     []scheduledJob
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	pool, err := pgrepo.NewPool(ctx, pgrepo.PoolConfig{
		DSN:              cfg.Postgres.DSN,
		StatementTimeout: cfg.Postgres.StatementTimeout,
		ConnectTimeout:   cfg.Postgres.ConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init postgres for worker app: %w", err)
	}

	interval := cfg.Worker.CleanupInterval
	if interval <= 0 {
		interval = defaultCleanupInterval
	}

	orphanJob := cleanup.NewOrphanConversationJob(pgrepo.NewConversationRepo(pool), cfg.Worker.OrphanGrace, log)

	return &App{
		cfg:      cfg,
		logger:   log,
		postgres: pool,
		jobs: []scheduledJob{
			{name: "orphan-conversations", interval: interval, job: orphanJob},
		},
	}, nil
}

// Run schedules every job, runs each once immediately and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(logger.Gocron(a.logger)),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	for _, sj := range a.jobs {
		if err := a.schedule(ctx, s, sj); err != nil {
			_ = s.Shutdown()
			return err
		}
	}

	s.Start()
	a.logger.Info("worker app started", zap.Int("jobs", len(a.jobs)))

	<-ctx.Done()

	if err := s.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	a.logger.Info("worker app stopped")
	return nil
}

func (a *App) schedule(ctx context.Context, s gocron.Scheduler, sj scheduledJob) error {
	log := a.logger.With(zap.String("job", sj.name))
	_, err := s.NewJob(
		gocron.DurationJob(sj.interval),
		gocron.NewTask(func(ctx context.Context) {
			if err := sj.job.Run(ctx); err != nil {
				log.Error("scheduled job failed", zap.Error(err))
			}
		}, ctx),
		gocron.WithName(sj.name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule job %q: %w", sj.name, err)
	}
	log.Info("job scheduled", zap.Duration("interval", sj.interval))
	return nil
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
}
