package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultOrphanGrace = time.Hour

type orphanSweeper interface {
	DeleteOrphans(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job removes conversations left with fewer than two participants and no
// messages, typically after a create raced with a failed participant insert.
type Job struct {
	conversations orphanSweeper
	grace         time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

func NewOrphanConversationJob(conversations orphanSweeper, grace time.Duration, logger *zap.Logger) *Job {
	if grace <= 0 {
		grace = defaultOrphanGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		conversations: conversations,
		grace:         grace,
		now:           time.Now,
		logger:        logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.conversations == nil {
		return nil
	}

	cutoff := j.now().Add(-j.grace)
	rows, err := j.conversations.DeleteOrphans(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete orphan conversations: %w", err)
	}
	if rows > 0 {
		j.logger.Info("cleanup orphan conversations completed",
			zap.Int64("deleted", rows),
			zap.Time("cutoff", cutoff),
		)
	}
	return nil
}
