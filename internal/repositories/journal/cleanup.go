package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
)

const cleanupTimeout = 5 * time.Minute

// Cleaner deletes journal rows older than the retention period once a day.
type Cleaner struct {
	repo      Repository
	retention time.Duration
	logger    logger.Logger
}

func NewCleaner(repo Repository, retention time.Duration, log logger.Logger) *Cleaner {
	return &Cleaner{
		repo:      repo,
		retention: retention,
		logger:    log.WithComponent("JournalCleaner"),
	}
}

// Run performs one cleanup pass.
func (c *Cleaner) Run(ctx context.Context) error {
	if c.retention <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
	defer cancel()

	deleted, err := c.repo.CleanupOldRecords(ctx, c.retention)
	if err != nil {
		return fmt.Errorf("failed to clean up journal: %w", err)
	}

	c.logger.Info("Journal cleanup finished", "deleted", deleted, "retention", c.retention)
	return nil
}

// Schedule runs the cleanup daily at 03:00 until ctx is cancelled.
func (c *Cleaner) Schedule(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			if err := c.Run(ctx); err != nil {
				c.logger.Error("Scheduled journal cleanup failed", "error", err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule journal cleanup: %w", err)
	}

	scheduler.Start()

	go func() {
		<-ctx.Done()
		c.logger.Info("Stopping journal cleanup scheduler")
		if err := scheduler.Shutdown(); err != nil {
			c.logger.Error("Failed to shut down scheduler", "error", err)
		}
	}()

	return nil
}
