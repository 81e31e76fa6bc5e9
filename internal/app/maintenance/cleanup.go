package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tradelink-hq/tradelink/internal/models"
	"github.com/tradelink-hq/tradelink/pkg/logger"
)

const (
	defaultNotificationRetentionDays = 90
	defaultMessageRetentionDays      = 30
	defaultSchedule                  = "@daily"
)

// Cleaner purges read notifications and tombstoned chat messages once their
// retention window has passed.
type Cleaner struct {
	db   *gorm.DB
	cron *cron.Cron
	now  func() time.Time
	log  *zap.Logger

	notificationRetention int
	messageRetention      int
	schedule              string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithNotificationRetentionDays adjusts how long read notifications are kept.
func WithNotificationRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.notificationRetention = days
		}
	}
}

// WithMessageRetentionDays adjusts how long deleted message tombstones are kept.
func WithMessageRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.messageRetention = days
		}
	}
}

// WithSchedule overrides the cron specification for the cleanup run.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                    db,
		now:                   time.Now,
		notificationRetention: defaultNotificationRetentionDays,
		messageRetention:      defaultMessageRetentionDays,
		schedule:              defaultSchedule,
		log:                   logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup job with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.db == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("cleanup run failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any running job to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes the cleanup routines sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.db == nil {
		return errors.New("maintenance: db is required")
	}

	var errs error

	if c.notificationRetention > 0 {
		if _, err := CleanupNotifications(ctx, c.db, c.now(), c.notificationRetention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.messageRetention > 0 {
		if _, err := CleanupMessageTombstones(ctx, c.db, c.now(), c.messageRetention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// CleanupNotifications removes notifications that were read before the
// retention cutoff. Unread notifications are never purged.
func CleanupNotifications(ctx context.Context, db *gorm.DB, now time.Time, retentionDays int) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup notifications: db is required")
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	result := db.WithContext(ctx).
		Where("is_read = ? AND read_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CleanupMessageTombstones removes deleted chat messages once no client is
// expected to reference their ids any more.
func CleanupMessageTombstones(ctx context.Context, db *gorm.DB, now time.Time, retentionDays int) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup messages: db is required")
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	result := db.WithContext(ctx).
		Where("deleted = ? AND deleted_at < ?", true, cutoff).
		Delete(&models.ChatMessage{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup messages: %w", result.Error)
	}
	return result.RowsAffected, nil
}
