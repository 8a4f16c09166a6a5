package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/epicgather/epicgather/internal/auth"
	"github.com/epicgather/epicgather/pkg/logger"
)

const (
	defaultTokenRetention = 30 * 24 * time.Hour
	defaultRefreshSpec    = "@hourly"
	defaultTokenSpec      = "@daily"
)

// Cleaner coordinates background maintenance: evicting dead refresh tokens
// and pruning long-expired single-use tokens. Correctness of the auth flows
// never depends on these sweeps; expiry is always checked at presentation
// time.
type Cleaner struct {
	refresh   *iauth.RefreshService
	tokens    *iauth.TokenService
	cron      *cron.Cron
	log       *zap.Logger
	retention time.Duration

	refreshSchedule string
	tokenSchedule   string
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

// WithTokenRetention adjusts how long unconsumed expired tokens are kept before pruning.
func WithTokenRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention > 0 {
			cleaner.retention = retention
		}
	}
}

// WithRefreshSchedule overrides the cron specification for refresh token cleanup.
func WithRefreshSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.refreshSchedule = spec
		}
	}
}

// WithTokenSchedule overrides the cron specification for single-use token cleanup.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(refresh *iauth.RefreshService, tokens *iauth.TokenService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		refresh:         refresh,
		tokens:          tokens,
		retention:       defaultTokenRetention,
		refreshSchedule: defaultRefreshSpec,
		tokenSchedule:   defaultTokenSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.refresh != nil {
		if _, err := c.cron.AddFunc(c.refreshSchedule, func() {
			ctx := context.Background()
			if _, err := c.refresh.CleanupExpired(ctx); err != nil {
				c.log.Warn("refresh token cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.tokens != nil {
		if _, err := c.cron.AddFunc(c.tokenSchedule, func() {
			ctx := context.Background()
			if _, err := c.tokens.CleanupExpired(ctx, c.retention); err != nil {
				c.log.Warn("single-use token cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily
// used in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.refresh != nil {
		if _, err := c.refresh.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.tokens != nil {
		if _, err := c.tokens.CleanupExpired(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
