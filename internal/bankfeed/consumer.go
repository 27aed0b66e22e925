package bankfeed

import (
	"context"
	"log/slog"
	"time"

	"renthub-platform/internal/settlement"
)

// Applier is the reconciliation entry point the consumer hands lines to.
type Applier interface {
	Apply(ctx context.Context, line settlement.FeedLine) (settlement.Result, error)
}

// Options tune the poll loop. Zero values get the config defaults.
type Options struct {
	PollInterval time.Duration
	BackoffBase  time.Duration
	BackoffMax   time.Duration
}

func (o Options) withDefaults() Options {
	out := o
	if out.PollInterval <= 0 {
		out.PollInterval = 10 * time.Second
	}
	if out.BackoffBase <= 0 {
		out.BackoffBase = time.Second
	}
	if out.BackoffMax <= 0 {
		out.BackoffMax = 2 * time.Minute
	}
	return out
}

// Consumer polls a Source and pushes every line through the reconciler.
// The feed is the authoritative trigger; gateway pushes only make results
// visible sooner. Fetch failures back off exponentially and the backoff
// resets on the first successful fetch.
type Consumer struct {
	source  Source
	applier Applier
	opts    Options
	log     *slog.Logger

	cursor  string
	backoff time.Duration
}

func NewConsumer(source Source, applier Applier, opts Options, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		source:  source,
		applier: applier,
		opts:    opts.withDefaults(),
		log:     log,
	}
}

// Run blocks until ctx ends, fetching on the poll interval.
func (c *Consumer) Run(ctx context.Context) {
	for {
		wait := c.opts.PollInterval
		if err := c.PollOnce(ctx); err != nil {
			wait = c.backoff
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// PollOnce fetches one batch and applies it. Exported so a webhook or an
// admin endpoint can force an immediate fetch between ticks.
func (c *Consumer) PollOnce(ctx context.Context) error {
	lines, next, err := c.source.FetchNew(ctx, c.cursor)
	if err != nil {
		c.backoff = c.nextBackoff()
		c.log.Error("feed fetch failed", "err", err, "retry_in", c.backoff)
		return err
	}
	c.backoff = 0

	for _, line := range lines {
		res, err := c.applier.Apply(ctx, line)
		if err != nil {
			// The line stays before the cursor; it is retried next poll.
			c.log.Error("feed line apply failed", "line_id", line.ID, "err", err)
			return err
		}
		c.log.Debug("feed line processed", "line_id", line.ID, "outcome", string(res.Outcome))
	}

	c.cursor = next
	return nil
}

func (c *Consumer) nextBackoff() time.Duration {
	if c.backoff <= 0 {
		return c.opts.BackoffBase
	}
	next := c.backoff * 2
	if next > c.opts.BackoffMax {
		return c.opts.BackoffMax
	}
	return next
}
