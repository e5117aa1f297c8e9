package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/alanyoungcy/oraclerelay/internal/domain"
)

// SnapshotWarmer is anything that can trigger one snapshot fetch.
type SnapshotWarmer interface {
	Snapshot(ctx context.Context) (domain.OracleSnapshot, error)
}

// Poller fetches the oracle on a cron schedule so the fallback slot holds a
// recent snapshot before (and between) inbound requests. Overlapping runs
// are skipped.
type Poller struct {
	warmer   SnapshotWarmer
	schedule string
	logger   *slog.Logger
}

// NewPoller creates a Poller. schedule uses the standard cron syntax plus
// descriptors such as "@every 30s".
func NewPoller(warmer SnapshotWarmer, schedule string, logger *slog.Logger) *Poller {
	return &Poller{
		warmer:   warmer,
		schedule: schedule,
		logger:   logger.With(slog.String("component", "poller")),
	}
}

// Run fetches once immediately, then on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	cl := cronLogger{logger: p.logger}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(p.schedule, func() { p.poll(ctx) }); err != nil {
		return fmt.Errorf("poller: schedule %q: %w", p.schedule, err)
	}

	p.poll(ctx)
	c.Start()
	p.logger.InfoContext(ctx, "poller started", slog.String("schedule", p.schedule))

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func (p *Poller) poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	snap, err := p.warmer.Snapshot(ctx)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, context.Canceled) {
			level = slog.LevelDebug
		}
		p.logger.Log(ctx, level, "poll failed", slog.String("error", err.Error()))
		return
	}
	p.logger.DebugContext(ctx, "poll ok",
		slog.Float64("price", snap.Price),
		slog.String("price_state", snap.PriceState),
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
