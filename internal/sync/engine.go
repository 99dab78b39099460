package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/bookboard-app/bookboard/internal/model"
	"github.com/bookboard-app/bookboard/internal/store"
)

const (
	otelScope      = "bookboard/sync"
	spanDrain      = "sync.outbox.drain"
	metricMirrored = "bookboard.sync.outbox.mirrored"
	metricFailed   = "bookboard.sync.outbox.failed"
	metricDepth    = "bookboard.sync.outbox.depth"

	// drainBatch bounds how many entries a single pass replays.
	drainBatch = 100
)

// Stats tracks the outcome of a single outbox drain pass.
type Stats struct {
	Mirrored int
	Failed   int
}

// Engine periodically replays the outbox against the remote collections so
// that mutations whose mirror failed eventually reach the remote store.
// Create one with [NewEngine] and start it with [Engine.Run].
type Engine struct {
	outbox   OutboxQueue
	posts    RemotePosts
	profiles RemoteProfiles
	interval time.Duration
	log      *slog.Logger

	// OTel instruments, always non-nil (no-op when telemetry is disabled).
	tracer      trace.Tracer
	cntMirrored metric.Int64Counter
	cntFailed   metric.Int64Counter
}

// NewEngine creates an Engine draining the outbox every interval.
func NewEngine(outbox OutboxQueue, posts RemotePosts, profiles RemoteProfiles, interval time.Duration, logger *slog.Logger) *Engine {
	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	e := &Engine{
		outbox:   outbox,
		posts:    posts,
		profiles: profiles,
		interval: interval,
		log:      logger,

		tracer:      tracer,
		cntMirrored: mustCounter(metricMirrored, "Number of outbox entries mirrored to the remote store"),
		cntFailed:   mustCounter(metricFailed, "Number of outbox replay failures"),
	}

	// Queue depth as an observable gauge: sampled at collection time rather
	// than on every enqueue/delete.
	_, err := meter.Int64ObservableGauge(metricDepth,
		metric.WithDescription("Current number of pending outbox entries"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			depth, err := outbox.Depth(ctx)
			if err != nil {
				return err
			}
			o.Observe(int64(depth))
			return nil
		}),
	)
	if err != nil {
		logger.Error("creating OTel gauge", "name", metricDepth, "error", err)
	}

	return e
}

// DrainOnce replays up to one batch of pending entries and returns. Entries
// that still fail stay queued with their attempt counter bumped; draining
// continues past individual failures to maximise progress.
func (e *Engine) DrainOnce(ctx context.Context) (Stats, error) {
	ctx, span := e.tracer.Start(ctx, spanDrain)
	defer span.End()

	var stats Stats
	var firstErr error

	pending, err := e.outbox.Pending(ctx, drainBatch)
	if err != nil {
		span.RecordError(err)
		return stats, fmt.Errorf("listing outbox: %w", err)
	}

	for _, op := range pending {
		if err := e.replay(ctx, op); err != nil {
			e.log.Warn("outbox replay failed",
				"entity", op.Entity,
				"op", op.Op,
				"entity_id", op.EntityID,
				"attempts", op.Attempts+1,
				"error", err,
			)
			stats.Failed++
			if firstErr == nil {
				firstErr = err
			}
			if bumpErr := e.outbox.Bump(ctx, op.ID); bumpErr != nil {
				e.log.Error("bumping outbox entry", "id", op.ID, "error", bumpErr)
			}
			continue
		}
		if err := e.outbox.Delete(ctx, op.ID); err != nil {
			e.log.Error("removing replayed outbox entry", "id", op.ID, "error", err)
			continue
		}
		stats.Mirrored++
	}

	if stats.Mirrored > 0 {
		e.cntMirrored.Add(ctx, int64(stats.Mirrored))
	}
	if stats.Failed > 0 {
		e.cntFailed.Add(ctx, int64(stats.Failed))
	}
	span.SetAttributes(
		attribute.Int("sync.outbox.mirrored", stats.Mirrored),
		attribute.Int("sync.outbox.failed", stats.Failed),
	)
	if firstErr != nil {
		span.RecordError(firstErr)
	}

	if stats.Mirrored > 0 || stats.Failed > 0 {
		e.log.Info("outbox drain complete", "mirrored", stats.Mirrored, "failed", stats.Failed)
	}
	return stats, firstErr
}

// replay applies a single pending operation to the matching remote
// collection.
func (e *Engine) replay(ctx context.Context, op *store.PendingOp) error {
	switch {
	case op.Entity == store.EntityPost && op.Op == store.OpSet:
		var p model.Post
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return fmt.Errorf("decoding post payload: %w", err)
		}
		return e.posts.Set(ctx, &p)

	case op.Entity == store.EntityPost && op.Op == store.OpDelete:
		return e.posts.Delete(ctx, op.EntityID)

	case op.Entity == store.EntityProfile && op.Op == store.OpSet:
		var p model.Profile
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return fmt.Errorf("decoding profile payload: %w", err)
		}
		return e.profiles.Set(ctx, &p)

	case op.Entity == store.EntityProfile && op.Op == store.OpDelete:
		return e.profiles.Delete(ctx, op.EntityID)
	}
	return fmt.Errorf("unknown outbox entry %s/%s", op.Entity, op.Op)
}

// Run drains the outbox on a fixed interval until ctx is cancelled. It blocks.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	// Run an immediate first pass.
	if _, err := e.DrainOnce(ctx); err != nil {
		e.log.Error("initial outbox drain failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync engine shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.DrainOnce(ctx); err != nil {
				e.log.Error("outbox drain failed", "error", err)
			}
		}
	}
}
