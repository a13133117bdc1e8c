// Package worker runs background maintenance. With Postgres it is a River
// job queue with a periodic owner reconciliation; with SQLite it runs the
// reconciliation once at start.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

// OwnerReconciler repairs organizations that do not have exactly one owner.
type OwnerReconciler interface {
	ReconcileOwners(ctx context.Context) (int, error)
}

// ReconcileOwnersArgs is the periodic owner reconciliation job.
type ReconcileOwnersArgs struct{}

// Kind returns the unique job type identifier.
func (ReconcileOwnersArgs) Kind() string { return "reconcile_owners" }

type reconcileOwnersWorker struct {
	river.WorkerDefaults[ReconcileOwnersArgs]
	owners OwnerReconciler
	log    *slog.Logger
}

func (w *reconcileOwnersWorker) Work(ctx context.Context, _ *river.Job[ReconcileOwnersArgs]) error {
	return reconcile(ctx, w.owners, w.log)
}

func reconcile(ctx context.Context, owners OwnerReconciler, log *slog.Logger) error {
	n, err := owners.ReconcileOwners(ctx)
	if err != nil {
		return fmt.Errorf("reconcile owners: %w", err)
	}
	if n > 0 {
		log.Warn("repaired organization owners", "organizations", n)
	}
	return nil
}

// Queue is the interface exposed by both the real River client and noopQueue.
type Queue interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Client wraps river.Client and exposes a Start/Stop lifecycle.
type Client struct {
	client *river.Client[pgx.Tx]
	log    *slog.Logger
}

// Start begins processing queued jobs.
func (c *Client) Start(ctx context.Context) error { return c.client.Start(ctx) }

// Stop gracefully shuts down the worker client.
func (c *Client) Stop(ctx context.Context) error { return c.client.Stop(ctx) }

// noopQueue is used when River is unavailable (DB_DRIVER=sqlite).
type noopQueue struct {
	owners OwnerReconciler
	log    *slog.Logger
}

func (n *noopQueue) Start(ctx context.Context) error {
	n.log.Info("job queue disabled (River requires postgres); reconciling owners once")
	return reconcile(ctx, n.owners, n.log)
}

func (n *noopQueue) Stop(_ context.Context) error { return nil }

// Options configures New.
type Options struct {
	Driver            string
	Concurrency       int
	ReconcileInterval time.Duration
}

// New creates a queue implementation appropriate for the given driver.
//   - "postgres": a River client backed by pool that reconciles owners
//     every ReconcileInterval, starting immediately.
//   - anything else: a queue that reconciles once when started.
//
// pool may be nil when the driver is not postgres.
func New(pool *pgxpool.Pool, owners OwnerReconciler, opts Options, log *slog.Logger) (Queue, error) {
	if opts.Driver != "postgres" {
		return &noopQueue{owners: owners, log: log}, nil
	}
	workers := river.NewWorkers()
	river.AddWorker(workers, &reconcileOwnersWorker{owners: owners, log: log})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: opts.Concurrency},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(opts.ReconcileInterval),
				func() (river.JobArgs, *river.InsertOpts) { return ReconcileOwnersArgs{}, nil },
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return &Client{client: client, log: log}, nil
}

// MigrateRiver runs River's built-in schema migrations against the given pool.
// Only call this when DB_DRIVER=postgres.
func MigrateRiver(ctx context.Context, db *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("run river migrations: %w", err)
	}
	return nil
}
