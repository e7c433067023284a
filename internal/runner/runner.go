// Package runner drives one publish run end to end: validate configuration,
// open the repository, build the transport, run the scheduler, then log and
// export the summary.
package runner

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/roach88/threadpost/internal/config"
	"github.com/roach88/threadpost/internal/content"
	"github.com/roach88/threadpost/internal/logging"
	"github.com/roach88/threadpost/internal/metrics"
	"github.com/roach88/threadpost/internal/scheduler"
	"github.com/roach88/threadpost/internal/store"
	"github.com/roach88/threadpost/internal/transport"
)

const pushTimeout = 10 * time.Second

// Repository is a scheduler repository that owns a connection.
type Repository interface {
	scheduler.Repository
	io.Closer
}

// RepositoryFactory opens the repository selected by cfg.
type RepositoryFactory func(ctx context.Context, cfg *config.Config) (Repository, error)

// TransportFactory builds the transport selected by cfg.
type TransportFactory func(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (scheduler.Transport, error)

// IDGenerator produces run ids.
type IDGenerator interface {
	Generate() string
}

// Options configures a run. Zero values select the defaults.
type Options struct {
	Logger logrus.FieldLogger

	// DryRun publishes through the dry-run transport and discards write-backs.
	DryRun bool

	OpenRepository RepositoryFactory
	NewTransport   TransportFactory
	RunIDs         IDGenerator
	Metrics        *metrics.Metrics
	Clock          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	if o.OpenRepository == nil {
		o.OpenRepository = OpenRepository
	}
	if o.NewTransport == nil {
		o.NewTransport = NewTransport
	}
	if o.RunIDs == nil {
		o.RunIDs = uuidRunIDs{}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.New()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

type uuidRunIDs struct{}

func (uuidRunIDs) Generate() string { return uuid.Must(uuid.NewV7()).String() }

// Run performs one publish run at now.
//
// A configuration problem is returned as *config.ConfigError before anything
// is opened. Otherwise the returned error is run-level only: the repository
// could not be opened or listed, or ctx was cancelled. Item failures are in
// the summary.
func Run(ctx context.Context, cfg *config.Config, now time.Time, opts Options) (scheduler.Summary, error) {
	opts = opts.withDefaults()

	effective := *cfg
	if opts.DryRun {
		effective.Transport.Kind = config.TransportDryRun
	}
	if err := effective.Validate(); err != nil {
		return scheduler.Summary{}, err
	}

	runID := opts.RunIDs.Generate()
	log := opts.Logger.WithField("run_id", runID)

	repo, err := opts.OpenRepository(ctx, &effective)
	if err != nil {
		log.WithError(err).Error("failed to open repository")
		return scheduler.Summary{RunID: runID}, fmt.Errorf("open repository: %w", err)
	}
	defer func() {
		if cerr := repo.Close(); cerr != nil {
			log.WithError(cerr).Warn("failed to close repository")
		}
	}()

	var target scheduler.Repository = repo
	if opts.DryRun {
		target = &readOnly{Repository: repo, logger: log}
	}

	tr, err := opts.NewTransport(ctx, &effective, log)
	if err != nil {
		log.WithError(err).Error("failed to build transport")
		return scheduler.Summary{RunID: runID}, fmt.Errorf("build transport: %w", err)
	}

	log.WithFields(logrus.Fields{
		"platform":  effective.Platform,
		"transport": effective.Transport.Kind,
		"driver":    effective.Database.Driver,
		"dry_run":   opts.DryRun,
		"now":       now.UTC().Format(time.RFC3339),
	}).Info("run starting")

	sched := scheduler.New(target, tr,
		scheduler.WithLogger(log),
		scheduler.WithMaxLength(effective.MaxLength),
		scheduler.WithClock(opts.Clock),
	)

	started := opts.Clock()
	summary, runErr := sched.Run(ctx, now)
	finished := opts.Clock()
	summary.RunID = runID

	entry := log.WithFields(logrus.Fields{
		"due":         summary.Due,
		"processed":   summary.Processed(),
		"posted":      summary.Posted,
		"failed":      summary.Failed,
		"deferred":    summary.Deferred,
		"skipped":     summary.Skipped,
		"duration_ms": finished.Sub(started).Milliseconds(),
	})
	if runErr != nil {
		entry.WithError(runErr).Error("run aborted")
	} else {
		entry.Info("run complete")
	}

	opts.Metrics.Observe(summary, runErr, finished.Sub(started), finished)
	if url := effective.Metrics.PushgatewayURL; url != "" {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		if err := opts.Metrics.Push(pushCtx, url, effective.Metrics.Job); err != nil {
			log.WithError(err).Warn("metrics push failed")
		}
		cancel()
	}

	return summary, runErr
}

// OpenRepository opens the SQLite or Postgres store selected by cfg.
func OpenRepository(ctx context.Context, cfg *config.Config) (Repository, error) {
	opts := []store.Option{
		store.WithPlatform(cfg.Platform),
		store.WithBatchSize(cfg.Database.BatchSize),
	}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pc := store.DefaultPostgresConfig()
		pc.URL = cfg.Database.URL
		s, err := store.OpenPostgres(ctx, pc, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		s, err := store.Open(cfg.Database.Path, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// NewTransport builds the X client or the dry-run transport.
func NewTransport(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (scheduler.Transport, error) {
	switch cfg.Transport.Kind {
	case config.TransportDryRun:
		return transport.NewDryRun(logger), nil
	case config.TransportX:
		c, err := transport.NewXClient(ctx, transport.XConfig{
			BaseURL:      cfg.X.BaseURL,
			Handle:       cfg.X.Handle,
			Timeout:      cfg.Transport.Timeout(),
			AccessToken:  cfg.X.AccessToken,
			RefreshToken: cfg.X.RefreshToken,
			ClientID:     cfg.X.ClientID,
			ClientSecret: cfg.X.ClientSecret,
			TokenURL:     cfg.X.TokenURL,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport.Kind)
	}
}

// readOnly discards write-backs so a dry run leaves the repository untouched.
type readOnly struct {
	scheduler.Repository
	logger logrus.FieldLogger
}

func (r *readOnly) WriteResult(ctx context.Context, id string, outcome content.Outcome) error {
	r.logger.WithFields(logrus.Fields{
		"item_id":     id,
		"status":      outcome.Status,
		"external_id": outcome.ExternalID,
		"note":        outcome.Note,
	}).Info("dry run: write-back skipped")
	return nil
}
