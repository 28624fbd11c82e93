package cmd

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/config"
	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/artifact"
	"github.com/yumyai/strainmodel/pkg/db"
	"github.com/yumyai/strainmodel/pkg/media"
	"github.com/yumyai/strainmodel/pkg/metrics"
	"github.com/yumyai/strainmodel/pkg/pipeline"
	"github.com/yumyai/strainmodel/pkg/solver"
	"github.com/yumyai/strainmodel/pkg/validate"
)

// deps are the collaborators shared by the commands. Ledger and Store are nil when
// not configured.
type deps struct {
	cfg      config.Config
	registry *media.Registry
	solver   *solver.Exec
	ledger   *db.Ledger
	store    artifact.Store
	metrics  *metrics.Metrics
}

func newDeps(ctx context.Context, cfg config.Config) (*deps, error) {
	reg, err := media.Open(cfg.DataDir)
	if err != nil {
		return nil, &config.Error{Field: "data-dir", Msg: err.Error()}
	}
	d := &deps{
		cfg:      cfg,
		registry: reg,
		solver:   solver.NewExec(cfg.Tools.Solver, cfg.ScratchDir),
		metrics:  metrics.New(),
	}
	if cfg.LedgerDSN != "" {
		if d.ledger, err = db.Open(ctx, cfg.LedgerDSN); err != nil {
			return nil, err
		}
	}
	if cfg.ArtifactURL != "" {
		opts := artifact.S3Options{Region: cfg.S3.Region, Endpoint: cfg.S3.Endpoint, PathStyle: cfg.S3.PathStyle}
		if d.store, err = artifact.Open(ctx, cfg.ArtifactURL, opts); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

// growth resolves the media and atmosphere settings.
func (d *deps) growth() (media.Media, validate.Atmosphere, error) {
	med, err := d.registry.Media(d.cfg.Media)
	if err != nil {
		return media.Media{}, "", err
	}
	atm, err := d.cfg.ParsedAtmosphere()
	return med, atm, err
}

// recorder returns the ledger as a pipeline.Recorder, or nil.
func (d *deps) recorder() pipeline.Recorder {
	if d.ledger == nil {
		return nil
	}
	return d.ledger
}

func newRunID() string { return uuid.NewString() }

// record wraps a command other than draft in a ledger run. The ledger is auxiliary,
// so failures to write it only warn.
func (d *deps) record(ctx context.Context, command, subject string, fn func() error) error {
	id := newRunID()
	if d.ledger != nil {
		run := db.Run{ID: id, Command: command, Isolate: subject, Status: "RUNNING"}
		if err := d.ledger.StartRun(ctx, run); err != nil {
			logger.Warn("Failed to update run ledger", zap.String("run_id", id), zap.Error(err))
		}
	}
	start := time.Now()
	err := fn()
	d.metrics.ObserveStage(command, time.Since(start))
	d.metrics.RunFinished(pipeline.Outcome(err))

	if d.ledger != nil {
		status, msg := string(pipeline.Done), ""
		if err != nil {
			msg = err.Error()
			status = string(pipeline.Failed)
			if pipeline.ExitCode(err) == pipeline.ExitBiomassFailure {
				status = string(pipeline.DoneWithDiagnostic)
			}
		}
		if ferr := d.ledger.FinishRun(ctx, id, status, pipeline.ExitCode(err), msg); ferr != nil {
			logger.Warn("Failed to update run ledger", zap.String("run_id", id), zap.Error(ferr))
		}
	}
	return err
}

// Close flushes metrics and releases the ledger.
func (d *deps) Close() {
	if d.cfg.MetricsTextfile != "" {
		if err := d.metrics.WriteTextfile(d.cfg.MetricsTextfile); err != nil {
			logger.Warn("Failed to write metrics", zap.String("path", d.cfg.MetricsTextfile), zap.Error(err))
		}
	}
	if d.ledger != nil {
		if err := d.ledger.Close(); err != nil {
			logger.Warn("Failed to close run ledger", zap.Error(err))
		}
	}
}
