package jobs

import (
	"context"

	"go.uber.org/zap"

	appsync "github.com/subsync/backend/internal/application/sync"
	"github.com/subsync/backend/internal/application/subscription"
	"github.com/subsync/backend/internal/infrastructure/notify"
)

// Job status values reported to operators.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Job names accepted by the runner.
const (
	JobCampaignMirror = "campaign-mirror"
	JobProductSync    = "product-sync"
	JobShipmentSync   = "shipment-sync"
)

// Result is one job execution's outcome.
type Result struct {
	Job    string
	Status string
	Report map[string][]any
	Err    error
}

// Runner executes the scheduled jobs. Each run gets a fresh per-run context
// so idempotence bookkeeping never leaks across runs.
type Runner struct {
	mirror     *appsync.CampaignMirror
	products   *appsync.ProductSync
	offers     *appsync.OfferBinding
	reconciler *subscription.ShipmentReconciler
	notifier   notify.Notifier
	logger     *zap.Logger
}

// NewRunner creates the job runner.
func NewRunner(
	mirror *appsync.CampaignMirror,
	products *appsync.ProductSync,
	offers *appsync.OfferBinding,
	reconciler *subscription.ShipmentReconciler,
	notifier notify.Notifier,
	logger *zap.Logger,
) *Runner {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Runner{
		mirror:     mirror,
		products:   products,
		offers:     offers,
		reconciler: reconciler,
		notifier:   notifier,
		logger:     logger,
	}
}

// Run dispatches one job by name.
func (r *Runner) Run(ctx context.Context, job string, params appsync.Params) Result {
	switch job {
	case JobCampaignMirror:
		return r.RunCampaignMirror(ctx, params)
	case JobProductSync:
		return r.RunProductSync(ctx, params)
	case JobShipmentSync:
		return r.RunShipmentSync(ctx, params)
	default:
		r.logger.Error("unknown job", zap.String("job", job))
		return Result{Job: job, Status: StatusError}
	}
}

// RunCampaignMirror refreshes the campaign snapshot and re-validates the
// catalog against it.
func (r *Runner) RunCampaignMirror(ctx context.Context, params appsync.Params) Result {
	run := appsync.NewSyncRun(params)
	result := Result{Job: JobCampaignMirror, Status: StatusOK}

	if _, err := r.mirror.Refresh(ctx, run); err != nil {
		result.Status = StatusError
		result.Err = err
	} else if err := r.products.ValidateAll(ctx, run); err != nil {
		result.Status = StatusError
		result.Err = err
	}

	result.Report = run.Report()
	r.finish(run, &result)
	return result
}

// RunProductSync refreshes the snapshot, pushes the catalog to the provider
// and rebinds offer membership.
func (r *Runner) RunProductSync(ctx context.Context, params appsync.Params) Result {
	run := appsync.NewSyncRun(params)
	result := Result{Job: JobProductSync, Status: StatusOK}

	if _, err := r.mirror.Refresh(ctx, run); err != nil {
		result.Status = StatusError
		result.Err = err
	} else if err := r.products.SyncAll(ctx, run); err != nil {
		result.Status = StatusError
		result.Err = err
	} else if err := r.offers.SyncOffers(ctx, run); err != nil {
		result.Status = StatusError
		result.Err = err
	}

	result.Report = run.Report()
	r.finish(run, &result)
	return result
}

// RunShipmentSync reconciles shipment state with the provider in both
// directions.
func (r *Runner) RunShipmentSync(ctx context.Context, params appsync.Params) Result {
	run := appsync.NewSyncRun(params)
	result := Result{Job: JobShipmentSync, Status: StatusOK}

	report, err := r.reconciler.Reconcile(ctx)
	if err != nil {
		result.Status = StatusError
		result.Err = err
	}
	for section, entries := range report {
		for _, entry := range entries {
			run.AddReport(section, entry)
		}
	}

	result.Report = run.Report()
	r.finish(run, &result)
	return result
}

// finish logs the outcome and mails the run report when requested.
func (r *Runner) finish(run *appsync.SyncRun, result *Result) {
	if result.Err != nil {
		r.logger.Error("job finished",
			zap.String("job", result.Job),
			zap.String("status", result.Status),
			zap.Error(result.Err))
	} else {
		r.logger.Info("job finished",
			zap.String("job", result.Job),
			zap.String("status", result.Status))
	}

	if !run.Params.Bool(appsync.ParamEmailLog) {
		return
	}
	var to []string
	if addr := run.Params[appsync.ParamEmailAddress]; addr != "" {
		to = append(to, addr)
	}
	subject := "Job " + result.Job + ": " + result.Status
	if err := r.notifier.Notify(subject, notify.FormatReport(result.Report), to...); err != nil {
		r.logger.Error("job report email failed", zap.Error(err))
	}
}
