package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
)

const RunTypeIngest = "ingest"

// Runner fans a triage run out across all active owners. Each owner is
// guarded by a distributed lease so overlapping schedules (cron plus a
// manual trigger, or two workers) never double-triage a mailbox.
type Runner struct {
	owners   out.OwnerRepository
	lease    out.RunLease
	pipeline *Pipeline
	leaseTTL time.Duration
	log      *logger.Logger
}

func NewRunner(owners out.OwnerRepository, lease out.RunLease, pipeline *Pipeline, leaseTTL time.Duration) *Runner {
	return &Runner{
		owners:   owners,
		lease:    lease,
		pipeline: pipeline,
		leaseTTL: leaseTTL,
		log:      logger.WithField("component", "runner"),
	}
}

// RunAll triages every active owner sequentially. An owner whose run
// fails does not stop the sweep.
func (r *Runner) RunAll(ctx context.Context) (map[uuid.UUID]*RunReport, error) {
	owners, err := r.owners.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	reports := make(map[uuid.UUID]*RunReport, len(owners))
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		report, err := r.RunOwner(ctx, owner.ID)
		if err != nil {
			r.log.WithError(err).WithField("owner_id", owner.ID.String()).Warn("owner run failed")
			continue
		}
		reports[owner.ID] = report
	}
	return reports, nil
}

// RunOwner triages a single owner under the run lease. Returns
// Conflict when a run for this owner is already in flight.
func (r *Runner) RunOwner(ctx context.Context, ownerID uuid.UUID) (*RunReport, error) {
	acquired, err := r.lease.Acquire(ctx, ownerID.String(), RunTypeIngest, r.leaseTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, apperr.Conflict("triage run already in progress")
	}
	defer func() {
		if err := r.lease.Release(context.WithoutCancel(ctx), ownerID.String(), RunTypeIngest); err != nil {
			r.log.WithError(err).Warn("failed to release run lease")
		}
	}()

	owner, err := r.owners.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return r.pipeline.RunOwner(ctx, owner)
}
