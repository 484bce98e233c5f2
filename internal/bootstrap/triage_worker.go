package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"triage_server/config"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
)

// Worker drives the periodic triage runs and the morning briefs.
type Worker struct {
	deps   *Dependencies
	cfg    *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logger.Logger

	// last local date a brief was sent, per owner
	briefSent map[uuid.UUID]string
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "triage-worker",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		deps:      deps,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		log:       logger.WithField("component", "worker"),
		briefSent: make(map[uuid.UUID]string),
	}, cleanup, nil
}

// Start blocks until Stop is called.
func (w *Worker) Start() {
	if !w.cfg.SchedulerEnabled {
		w.log.Info("Scheduler disabled, worker idle")
		<-w.ctx.Done()
		return
	}

	interval := time.Duration(w.cfg.RunIntervalSec) * time.Second
	w.log.Info("Worker started (run interval: %v)", interval)

	w.wg.Add(2)
	go w.runLoop(interval)
	go w.briefLoop()
	w.wg.Wait()
}

func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.log.Info("Worker stopped")
}

func (w *Worker) runLoop(interval time.Duration) {
	defer w.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First run right away rather than waiting a full interval.
	w.runAll()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.runAll()
		}
	}
}

func (w *Worker) runAll() {
	reports, err := w.deps.Runner.RunAll(w.ctx)
	if err != nil {
		w.log.WithError(err).Error("Triage run failed")
		return
	}
	for ownerID, rep := range reports {
		w.log.WithFields(map[string]any{
			"owner_id": ownerID.String(),
			"fetched":  rep.Fetched,
			"triaged":  rep.Triaged,
			"merged":   rep.Merged,
			"created":  rep.Created,
			"failed":   rep.Failed,
		}).Info("Triage run completed")
	}
}

func (w *Worker) briefLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.sendDueBriefs()
		}
	}
}

// sendDueBriefs mails the morning brief to every owner whose local
// clock has passed their configured brief hour today.
func (w *Worker) sendDueBriefs() {
	owners, err := w.deps.OwnerRepo.ListActive(w.ctx)
	if err != nil {
		w.log.WithError(err).Error("Failed to list owners for briefs")
		return
	}

	for _, owner := range owners {
		if !owner.Settings.BriefEnabled {
			continue
		}

		loc, err := time.LoadLocation(owner.Settings.Timezone)
		if err != nil {
			loc = time.UTC
		}
		now := time.Now().In(loc)
		if now.Hour() < owner.Settings.BriefHour {
			continue
		}

		today := now.Format("2006-01-02")
		if w.briefSent[owner.ID] == today {
			continue
		}

		if err := w.deps.BriefBuilder.SendBrief(w.ctx, owner); err != nil {
			if apperr.IsAuthExpired(err) {
				w.log.WithField("owner_id", owner.ID.String()).Warn("Brief skipped: auth expired")
			} else {
				w.log.WithError(err).WithField("owner_id", owner.ID.String()).Error("Brief send failed")
			}
			continue
		}
		w.briefSent[owner.ID] = today
	}
}
