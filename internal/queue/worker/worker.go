package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/markmehq/markme/internal/domain/attendance"
	"github.com/markmehq/markme/internal/domain/delivery"
	"github.com/markmehq/markme/internal/domain/job"
	"github.com/markmehq/markme/internal/export"
	"github.com/markmehq/markme/internal/notifications"
	"github.com/markmehq/markme/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	ScheduleRetry(ctx context.Context, id string, runAt time.Time, errMsg string) error
}

type RecordLister interface {
	ListAll(ctx context.Context) ([]attendance.Record, error)
	ListRange(ctx context.Context, fromDay, toDay string) ([]attendance.Record, error)
}

// DeliveriesRepository dedupes notification sends across job retries. A nil
// repository disables dedup, which is only acceptable in tests.
type DeliveriesRepository interface {
	TryStartAttendanceMarked(ctx context.Context, jobID, userID, day string) error
	MarkAttendanceMarkedSent(ctx context.Context, userID, day string) error
	MarkAttendanceMarkedFailed(ctx context.Context, userID, day, errMsg string) error
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	ExportDir     string
	ShutdownGrace time.Duration
}

type Worker struct {
	cfg        Config
	repo       JobsRepository
	records    RecordLister
	notifier   notifications.Notifier
	deliveries DeliveriesRepository
	prom       *observability.Prom

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, records RecordLister, notifier notifications.Notifier, deliveries DeliveriesRepository, prom *observability.Prom) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}

	return &Worker{
		cfg:        cfg,
		repo:       repo,
		records:    records,
		notifier:   notifier,
		deliveries: deliveries,
		prom:       prom,
	}
}

func (w *Worker) setReady(ready bool) {
	w.readyMu.Lock()
	w.ready = ready
	w.readyMu.Unlock()
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.setReady(true)
	defer w.setReady(false)

	for {
		select {
		case <-ctx.Done():
			log.Println("worker received shutdown signal")
			return w.drain()

		case <-ticker.C:
			// drain everything that is due before sleeping again
			for {
				processed, err := w.ProcessOne(ctx)

				if err != nil {
					log.Printf("process error: %v", err)
					break
				}

				if !processed {
					break
				}
			}
		}
	}
}

// drain keeps processing due jobs for the shutdown grace window so an
// in-flight export or notification is not abandoned mid-run.
func (w *Worker) drain() error {
	w.setReady(false)

	drainCtx, cancel := context.WithTimeout(context.Background(), w.cfg.ShutdownGrace)
	defer cancel()

	for {
		processed, err := w.ProcessOne(drainCtx)

		if err != nil || !processed {
			return nil
		}

		if drainCtx.Err() != nil {
			log.Println("shutdown grace expired with jobs still due")
			return nil
		}
	}
}

// ProcessOne claims and executes at most one job. It returns false when no
// job was due.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return false, nil
		}

		return false, err
	}

	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := time.Now()
	err = w.execute(ctx, j)
	result := "done"

	if err != nil {
		result = w.handleFailure(ctx, j, err)
	} else if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		result = "failed"
	}

	if w.prom != nil {
		w.prom.JobResults.WithLabelValues(string(j.Type), result).Inc()
		w.prom.JobDuration.WithLabelValues(string(j.Type), result).Observe(time.Since(start).Seconds())
	}

	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	payload, err := job.DecodePayload(j)

	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case job.ExportAttendanceCSVPayload:
		return w.exportCSV(ctx, j.ID, p)

	case job.NotifyMarkedPayload:
		return w.notify(ctx, j.ID, p)

	default:
		return job.ErrInvalidType
	}
}

// notify sends the attendance-marked notification at most once per
// (user, day), no matter how often the job is retried.
func (w *Worker) notify(ctx context.Context, jobID string, p job.NotifyMarkedPayload) error {
	if w.deliveries != nil {
		err := w.deliveries.TryStartAttendanceMarked(ctx, jobID, p.UserID, p.Day)

		if errors.Is(err, delivery.ErrAlreadySent) {
			// a prior run of this job got the send out before failing;
			// nothing left to do
			return nil
		}

		if err != nil {
			// ErrInProgress and repo errors both come back here; the retry
			// with backoff re-checks the delivery row
			return err
		}
	}

	sendErr := w.notifier.SendAttendanceMarked(ctx, notifications.AttendanceMarkedInput{
		UserID:   p.UserID,
		UserName: p.UserName,
		Day:      p.Day,
		TimeIn:   p.TimeIn,
	})

	if w.deliveries != nil {
		if sendErr != nil {
			_ = w.deliveries.MarkAttendanceMarkedFailed(ctx, p.UserID, p.Day, sendErr.Error())
		} else if err := w.deliveries.MarkAttendanceMarkedSent(ctx, p.UserID, p.Day); err != nil {
			log.Printf("mark delivery sent error: %v", err)
		}
	}

	return sendErr
}

func (w *Worker) exportCSV(ctx context.Context, jobID string, p job.ExportAttendanceCSVPayload) error {
	var recs []attendance.Record
	var err error

	if p.From != "" && p.To != "" {
		recs, err = w.records.ListRange(ctx, p.From, p.To)
	} else {
		recs, err = w.records.ListAll(ctx)
	}

	if err != nil {
		return err
	}

	if err := os.MkdirAll(w.cfg.ExportDir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(w.cfg.ExportDir, fmt.Sprintf("attendance_%s.csv", jobID))

	f, err := os.Create(path)

	if err != nil {
		return err
	}

	if err := export.WriteCSV(f, recs); err != nil {
		_ = f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	log.Printf("export.csv job=%s rows=%d path=%s", jobID, len(recs), path)

	return nil
}

// handleFailure schedules a retry with backoff until attempts run out, then
// marks the job failed for good. Returns the metric result label.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, execErr error) string {
	if j.Attempts >= j.MaxAttempts {
		if err := w.repo.MarkFailed(ctx, j.ID, execErr.Error()); err != nil {
			log.Printf("mark failed error: %v", err)
		}

		return "failed"
	}

	runAt := time.Now().UTC().Add(ExponentialBackoff(j.Attempts))

	if err := w.repo.ScheduleRetry(ctx, j.ID, runAt, execErr.Error()); err != nil {
		log.Printf("schedule retry error: %v", err)
		return "failed"
	}

	return "retry"
}
