package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/markmehq/markme/internal/domain/attendance"
	"github.com/markmehq/markme/internal/domain/delivery"
	"github.com/markmehq/markme/internal/domain/job"
	"github.com/markmehq/markme/internal/notifications"
	"github.com/markmehq/markme/internal/queue/worker"
)

type fakeJobsRepo struct {
	queue     []job.Job
	done      []string
	failed    []string
	retried   []string
	lastError string
}

func (f *fakeJobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	if len(f.queue) == 0 {
		return job.Job{}, job.ErrNotFound
	}

	j := f.queue[0]
	f.queue = f.queue[1:]
	j.Attempts++
	return j, nil
}

func (f *fakeJobsRepo) MarkDone(ctx context.Context, id string) error {
	f.done = append(f.done, id)
	return nil
}

func (f *fakeJobsRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	f.failed = append(f.failed, id)
	f.lastError = errMsg
	return nil
}

func (f *fakeJobsRepo) ScheduleRetry(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	f.retried = append(f.retried, id)
	f.lastError = errMsg
	return nil
}

type fakeLister struct {
	all []attendance.Record
}

func (f *fakeLister) ListAll(ctx context.Context) ([]attendance.Record, error) {
	return f.all, nil
}

func (f *fakeLister) ListRange(ctx context.Context, fromDay, toDay string) ([]attendance.Record, error) {
	return f.all, nil
}

type fakeNotifier struct {
	sent []notifications.AttendanceMarkedInput
	err  error
}

func (f *fakeNotifier) SendAttendanceMarked(ctx context.Context, in notifications.AttendanceMarkedInput) error {
	if f.err != nil {
		return f.err
	}

	f.sent = append(f.sent, in)
	return nil
}

// fakeDeliveries mimics the dedup table: one row per (user, day), claimable
// again only after a failure.
type fakeDeliveries struct {
	status    map[string]string // "user|day" -> sending | sent | failed
	tryStarts int
}

func (f *fakeDeliveries) key(userID, day string) string { return userID + "|" + day }

func (f *fakeDeliveries) TryStartAttendanceMarked(ctx context.Context, jobID, userID, day string) error {
	f.tryStarts++

	if f.status == nil {
		f.status = map[string]string{}
	}

	switch f.status[f.key(userID, day)] {
	case "sent":
		return delivery.ErrAlreadySent
	case "sending":
		return delivery.ErrInProgress
	}

	f.status[f.key(userID, day)] = "sending"
	return nil
}

func (f *fakeDeliveries) MarkAttendanceMarkedSent(ctx context.Context, userID, day string) error {
	f.status[f.key(userID, day)] = "sent"
	return nil
}

func (f *fakeDeliveries) MarkAttendanceMarkedFailed(ctx context.Context, userID, day, errMsg string) error {
	f.status[f.key(userID, day)] = "failed"
	return nil
}

func notifyJob(t *testing.T, attempts, maxAttempts int) job.Job {
	t.Helper()

	payload, err := job.EncodePayload(job.TypeNotifyMarked, job.NotifyMarkedPayload{
		UserID:   "u1",
		UserName: "Jane Doe",
		Day:      "2026-03-14",
	})

	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	j := job.New(job.CreateRequest{Type: job.TypeNotifyMarked, Payload: payload, MaxAttempts: maxAttempts})
	j.Attempts = attempts

	return j
}

func newWorker(repo *fakeJobsRepo, notifier *fakeNotifier) *worker.Worker {
	return worker.New(worker.Config{
		WorkerID:  "test-worker",
		ExportDir: "",
	}, repo, &fakeLister{}, notifier, nil, nil)
}

func TestProcessOneNoJobDue(t *testing.T) {
	w := newWorker(&fakeJobsRepo{}, &fakeNotifier{})

	processed, err := w.ProcessOne(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if processed {
		t.Fatal("nothing was due, processed must be false")
	}
}

func TestProcessOneNotifySuccess(t *testing.T) {
	repo := &fakeJobsRepo{queue: []job.Job{notifyJob(t, 0, 3)}}
	notifier := &fakeNotifier{}

	w := newWorker(repo, notifier)

	processed, err := w.ProcessOne(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !processed {
		t.Fatal("expected a job to be processed")
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notifier.sent))
	}

	if notifier.sent[0].UserName != "Jane Doe" {
		t.Fatalf("wrong notification payload: %+v", notifier.sent[0])
	}

	if len(repo.done) != 1 {
		t.Fatalf("got %d done jobs, want 1", len(repo.done))
	}
}

func TestProcessOneRetriesThenFails(t *testing.T) {
	execErr := errors.New("smtp down")

	// first failure retries
	repo := &fakeJobsRepo{queue: []job.Job{notifyJob(t, 0, 3)}}
	w := newWorker(repo, &fakeNotifier{err: execErr})

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.retried) != 1 || len(repo.failed) != 0 {
		t.Fatalf("want 1 retry and 0 failures, got %d/%d", len(repo.retried), len(repo.failed))
	}

	// final attempt fails for good
	repo = &fakeJobsRepo{queue: []job.Job{notifyJob(t, 2, 3)}}
	w = newWorker(repo, &fakeNotifier{err: execErr})

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.failed) != 1 || len(repo.retried) != 0 {
		t.Fatalf("want 1 failure and 0 retries, got %d/%d", len(repo.failed), len(repo.retried))
	}

	if repo.lastError != "smtp down" {
		t.Fatalf("got last error %q", repo.lastError)
	}
}

func TestProcessOneBadPayloadFails(t *testing.T) {
	j := job.New(job.CreateRequest{Type: job.TypeNotifyMarked, Payload: []byte(`{`), MaxAttempts: 1})

	repo := &fakeJobsRepo{queue: []job.Job{j}}
	w := newWorker(repo, &fakeNotifier{})

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.failed) != 1 {
		t.Fatalf("undecodable payload must fail the job, got failed=%d retried=%d", len(repo.failed), len(repo.retried))
	}
}

func TestExportCSVJobWritesFile(t *testing.T) {
	dir := t.TempDir()

	payload, err := job.EncodePayload(job.TypeExportAttendanceCSV, job.ExportAttendanceCSVPayload{RequestedBy: "admin"})

	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	j := job.New(job.CreateRequest{Type: job.TypeExportAttendanceCSV, Payload: payload})

	repo := &fakeJobsRepo{queue: []job.Job{j}}

	lister := &fakeLister{all: []attendance.Record{
		{UserName: "Jane Doe", Day: "2026-03-14", TimeIn: time.Now(), Status: attendance.StatusPresent},
	}}

	w := worker.New(worker.Config{
		WorkerID:  "test-worker",
		ExportDir: dir,
	}, repo, lister, &fakeNotifier{}, nil, nil)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.done) != 1 {
		t.Fatalf("export job not marked done: %+v", repo)
	}
}

func TestNotifyRedeliveryIsSuppressed(t *testing.T) {
	j := notifyJob(t, 0, 3)

	// the same job comes back a second time, as after a lock expiry or a
	// crash between send and mark-done
	repo := &fakeJobsRepo{queue: []job.Job{j, j}}
	notifier := &fakeNotifier{}
	deliveries := &fakeDeliveries{}

	w := worker.New(worker.Config{WorkerID: "test-worker"}, repo, &fakeLister{}, notifier, deliveries, nil)

	for i := 0; i < 2; i++ {
		if _, err := w.ProcessOne(context.Background()); err != nil {
			t.Fatalf("unexpected error on run %d: %v", i, err)
		}
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("got %d sends, want exactly 1", len(notifier.sent))
	}

	if len(repo.done) != 2 {
		t.Fatalf("both runs must complete, got done=%d", len(repo.done))
	}

	if deliveries.tryStarts != 2 {
		t.Fatalf("every run must check the delivery row, got %d checks", deliveries.tryStarts)
	}
}

func TestNotifyFailedDeliveryCanBeReclaimed(t *testing.T) {
	repo := &fakeJobsRepo{queue: []job.Job{notifyJob(t, 0, 3)}}
	notifier := &fakeNotifier{err: errors.New("provider down")}
	deliveries := &fakeDeliveries{}

	w := worker.New(worker.Config{WorkerID: "test-worker"}, repo, &fakeLister{}, notifier, deliveries, nil)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.retried) != 1 {
		t.Fatalf("failed send must schedule a retry, got %+v", repo)
	}

	if got := deliveries.status["u1|2026-03-14"]; got != "failed" {
		t.Fatalf("delivery status after failed send = %q, want failed", got)
	}

	// provider recovers; the retry claims the failed row and sends
	notifier.err = nil
	repo.queue = []job.Job{notifyJob(t, 1, 3)}

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("got %d sends, want 1", len(notifier.sent))
	}

	if got := deliveries.status["u1|2026-03-14"]; got != "sent" {
		t.Fatalf("delivery status after retry = %q, want sent", got)
	}
}

func TestRunDrainsDueJobsOnShutdown(t *testing.T) {
	repo := &fakeJobsRepo{queue: []job.Job{notifyJob(t, 0, 3)}}
	notifier := &fakeNotifier{}

	w := newWorker(repo, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(notifier.sent) != 1 || len(repo.done) != 1 {
		t.Fatalf("due job must be drained before exit, got sent=%d done=%d", len(notifier.sent), len(repo.done))
	}
}
