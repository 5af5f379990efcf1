package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/markmehq/markme/internal/domain/delivery"
	"github.com/markmehq/markme/internal/observability"
)

type DeliveriesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewDeliveriesRepo(pool *pgxpool.Pool, prom *observability.Prom) *DeliveriesRepo {
	return &DeliveriesRepo{pool: pool, prom: prom}
}

func (r *DeliveriesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// TryStartAttendanceMarked claims the (user, day) delivery for this job run.
// A nil return means the caller owns the send. ErrAlreadySent means a prior
// run already delivered it; ErrInProgress means another worker holds it.
func (r *DeliveriesRepo) TryStartAttendanceMarked(ctx context.Context, jobID, userID, day string) error {
	kind := delivery.KindAttendanceMarked

	// 1) Insert if missing
	err := r.observe("deliveries.try_start", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO notification_deliveries (kind, user_id, day, job_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'sending', NOW(), NOW())
		`, kind, userID, day, jobID)
		return err
	})

	if err == nil {
		return nil
	}

	if !IsUniqueViolation(err) {
		return err
	}

	// 2) Row exists. A failed delivery can be claimed for retry; flipping
	// failed -> sending is atomic, so only one worker wins.
	var claimed bool

	err = r.observe("deliveries.claim_retry", func() error {
		tag, err := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'sending',
			    job_id = $4,
			    last_error = NULL,
			    updated_at = NOW()
			WHERE kind = $1 AND user_id = $2 AND day = $3 AND status = 'failed'
		`, kind, userID, day, jobID)

		if err != nil {
			return err
		}

		claimed = tag.RowsAffected() == 1
		return nil
	})

	if err != nil {
		return err
	}

	if claimed {
		return nil
	}

	// 3) Not failed: either already sent or another worker is sending.
	var status string
	var sentAt *time.Time

	err = r.observe("deliveries.get_status", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT status, sent_at
			FROM notification_deliveries
			WHERE kind = $1 AND user_id = $2 AND day = $3
		`, kind, userID, day).Scan(&status, &sentAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// row disappeared between steps; let the caller retry
			return nil
		}

		return err
	}

	if sentAt != nil || status == "sent" {
		return delivery.ErrAlreadySent
	}

	return delivery.ErrInProgress
}

func (r *DeliveriesRepo) MarkAttendanceMarkedSent(ctx context.Context, userID, day string) error {
	return r.observe("deliveries.mark_sent", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'sent',
			    sent_at = NOW(),
			    last_error = NULL,
			    updated_at = NOW()
			WHERE kind = $1 AND user_id = $2 AND day = $3
		`, delivery.KindAttendanceMarked, userID, day)
		return err
	})
}

func (r *DeliveriesRepo) MarkAttendanceMarkedFailed(ctx context.Context, userID, day, errMsg string) error {
	return r.observe("deliveries.mark_failed", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'failed',
			    last_error = $4,
			    updated_at = NOW()
			WHERE kind = $1 AND user_id = $2 AND day = $3
		`, delivery.KindAttendanceMarked, userID, day, errMsg)
		return err
	})
}
