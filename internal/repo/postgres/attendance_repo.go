package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/markmehq/markme/internal/domain/attendance"
	"github.com/markmehq/markme/internal/observability"
)

type AttendanceRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewAttendanceRepo(pool *pgxpool.Pool, prom *observability.Prom) *AttendanceRepo {
	return &AttendanceRepo{pool: pool, prom: prom}
}

func (r *AttendanceRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const recordColumns = `id, user_id, user_name, day, time_in, time_out, status`

func scanRecord(row pgx.Row) (attendance.Record, error) {
	var rec attendance.Record
	var status string

	err := row.Scan(&rec.ID, &rec.UserID, &rec.UserName, &rec.Day, &rec.TimeIn, &rec.TimeOut, &status)

	if err != nil {
		return attendance.Record{}, err
	}

	rec.Status = attendance.Status(status)

	return rec, nil
}

// InsertIfAbsent inserts rec unless a record already exists for the same
// (user, day). The attendance_user_day_uniq constraint makes the whole
// check-and-insert a single atomic statement; concurrent scans for the same
// user can never both insert.
func (r *AttendanceRepo) InsertIfAbsent(ctx context.Context, rec attendance.Record) (bool, error) {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("attendance.insert_if_absent", func() error {
		tag, err = r.pool.Exec(ctx,
			`INSERT INTO attendance (`+recordColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT ON CONSTRAINT attendance_user_day_uniq DO NOTHING`,
			rec.ID, rec.UserID, rec.UserName, rec.Day, rec.TimeIn, rec.TimeOut, string(rec.Status),
		)
		return err
	})

	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}

// HasRecord reports whether userID has a record on day.
func (r *AttendanceRepo) HasRecord(ctx context.Context, userID, day string) (bool, error) {
	var exists bool

	err := r.observe("attendance.has_record", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM attendance WHERE user_id = $1 AND day = $2)`,
			userID, day,
		).Scan(&exists)
	})

	return exists, err
}

func (r *AttendanceRepo) listQuery(ctx context.Context, op, query string, args ...any) ([]attendance.Record, error) {
	var out []attendance.Record

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx, query, args...)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)

			if err != nil {
				return err
			}

			out = append(out, rec)
		}

		return rows.Err()
	})

	return out, err
}

func (r *AttendanceRepo) ListByDay(ctx context.Context, day string) ([]attendance.Record, error) {
	return r.listQuery(ctx, "attendance.list_by_day",
		`SELECT `+recordColumns+` FROM attendance WHERE day = $1 ORDER BY time_in`, day)
}

func (r *AttendanceRepo) ListRange(ctx context.Context, fromDay, toDay string) ([]attendance.Record, error) {
	return r.listQuery(ctx, "attendance.list_range",
		`SELECT `+recordColumns+` FROM attendance
		WHERE day BETWEEN $1 AND $2
		ORDER BY day DESC, time_in DESC`, fromDay, toDay)
}

func (r *AttendanceRepo) ListAll(ctx context.Context) ([]attendance.Record, error) {
	return r.listQuery(ctx, "attendance.list_all",
		`SELECT `+recordColumns+` FROM attendance ORDER BY day DESC, time_in DESC`)
}

// ListDays returns every day that has at least one record, newest first.
func (r *AttendanceRepo) ListDays(ctx context.Context) ([]string, error) {
	var out []string

	err := r.observe("attendance.list_days", func() error {
		rows, err := r.pool.Query(ctx, `SELECT DISTINCT day FROM attendance ORDER BY day DESC`)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var day string

			if err := rows.Scan(&day); err != nil {
				return err
			}

			out = append(out, day)
		}

		return rows.Err()
	})

	return out, err
}

func (r *AttendanceRepo) CountByDay(ctx context.Context, day string) (int, error) {
	var n int

	err := r.observe("attendance.count_by_day", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM attendance WHERE day = $1`, day,
		).Scan(&n)
	})

	return n, err
}

// CountForUser counts a user's records within [fromDay, toDay].
func (r *AttendanceRepo) CountForUser(ctx context.Context, userID, fromDay, toDay string) (int, error) {
	var n int

	err := r.observe("attendance.count_for_user", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM attendance WHERE user_id = $1 AND day BETWEEN $2 AND $3`,
			userID, fromDay, toDay,
		).Scan(&n)
	})

	return n, err
}

// ListForUserRange returns a user's records within [fromDay, toDay], oldest
// first so callers can take the tail as "most recent".
func (r *AttendanceRepo) ListForUserRange(ctx context.Context, userID, fromDay, toDay string) ([]attendance.Record, error) {
	return r.listQuery(ctx, "attendance.list_for_user_range",
		`SELECT `+recordColumns+` FROM attendance
		WHERE user_id = $1 AND day BETWEEN $2 AND $3
		ORDER BY day, time_in`, userID, fromDay, toDay)
}
