package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/markmehq/markme/internal/domain/attendance"
)

// AttendanceRepo mirrors the postgres attendance repo in memory, including
// the one-record-per-(user, day) guarantee.
type AttendanceRepo struct {
	mu      sync.RWMutex
	byKey   map[string]attendance.Record // userID + "|" + day
	ordered []attendance.Record
}

func NewAttendanceRepo() *AttendanceRepo {
	return &AttendanceRepo{byKey: make(map[string]attendance.Record)}
}

func key(userID, day string) string { return userID + "|" + day }

func (r *AttendanceRepo) InsertIfAbsent(ctx context.Context, rec attendance.Record) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(rec.UserID, rec.Day)

	if _, exists := r.byKey[k]; exists {
		return false, nil
	}

	r.byKey[k] = rec
	r.ordered = append(r.ordered, rec)

	return true, nil
}

func (r *AttendanceRepo) HasRecord(ctx context.Context, userID, day string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byKey[key(userID, day)]

	return ok, nil
}

func (r *AttendanceRepo) ListByDay(ctx context.Context, day string) ([]attendance.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []attendance.Record

	for _, rec := range r.ordered {
		if rec.Day == day {
			out = append(out, rec)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TimeIn.Before(out[j].TimeIn) })

	return out, nil
}

func (r *AttendanceRepo) ListRange(ctx context.Context, fromDay, toDay string) ([]attendance.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []attendance.Record

	for _, rec := range r.ordered {
		if rec.Day >= fromDay && rec.Day <= toDay {
			out = append(out, rec)
		}
	}

	sortNewestFirst(out)

	return out, nil
}

func (r *AttendanceRepo) ListAll(ctx context.Context) ([]attendance.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]attendance.Record, len(r.ordered))
	copy(out, r.ordered)

	sortNewestFirst(out)

	return out, nil
}

func (r *AttendanceRepo) ListDays(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string

	for _, rec := range r.ordered {
		if _, ok := seen[rec.Day]; !ok {
			seen[rec.Day] = struct{}{}
			out = append(out, rec.Day)
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(out)))

	return out, nil
}

func (r *AttendanceRepo) CountByDay(ctx context.Context, day string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0

	for _, rec := range r.ordered {
		if rec.Day == day {
			n++
		}
	}

	return n, nil
}

func (r *AttendanceRepo) CountForUser(ctx context.Context, userID, fromDay, toDay string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0

	for _, rec := range r.ordered {
		if rec.UserID == userID && rec.Day >= fromDay && rec.Day <= toDay {
			n++
		}
	}

	return n, nil
}

func (r *AttendanceRepo) ListForUserRange(ctx context.Context, userID, fromDay, toDay string) ([]attendance.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []attendance.Record

	for _, rec := range r.ordered {
		if rec.UserID == userID && rec.Day >= fromDay && rec.Day <= toDay {
			out = append(out, rec)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].TimeIn.Before(out[j].TimeIn)
	})

	return out, nil
}

func sortNewestFirst(recs []attendance.Record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Day != recs[j].Day {
			return recs[i].Day > recs[j].Day
		}
		return recs[i].TimeIn.After(recs[j].TimeIn)
	})
}
