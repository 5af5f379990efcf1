package stats

import (
	"context"
	"time"

	"github.com/markmehq/markme/internal/domain/attendance"
)

// RecordStore is the slice of the attendance repo the aggregator needs.
type RecordStore interface {
	CountByDay(ctx context.Context, day string) (int, error)
	HasRecord(ctx context.Context, userID, day string) (bool, error)
	CountForUser(ctx context.Context, userID, fromDay, toDay string) (int, error)
}

type UserCounter interface {
	Count(ctx context.Context) (int, error)
}

// DashboardCache memoizes the admin dashboard between recomputations.
type DashboardCache interface {
	Get(ctx context.Context, day string) (DashboardStats, bool)
	Set(ctx context.Context, day string, stats DashboardStats)
	Invalidate(ctx context.Context, day string)
}

type DashboardStats struct {
	TotalUsers     int                     `json:"totalUsers"`
	PresentToday   int                     `json:"presentToday"`
	AbsentToday    int                     `json:"absentToday"`
	AttendanceRate int                     `json:"attendanceRate"`
	Weekly         []attendance.DailyCount `json:"weeklyAttendance"`
}

type UserStats struct {
	TotalDaysPresent int  `json:"totalDaysPresent"`
	MarkedToday      bool `json:"markedToday"`
	CurrentStreak    int  `json:"currentStreak"`
	MonthlyRate      int  `json:"monthlyAttendanceRate"`
}

type Aggregator struct {
	records RecordStore
	users   UserCounter
	cache   DashboardCache // optional
	now     func() time.Time
}

func NewAggregator(records RecordStore, users UserCounter, cache DashboardCache) *Aggregator {
	return &Aggregator{
		records: records,
		users:   users,
		cache:   cache,
		now:     time.Now,
	}
}

func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Dashboard computes the admin overview: today's presence counts, the
// integer attendance rate, and per-day counts for the last 7 calendar days
// ordered oldest to newest. Counts come from one query per day; volumes are
// tiny so the N queries are not worth a grouped rewrite yet.
func (a *Aggregator) Dashboard(ctx context.Context) (DashboardStats, error) {
	now := a.now()
	today := attendance.DayKey(now)

	if a.cache != nil {
		if cached, ok := a.cache.Get(ctx, today); ok {
			return cached, nil
		}
	}

	totalUsers, err := a.users.Count(ctx)

	if err != nil {
		return DashboardStats{}, err
	}

	presentToday, err := a.records.CountByDay(ctx, today)

	if err != nil {
		return DashboardStats{}, err
	}

	weekly := make([]attendance.DailyCount, 0, 7)

	for offset := 6; offset >= 0; offset-- {
		day := attendance.DayKey(now.AddDate(0, 0, -offset))

		count, err := a.records.CountByDay(ctx, day)

		if err != nil {
			return DashboardStats{}, err
		}

		weekly = append(weekly, attendance.DailyCount{Day: day, Count: count})
	}

	rate := 0

	if totalUsers > 0 {
		rate = presentToday * 100 / totalUsers
	}

	stats := DashboardStats{
		TotalUsers:     totalUsers,
		PresentToday:   presentToday,
		AbsentToday:    totalUsers - presentToday,
		AttendanceRate: rate,
		Weekly:         weekly,
	}

	if a.cache != nil {
		a.cache.Set(ctx, today, stats)
	}

	return stats, nil
}

// InvalidateToday drops the cached dashboard after a successful mark.
func (a *Aggregator) InvalidateToday(ctx context.Context) {
	if a.cache != nil {
		a.cache.Invalidate(ctx, attendance.DayKey(a.now()))
	}
}

// ForUser computes one user's stats: days present in the last 30 days,
// whether today is marked, the consecutive-day streak, and the rate for the
// current month.
func (a *Aggregator) ForUser(ctx context.Context, userID string) (UserStats, error) {
	now := a.now()
	today := attendance.DayKey(now)

	markedToday, err := a.records.HasRecord(ctx, userID, today)

	if err != nil {
		return UserStats{}, err
	}

	from30 := attendance.DayKey(now.AddDate(0, 0, -30))

	totalDays, err := a.records.CountForUser(ctx, userID, from30, today)

	if err != nil {
		return UserStats{}, err
	}

	streak, err := a.streak(ctx, userID, now)

	if err != nil {
		return UserStats{}, err
	}

	monthStart := attendance.DayKey(time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()))

	monthCount, err := a.records.CountForUser(ctx, userID, monthStart, today)

	if err != nil {
		return UserStats{}, err
	}

	// days elapsed in the month so far, 1..31; never zero so the integer
	// division needs no guard
	daysPassed := now.Day()

	return UserStats{
		TotalDaysPresent: totalDays,
		MarkedToday:      markedToday,
		CurrentStreak:    streak,
		MonthlyRate:      monthCount * 100 / daysPassed,
	}, nil
}

// streak walks backward one calendar day at a time starting at today and
// stops at the first day without a record. An unmarked today means 0.
func (a *Aggregator) streak(ctx context.Context, userID string, now time.Time) (int, error) {
	streak := 0

	for {
		day := attendance.DayKey(now.AddDate(0, 0, -streak))

		marked, err := a.records.HasRecord(ctx, userID, day)

		if err != nil {
			return 0, err
		}

		if !marked {
			return streak, nil
		}

		streak++
	}
}
