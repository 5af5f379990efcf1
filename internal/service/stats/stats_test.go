package stats_test

import (
	"context"
	"testing"
	"time"

	"github.com/markmehq/markme/internal/domain/attendance"
	"github.com/markmehq/markme/internal/service/stats"
)

type fakeRecords struct {
	countByDay map[string]int
	marked     map[string]bool // userID|day
	countRange func(userID, fromDay, toDay string) int
}

func (f *fakeRecords) CountByDay(ctx context.Context, day string) (int, error) {
	return f.countByDay[day], nil
}

func (f *fakeRecords) HasRecord(ctx context.Context, userID, day string) (bool, error) {
	return f.marked[userID+"|"+day], nil
}

func (f *fakeRecords) CountForUser(ctx context.Context, userID, fromDay, toDay string) (int, error) {
	if f.countRange != nil {
		return f.countRange(userID, fromDay, toDay), nil
	}
	return 0, nil
}

type fakeUserCounter struct {
	total int
}

func (f *fakeUserCounter) Count(ctx context.Context) (int, error) {
	return f.total, nil
}

type fakeCache struct {
	store map[string]stats.DashboardStats
	hits  int
	sets  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: map[string]stats.DashboardStats{}}
}

func (f *fakeCache) Get(ctx context.Context, day string) (stats.DashboardStats, bool) {
	s, ok := f.store[day]
	if ok {
		f.hits++
	}
	return s, ok
}

func (f *fakeCache) Set(ctx context.Context, day string, s stats.DashboardStats) {
	f.sets++
	f.store[day] = s
}

func (f *fakeCache) Invalidate(ctx context.Context, day string) {
	delete(f.store, day)
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 10, 0, 0, 0, time.Local)
}

func TestDashboard(t *testing.T) {
	now := fixedNow()
	today := attendance.DayKey(now)

	records := &fakeRecords{countByDay: map[string]int{
		today:                                    2,
		attendance.DayKey(now.AddDate(0, 0, -1)): 4,
		attendance.DayKey(now.AddDate(0, 0, -6)): 1,
	}}

	agg := stats.NewAggregator(records, &fakeUserCounter{total: 5}, nil).
		WithClock(fixedNow)

	got, err := agg.Dashboard(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.TotalUsers != 5 || got.PresentToday != 2 || got.AbsentToday != 3 {
		t.Fatalf("wrong counts: %+v", got)
	}

	// 2 of 5 present, integer division
	if got.AttendanceRate != 40 {
		t.Fatalf("got rate %d, want 40", got.AttendanceRate)
	}

	if len(got.Weekly) != 7 {
		t.Fatalf("got %d weekly points, want 7", len(got.Weekly))
	}

	// oldest first, today last
	if got.Weekly[0].Day != attendance.DayKey(now.AddDate(0, 0, -6)) {
		t.Fatalf("weekly[0]=%q, want the oldest day", got.Weekly[0].Day)
	}

	if got.Weekly[6].Day != today || got.Weekly[6].Count != 2 {
		t.Fatalf("weekly[6]=%+v, want today with count 2", got.Weekly[6])
	}

	if got.Weekly[0].Count != 1 || got.Weekly[5].Count != 4 {
		t.Fatalf("weekly counts wrong: %+v", got.Weekly)
	}
}

func TestDashboardZeroUsers(t *testing.T) {
	agg := stats.NewAggregator(&fakeRecords{countByDay: map[string]int{}}, &fakeUserCounter{total: 0}, nil).
		WithClock(fixedNow)

	got, err := agg.Dashboard(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.AttendanceRate != 0 {
		t.Fatalf("rate must be 0 with no users, got %d", got.AttendanceRate)
	}
}

func TestDashboardCache(t *testing.T) {
	records := &fakeRecords{countByDay: map[string]int{}}
	cache := newFakeCache()

	agg := stats.NewAggregator(records, &fakeUserCounter{total: 3}, cache).
		WithClock(fixedNow)

	ctx := context.Background()

	if _, err := agg.Dashboard(ctx); err != nil {
		t.Fatalf("first call: %v", err)
	}

	if cache.sets != 1 {
		t.Fatalf("got %d cache sets, want 1", cache.sets)
	}

	if _, err := agg.Dashboard(ctx); err != nil {
		t.Fatalf("second call: %v", err)
	}

	if cache.hits != 1 {
		t.Fatalf("got %d cache hits, want 1", cache.hits)
	}

	// a successful mark drops the entry so the next read recomputes
	agg.InvalidateToday(ctx)

	if _, err := agg.Dashboard(ctx); err != nil {
		t.Fatalf("third call: %v", err)
	}

	if cache.sets != 2 {
		t.Fatalf("got %d cache sets after invalidation, want 2", cache.sets)
	}
}

func TestForUserStreak(t *testing.T) {
	now := fixedNow()

	day := func(offset int) string {
		return attendance.DayKey(now.AddDate(0, 0, -offset))
	}

	tests := []struct {
		name       string
		markedDays []string
		wantStreak int
	}{
		{
			name:       "gap_breaks_streak",
			markedDays: []string{day(0), day(1), day(3)},
			wantStreak: 2,
		},
		{
			name:       "today_unmarked_means_zero",
			markedDays: []string{day(1), day(2)},
			wantStreak: 0,
		},
		{
			name:       "no_records",
			markedDays: nil,
			wantStreak: 0,
		},
		{
			name:       "five_in_a_row",
			markedDays: []string{day(0), day(1), day(2), day(3), day(4)},
			wantStreak: 5,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			marked := map[string]bool{}
			for _, d := range tt.markedDays {
				marked["u1|"+d] = true
			}

			agg := stats.NewAggregator(&fakeRecords{marked: marked}, &fakeUserCounter{}, nil).
				WithClock(fixedNow)

			got, err := agg.ForUser(context.Background(), "u1")

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got.CurrentStreak != tt.wantStreak {
				t.Fatalf("got streak %d, want %d", got.CurrentStreak, tt.wantStreak)
			}
		})
	}
}

func TestForUserMonthlyRate(t *testing.T) {
	// the 14th of the month with 7 marked days so far
	now := fixedNow()
	today := attendance.DayKey(now)

	records := &fakeRecords{
		marked: map[string]bool{"u1|" + today: true},
		countRange: func(userID, fromDay, toDay string) int {
			monthStart := attendance.DayKey(time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()))
			if fromDay == monthStart {
				return 7
			}
			return 11 // 30-day window
		},
	}

	agg := stats.NewAggregator(records, &fakeUserCounter{}, nil).WithClock(fixedNow)

	got, err := agg.ForUser(context.Background(), "u1")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !got.MarkedToday {
		t.Fatal("expected markedToday")
	}

	if got.TotalDaysPresent != 11 {
		t.Fatalf("got totalDaysPresent %d, want 11", got.TotalDaysPresent)
	}

	// 7 marks over 14 elapsed days
	if got.MonthlyRate != 50 {
		t.Fatalf("got monthlyRate %d, want 50", got.MonthlyRate)
	}
}
