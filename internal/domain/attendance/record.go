package attendance

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid qr token")

type Status string

const (
	StatusPresent Status = "PRESENT"
	// LATE and ABSENT exist in stored data but are never produced by the
	// scan path; there is no agreed cutoff rule yet.
	StatusLate   Status = "LATE"
	StatusAbsent Status = "ABSENT"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent:
		return true
	default:
		return false
	}
}

// Record is one attendance mark. At most one record may exist per
// (UserID, Day); the storage layer enforces that with a unique constraint.
type Record struct {
	ID       string     `json:"id"`
	UserID   string     `json:"userId"`
	UserName string     `json:"userName"` // display-name snapshot at mark time
	Day      string     `json:"date"`
	TimeIn   time.Time  `json:"timeIn"`
	TimeOut  *time.Time `json:"timeOut,omitempty"` // reserved, never written
	Status   Status     `json:"status"`
}

// DayLayout is the calendar-day key format used to group attendance.
const DayLayout = "2006-01-02"

// DayKey returns the calendar-day key for t in local time.
func DayKey(t time.Time) string {
	return t.Local().Format(DayLayout)
}

// ParseDay validates a day key supplied by a client.
func ParseDay(s string) (string, error) {
	t, err := time.ParseInLocation(DayLayout, s, time.Local)

	if err != nil {
		return "", errors.New("date must be formatted as YYYY-MM-DD")
	}

	return t.Format(DayLayout), nil
}

// NewPresent builds a PRESENT record for the given user at now.
func NewPresent(userID, userName string, now time.Time) Record {
	return Record{
		ID:       uuid.NewString(),
		UserID:   userID,
		UserName: userName,
		Day:      DayKey(now),
		TimeIn:   now,
		Status:   StatusPresent,
	}
}

// DailyCount is one point of the weekly dashboard series.
type DailyCount struct {
	Day   string `json:"date"`
	Count int    `json:"count"`
}
