package notifications

import (
	"context"
	"time"
)

type AttendanceMarkedInput struct {
	UserID   string
	UserName string
	Day      string
	TimeIn   time.Time
}

type Notifier interface {
	SendAttendanceMarked(ctx context.Context, input AttendanceMarkedInput) error
}
