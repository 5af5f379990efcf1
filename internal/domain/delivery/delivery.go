package delivery

import "errors"

// Delivery kinds. Each kind defines its own natural key so a retried job can
// never send the same notification twice.
const KindAttendanceMarked = "attendance.marked"

var (
	ErrAlreadySent = errors.New("notification already sent")
	ErrInProgress  = errors.New("notification delivery in progress")
)
