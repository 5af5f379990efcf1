package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/markmehq/markme/internal/config"
	"github.com/markmehq/markme/internal/domain/attendance"
	"github.com/markmehq/markme/internal/domain/job"
	"github.com/markmehq/markme/internal/http/middlewares"
	attendancesvc "github.com/markmehq/markme/internal/service/attendance"
	"github.com/markmehq/markme/internal/service/stats"
	"github.com/prometheus/client_golang/prometheus"
)

type Marker interface {
	MarkByToken(ctx context.Context, token string) (attendancesvc.MarkResult, error)
}

type RecordLister interface {
	ListByDay(ctx context.Context, day string) ([]attendance.Record, error)
	ListRange(ctx context.Context, fromDay, toDay string) ([]attendance.Record, error)
	ListDays(ctx context.Context) ([]string, error)
	ListForUserRange(ctx context.Context, userID, fromDay, toDay string) ([]attendance.Record, error)
}

type JobEnqueuer interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

type AttendanceHandler struct {
	marker  Marker
	records RecordLister
	jobs    JobEnqueuer
	stats   *stats.Aggregator
	scans   *prometheus.CounterVec
	now     func() time.Time
}

func NewAttendanceHandler(marker Marker, records RecordLister, jobs JobEnqueuer, aggregator *stats.Aggregator, scans *prometheus.CounterVec) *AttendanceHandler {
	return &AttendanceHandler{
		marker:  marker,
		records: records,
		jobs:    jobs,
		stats:   aggregator,
		scans:   scans,
		now:     time.Now,
	}
}

type ScanRequest struct {
	Token string `json:"token" binding:"required"`
}

// Scan records attendance for the user carried by a scanned QR code. A first
// scan of the day creates the record; a repeat scan is reported as such
// without writing anything.
func (h *AttendanceHandler) Scan(ctx *gin.Context) {
	var req ScanRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	result, err := h.marker.MarkByToken(cctx, req.Token)

	if err != nil {
		if errors.Is(err, attendance.ErrInvalidToken) {
			h.countScan("invalid")
			RespondNotFound(ctx, "invalid_code", "QR code does not match any user.")
			return
		}

		RespondInternal(ctx, "Could not record attendance")
		return
	}

	if result.Outcome == attendancesvc.OutcomeAlreadyMarked {
		h.countScan("already_marked")
		ctx.JSON(http.StatusOK, gin.H{
			"status": "already_marked",
			"user":   gin.H{"id": result.User.ID, "fullName": result.User.FullName},
		})
		return
	}

	h.countScan("marked")
	h.stats.InvalidateToday(cctx)
	h.enqueueNotify(cctx, result)

	ctx.JSON(http.StatusCreated, gin.H{
		"status": "marked",
		"user":   gin.H{"id": result.User.ID, "fullName": result.User.FullName},
		"record": result.Record,
	})
}

// enqueueNotify is best-effort; a failed enqueue never fails the scan.
func (h *AttendanceHandler) enqueueNotify(ctx context.Context, result attendancesvc.MarkResult) {
	payload, err := job.EncodePayload(job.TypeNotifyMarked, job.NotifyMarkedPayload{
		UserID:   result.User.ID,
		UserName: result.User.FullName,
		Day:      result.Record.Day,
		TimeIn:   result.Record.TimeIn,
	})

	if err != nil {
		return
	}

	_, _ = h.jobs.Create(ctx, job.CreateRequest{
		Type:    job.TypeNotifyMarked,
		Payload: payload,
	})
}

func (h *AttendanceHandler) countScan(outcome string) {
	if h.scans != nil {
		h.scans.WithLabelValues(outcome).Inc()
	}
}

func (h *AttendanceHandler) ListToday(ctx *gin.Context) {
	h.listDay(ctx, attendance.DayKey(h.now()))
}

func (h *AttendanceHandler) ListByDate(ctx *gin.Context) {
	day, err := attendance.ParseDay(ctx.Query("date"))

	if err != nil {
		RespondBadRequest(ctx, "Invalid date, expected YYYY-MM-DD", nil)
		return
	}

	h.listDay(ctx, day)
}

func (h *AttendanceHandler) listDay(ctx *gin.Context, day string) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	recs, err := h.records.ListByDay(cctx, day)

	if err != nil {
		RespondInternal(ctx, "Could not list attendance")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"date":    day,
		"count":   len(recs),
		"records": recs,
	})
}

// ListRange returns records between ?from and ?to inclusive, newest first.
func (h *AttendanceHandler) ListRange(ctx *gin.Context) {
	from, err := attendance.ParseDay(ctx.Query("from"))

	if err != nil {
		RespondBadRequest(ctx, "Invalid 'from' date, expected YYYY-MM-DD", nil)
		return
	}

	to, err := attendance.ParseDay(ctx.Query("to"))

	if err != nil {
		RespondBadRequest(ctx, "Invalid 'to' date, expected YYYY-MM-DD", nil)
		return
	}

	if to < from {
		RespondBadRequest(ctx, "'to' must not be before 'from'", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	recs, err := h.records.ListRange(cctx, from, to)

	if err != nil {
		RespondInternal(ctx, "Could not list attendance")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"from":    from,
		"to":      to,
		"count":   len(recs),
		"records": recs,
	})
}

// MyHistory returns the caller's own records for the last 30 days, oldest
// first.
func (h *AttendanceHandler) MyHistory(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	now := h.now()
	from := attendance.DayKey(now.AddDate(0, 0, -30))
	to := attendance.DayKey(now)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	recs, err := h.records.ListForUserRange(cctx, userID, from, to)

	if err != nil {
		RespondInternal(ctx, "Could not list attendance")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"from":    from,
		"to":      to,
		"count":   len(recs),
		"records": recs,
	})
}

// ListDates returns the distinct days that have at least one record, newest
// first. The admin history screen uses it to build its day picker.
func (h *AttendanceHandler) ListDates(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	days, err := h.records.ListDays(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list attendance dates")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"dates": days})
}
