package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/markmehq/markme/internal/config"
	"github.com/markmehq/markme/internal/domain/attendance"
	"github.com/markmehq/markme/internal/domain/job"
	"github.com/markmehq/markme/internal/export"
	"github.com/markmehq/markme/internal/http/middlewares"
)

type ExportRecordLister interface {
	ListAll(ctx context.Context) ([]attendance.Record, error)
	ListRange(ctx context.Context, fromDay, toDay string) ([]attendance.Record, error)
}

type JobStore interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
	GetByID(ctx context.Context, id string) (job.Job, error)
}

type ExportHandler struct {
	records ExportRecordLister
	jobs    JobStore
}

func NewExportHandler(records ExportRecordLister, jobs JobStore) *ExportHandler {
	return &ExportHandler{records: records, jobs: jobs}
}

// rangeFromQuery reads the optional ?from / ?to pair. Both or neither must be
// present.
func rangeFromQuery(ctx *gin.Context) (from, to string, ok bool) {
	rawFrom := ctx.Query("from")
	rawTo := ctx.Query("to")

	if rawFrom == "" && rawTo == "" {
		return "", "", true
	}

	from, err := attendance.ParseDay(rawFrom)

	if err != nil {
		RespondBadRequest(ctx, "Invalid 'from' date, expected YYYY-MM-DD", nil)
		return "", "", false
	}

	to, err = attendance.ParseDay(rawTo)

	if err != nil {
		RespondBadRequest(ctx, "Invalid 'to' date, expected YYYY-MM-DD", nil)
		return "", "", false
	}

	if to < from {
		RespondBadRequest(ctx, "'to' must not be before 'from'", nil)
		return "", "", false
	}

	return from, to, true
}

func (h *ExportHandler) load(ctx *gin.Context) ([]attendance.Record, bool) {
	from, to, ok := rangeFromQuery(ctx)

	if !ok {
		return nil, false
	}

	cctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	var (
		recs []attendance.Record
		err  error
	)

	if from == "" {
		recs, err = h.records.ListAll(cctx)
	} else {
		recs, err = h.records.ListRange(cctx, from, to)
	}

	if err != nil {
		RespondInternal(ctx, "Could not load attendance records")
		return nil, false
	}

	return recs, true
}

func (h *ExportHandler) CSV(ctx *gin.Context) {
	recs, ok := h.load(ctx)

	if !ok {
		return
	}

	var buf bytes.Buffer

	if err := export.WriteCSV(&buf, recs); err != nil {
		RespondInternal(ctx, "Could not build export")
		return
	}

	ctx.Header("Content-Disposition", `attachment; filename="`+export.FileName("csv")+`"`)
	ctx.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *ExportHandler) XLSX(ctx *gin.Context) {
	recs, ok := h.load(ctx)

	if !ok {
		return
	}

	var buf bytes.Buffer

	if err := export.WriteXLSX(&buf, recs); err != nil {
		RespondInternal(ctx, "Could not build export")
		return
	}

	ctx.Header("Content-Disposition", `attachment; filename="`+export.FileName("xlsx")+`"`)
	ctx.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

type CreateExportRequest struct {
	From string `json:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `json:"to" binding:"omitempty,datetime=2006-01-02"`
}

// CreateJob queues an export for the worker instead of building it inline.
// Large ranges are better served from disk than from a request-scoped buffer.
func (h *ExportHandler) CreateJob(ctx *gin.Context) {
	var req CreateExportRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if (req.From == "") != (req.To == "") {
		RespondBadRequest(ctx, "'from' and 'to' must be provided together", nil)
		return
	}

	if req.To != "" && req.To < req.From {
		RespondBadRequest(ctx, "'to' must not be before 'from'", nil)
		return
	}

	userID, _ := middlewares.UserIDFromContext(ctx)

	payload, err := job.EncodePayload(job.TypeExportAttendanceCSV, job.ExportAttendanceCSVPayload{
		From:        req.From,
		To:          req.To,
		RequestedBy: userID,
	})

	if err != nil {
		RespondInternal(ctx, "Could not queue export")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	j, err := h.jobs.Create(cctx, job.CreateRequest{
		Type:    job.TypeExportAttendanceCSV,
		Payload: payload,
	})

	if err != nil {
		RespondInternal(ctx, "Could not queue export")
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{
		"jobId":  j.ID,
		"status": j.Status,
	})
}

func (h *ExportHandler) JobStatus(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	j, err := h.jobs.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			RespondNotFound(ctx, "not_found", "Export job not found")
			return
		}

		RespondInternal(ctx, "Could not load export job")
		return
	}

	resp := gin.H{
		"jobId":    j.ID,
		"status":   j.Status,
		"attempts": j.Attempts,
	}

	if j.LastError != nil {
		resp["lastError"] = *j.LastError
	}

	ctx.JSON(http.StatusOK, resp)
}
