package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/markmehq/markme/internal/config"
	"github.com/markmehq/markme/internal/http/middlewares"
	"github.com/markmehq/markme/internal/service/stats"
)

type StatsHandler struct {
	stats *stats.Aggregator
}

func NewStatsHandler(aggregator *stats.Aggregator) *StatsHandler {
	return &StatsHandler{stats: aggregator}
}

func (h *StatsHandler) Dashboard(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	dashboard, err := h.stats.Dashboard(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not compute dashboard")
		return
	}

	ctx.JSON(http.StatusOK, dashboard)
}

func (h *StatsHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	userStats, err := h.stats.ForUser(cctx, userID)

	if err != nil {
		RespondInternal(ctx, "Could not compute statistics")
		return
	}

	ctx.JSON(http.StatusOK, userStats)
}
