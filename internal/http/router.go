package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/markmehq/markme/internal/auth"
	"github.com/markmehq/markme/internal/config"
	"github.com/markmehq/markme/internal/domain/user"
	"github.com/markmehq/markme/internal/http/handlers"
	"github.com/markmehq/markme/internal/http/middlewares"
	"github.com/markmehq/markme/internal/observability"
	"github.com/markmehq/markme/internal/repo/postgres"
	attendancesvc "github.com/markmehq/markme/internal/service/attendance"
	"github.com/markmehq/markme/internal/service/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps carries everything the router wires together. main builds it once.
type Deps struct {
	Cfg        config.Config
	Log        *slog.Logger
	Pool       *pgxpool.Pool
	Prom       *observability.Prom
	PromReg    *prometheus.Registry
	JWT        *auth.Manager
	StatsCache stats.DashboardCache
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware, outermost first

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(otelgin.Middleware("markme-api"))
	r.Use(d.Prom.GinMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(d.Cfg.MaxBodyBytes))

	// wire up repositories

	usersRepo := postgres.NewUsersRepo(d.Pool, d.Prom)
	attendanceRepo := postgres.NewAttendanceRepo(d.Pool, d.Prom)
	refreshRepo := postgres.NewRefreshTokensRepo(d.Pool)
	jobsRepo := postgres.NewJobsRepo(d.Pool, d.Prom)

	// services

	marker := attendancesvc.NewService(usersRepo, attendanceRepo)
	aggregator := stats.NewAggregator(attendanceRepo, usersRepo, d.StatsCache)

	// handlers

	healthHandler := handlers.NewHealthHandler(d.Pool)
	authHandler := handlers.NewAuthHandler(usersRepo, d.JWT, refreshRepo, d.Cfg)
	attendanceHandler := handlers.NewAttendanceHandler(marker, attendanceRepo, jobsRepo, aggregator, d.Prom.ScansTotal)
	usersHandler := handlers.NewUsersHandler(usersRepo)
	statsHandler := handlers.NewStatsHandler(aggregator)
	exportHandler := handlers.NewExportHandler(attendanceRepo, jobsRepo)

	authMw := middlewares.NewAuthMiddleware(d.JWT)

	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/readyz", healthHandler.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.PromReg, promhttp.HandlerOpts{})))

	// auth endpoints take the brunt of abusive traffic, so they get their own
	// per-IP limiter
	authLimiter := middlewares.NewRateLimiter(d.Cfg.RateLimit, d.Cfg.RateWindow)

	authGroup := r.Group("/auth")
	authGroup.Use(authLimiter.Middleware(middlewares.KeyByIP))
	{
		authGroup.POST("/signup", middlewares.RequireJSON(), authHandler.SignUp)
		authGroup.POST("/login", middlewares.RequireJSON(), authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/session", authMw.RequireAuth(), authHandler.Session)
	}

	authed := r.Group("")
	authed.Use(authMw.RequireAuth())
	{
		authed.GET("/me", usersHandler.Me)
		authed.GET("/me/qr.png", usersHandler.MyQR)
		authed.GET("/stats/me", statsHandler.Me)
		authed.GET("/attendance/me", attendanceHandler.MyHistory)
	}

	// scans burst when a class walks in; give them their own per-user budget
	scanLimiter := middlewares.NewRateLimiter(d.Cfg.RateLimit, d.Cfg.RateWindow)

	admin := r.Group("")
	admin.Use(authMw.RequireAuth(), authMw.RequireRole(user.RoleAdmin))
	{
		admin.POST("/attendance/scan",
			scanLimiter.Middleware(middlewares.KeyByUserOrIP),
			middlewares.RequireJSON(),
			attendanceHandler.Scan,
		)
		admin.GET("/attendance", attendanceHandler.ListByDate)
		admin.GET("/attendance/today", attendanceHandler.ListToday)
		admin.GET("/attendance/range", attendanceHandler.ListRange)
		admin.GET("/attendance/dates", attendanceHandler.ListDates)
		admin.GET("/attendance/export.csv", exportHandler.CSV)
		admin.GET("/attendance/export.xlsx", exportHandler.XLSX)

		admin.POST("/exports", middlewares.RequireJSON(), exportHandler.CreateJob)
		admin.GET("/exports/:id", exportHandler.JobStatus)

		admin.GET("/stats/dashboard", statsHandler.Dashboard)

		admin.GET("/users", usersHandler.List)
		admin.POST("/users", middlewares.RequireJSON(), usersHandler.Create)
	}

	return r
}
