package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoswagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/sgs-clinic/clinic-api/docs"
	"github.com/sgs-clinic/clinic-api/internal/api/handler"
	"github.com/sgs-clinic/clinic-api/internal/api/middleware"
	"github.com/sgs-clinic/clinic-api/internal/core/domain"
	"github.com/sgs-clinic/clinic-api/internal/core/ports"
)

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(
	db *mongo.Database,
	rdb *redis.Client,
	authService ports.AuthService,
	appointmentService ports.AppointmentService,
	log zerolog.Logger,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("sgs"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(authService)
	accountHandler := handler.NewAccountHandler()
	appointmentHandler := handler.NewAppointmentHandler(appointmentService)
	authRequired := middleware.Auth(authService)

	// --- Auth routes ---
	e.POST("/auth/login", authHandler.StaffLogin)
	e.POST("/auth/patient/login", authHandler.PatientLogin)
	e.POST("/auth/register", authHandler.Register,
		authRequired, middleware.RequireRole(domain.RoleAdmin))

	// --- Authenticated API ---
	v1 := e.Group("/v1", authRequired)
	v1.GET("/accounts/me", accountHandler.Me)

	bookingStaff := middleware.RequireRole(
		domain.RoleAdmin, domain.RoleManager, domain.RoleReceptionist)
	clinicalStaff := middleware.RequireRole(
		domain.RoleAdmin, domain.RoleManager, domain.RoleReceptionist, domain.RoleDoctor)

	v1.POST("/appointments", appointmentHandler.Create, bookingStaff)
	v1.GET("/appointments", appointmentHandler.List)
	v1.GET("/appointments/:id", appointmentHandler.Get)
	v1.PUT("/appointments/:id/reschedule", appointmentHandler.Reschedule, bookingStaff)
	v1.PATCH("/appointments/:id/status", appointmentHandler.UpdateStatus, clinicalStaff)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	// --- Observability and docs ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoswagger.WrapHandler)

	return e
}
