package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sgs-clinic/clinic-api/internal/api"
	"github.com/sgs-clinic/clinic-api/internal/core/service"
	"github.com/sgs-clinic/clinic-api/internal/infrastructure/config"
	mongodb "github.com/sgs-clinic/clinic-api/internal/infrastructure/db/mongo"
	redisdb "github.com/sgs-clinic/clinic-api/internal/infrastructure/db/redis"
	"github.com/sgs-clinic/clinic-api/internal/infrastructure/jobs"
	"github.com/sgs-clinic/clinic-api/pkg/logger"
)

// @title        SGS Clinic API
// @version      1.0
// @description  Authentication, authorization and appointment scheduling for the SGS clinic system.
// @BasePath     /
// @securityDefinitions.apikey BearerAuth
// @in   header
// @name Authorization
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb connection failed")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()

	accountRepo := mongodb.NewAccountRepository(db)
	appointmentRepo := mongodb.NewAppointmentRepository(db)
	if err := accountRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("account index creation failed")
	}
	if err := appointmentRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("appointment index creation failed")
	}

	authService := service.NewAuthService(accountRepo, cfg.JWTSecret, cfg.TokenTTL, service.LockoutPolicy{
		Threshold: cfg.Lockout.Threshold,
		Cooldown:  cfg.Lockout.Cooldown,
	}, log)
	appointmentService := service.NewAppointmentService(
		appointmentRepo, redisdb.NewSlotReserver(rdb), log)

	sweep := jobs.NewNoShowSweep(appointmentService, cfg.NoShow.Grace, cfg.NoShow.Cron, log)
	if err := sweep.Start(); err != nil {
		log.Fatal().Err(err).Msg("no-show sweep startup failed")
	}
	defer sweep.Stop()

	e := api.NewRouter(db, rdb, authService, appointmentService, log)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server startup failed")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server started")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
