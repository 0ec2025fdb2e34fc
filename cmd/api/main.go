package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"

	"presensure/internal/api"
	"presensure/internal/attendance"
	"presensure/internal/auth"
	"presensure/internal/checkin"
	"presensure/internal/cloudinary"
	"presensure/internal/config"
	"presensure/internal/faceclient"
	"presensure/internal/queue"
	"presensure/internal/realtime"
	"presensure/internal/scoring"
	"presensure/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]api.HealthCheck{}

	records, err := openStore(ctx, cfg, checks)
	if err != nil {
		return err
	}
	defer records.Close()

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		checks["redis"] = redisClient.Healthy
		q = queue.NewRedisQueue(redisClient.Client, "")
	} else {
		q = queue.NewInMemory(256)
	}

	faceRange, err := scoring.ParseRange(cfg.FaceScoreRange)
	if err != nil {
		return fmt.Errorf("SCORE_FACE_RANGE: %w", err)
	}
	voiceRange, err := scoring.ParseRange(cfg.VoiceScoreRange)
	if err != nil {
		return fmt.Errorf("SCORE_VOICE_RANGE: %w", err)
	}
	var scores attendance.ScoreProvider = scoring.NewRandom(faceRange, voiceRange)

	face := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
	var enroller api.FaceEnroller
	if !cfg.FaceSkip {
		scores = scoring.NewFaceService(face, scores)
		enroller = face
		checks["face"] = func(ctx context.Context) bool { return face.Health(ctx) == nil }
	}

	var images *cloudinary.Client
	if cfg.CloudinaryEnabled() {
		images = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	} else {
		color.Yellow("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set), face images stay inline")
	}

	svc := attendance.NewService(records, scores, q, cfg.Location())
	if cfg.SeedDemo {
		if err := svc.SeedDemo(ctx); err != nil {
			log.Printf("warning: seed demo data: %v", err)
		}
	}

	hub := realtime.NewHub()
	go func() {
		if err := hub.Run(ctx, q); err != nil {
			log.Printf("warning: dashboard hub stopped: %v", err)
		}
	}()

	tokens := api.TokenConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	}
	timings := checkin.Timings{
		FaceDwell:     cfg.FaceDwell,
		LivenessDelay: cfg.LivenessDelay,
		VoiceDelay:    cfg.VoiceDelay,
	}

	// Interfaces stay nil (not typed-nil) when the integration is off.
	var uploader api.ImageUploader
	var snapshots realtime.SnapshotUploader
	if images != nil {
		uploader, snapshots = images, images
	}

	handler := api.NewHandler(svc, auth.NewAuthenticator(svc, cfg.StaffPassword), tokens, uploader, enroller, checks)
	r := api.NewRouter(api.Options{
		Handler:          handler,
		Checkins:         realtime.NewCheckins(svc, snapshots, timings, cfg.DeviceReplyTimeout),
		Dashboard:        hub,
		Tokens:           tokens,
		AllowOrigins:     cfg.CORSOrigins,
		RateLimitPerMin:  cfg.RateLimitPerMin,
		LoginLimitPerMin: cfg.LoginLimitPerMin,
		Logging:          true,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	banner(cfg)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// openStore picks the record store backend and registers its health check.
func openStore(ctx context.Context, cfg config.App, checks map[string]api.HealthCheck) (attendance.Store, error) {
	var (
		db      *store.DB
		dialect attendance.Dialect
		err     error
	)
	switch cfg.StoreBackend {
	case "memory":
		color.Yellow("STORE_BACKEND=memory: records are lost on restart")
		return attendance.NewMemoryStore(), nil
	case "postgres":
		db, err = store.NewPostgres(ctx, cfg.DatabaseURL)
		dialect = attendance.Postgres
	case "sqlite":
		db, err = store.NewSQLite(ctx, cfg.SQLitePath)
		dialect = attendance.SQLite
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}
	checks["db"] = db.Healthy

	s := attendance.NewSQLStore(db.Client, dialect)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func banner(cfg config.App) {
	color.Cyan("╔══════════════════════════════════════╗")
	color.Cyan("║          PresenSure API              ║")
	color.Cyan("╚══════════════════════════════════════╝")
	color.Yellow("config:")
	fmt.Printf("  listen   :%s (%s)\n", cfg.HTTPPort, cfg.Env)
	fmt.Printf("  store    %s\n", cfg.StoreBackend)
	fmt.Printf("  queue    %s\n", cfg.QueueBackend)
	fmt.Printf("  scores   face %s, voice %s\n", cfg.FaceScoreRange, cfg.VoiceScoreRange)
	if cfg.FaceSkip {
		color.Yellow("  face service skipped (FACE_SKIP=true)")
	} else {
		fmt.Printf("  face     %s\n", cfg.FaceServiceURL)
	}
	if cfg.JWTSigningKey == "dev-signing-secret-change" {
		color.Red("  JWT_SIGNING_KEY is the development default")
	}
}
