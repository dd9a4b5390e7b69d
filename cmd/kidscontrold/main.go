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

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"

	"github.com/Goitonthefloor/Kids-Control/config"
	"github.com/Goitonthefloor/Kids-Control/internal/api"
	"github.com/Goitonthefloor/Kids-Control/internal/auth"
	"github.com/Goitonthefloor/Kids-Control/internal/db"
	"github.com/Goitonthefloor/Kids-Control/internal/engine"
	"github.com/Goitonthefloor/Kids-Control/internal/notification"
	"github.com/Goitonthefloor/Kids-Control/internal/profile"
	"github.com/Goitonthefloor/Kids-Control/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "kidscontrold ", log.LstdFlags)

	// Secrets come from the environment; a .env file is a convenience
	// for local development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Printf("skipping .env: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	loc, err := time.LoadLocation(cfg.Time.Timezone)
	if err != nil {
		logger.Fatalf("invalid timezone %q: %v", cfg.Time.Timezone, err)
	}

	sessionSecret := os.Getenv("KIDSCONTROL_SECRET")
	if sessionSecret == "" {
		sessionSecret = "dev-secret-change-me"
		logger.Println("WARNING: KIDSCONTROL_SECRET not set, using development secret")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	// Web push is optional: without VAPID keys the engine simply emits
	// no notifications.
	var webpushOptions *webpush.Options
	var pool *notification.WorkerPool
	var notifier engine.Notifier
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool = notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		pool.Start(ctx)
		notifier = pool
		logger.Printf("notification worker pool started (size %d)", cfg.WorkerPool.Size)
	} else {
		logger.Println("VAPID keys not configured, web push disabled")
	}

	eng := engine.New(appStore, loc, notifier, engine.Options{
		MaxHeartbeatGapMinutes: cfg.Time.HeartbeatMaxGapMinutes,
		UsageRetentionDays:     cfg.Time.UsageRetentionDays,
	})

	sessions := auth.NewSessions(sessionSecret, time.Duration(cfg.Auth.SessionTTLMinutes)*time.Minute)

	var authn auth.Authenticator
	if cfg.Auth.LDAP.Enabled {
		authn = auth.NewLDAP(cfg.Auth.LDAP)
		logger.Printf("LDAP authentication enabled against %s", cfg.Auth.LDAP.URI)
	} else {
		authn = auth.NewStatic(cfg.Auth.AdminUser, os.Getenv("KIDSCONTROL_ADMIN_PASSWORD"))
	}

	profiles, err := profile.NewManager(cfg.Profiles.Dir)
	if err != nil {
		logger.Fatalf("failed to initialize profile manager: %v", err)
	}

	router := api.NewRouter(appStore, eng, sessions, authn, profiles, webpushOptions, loc, os.Getenv("KIDSCONTROL_CHILD_VIEW_TOKEN"), &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
