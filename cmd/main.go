// jobmate-digest-service
//
// Daily job-to-user matching and digest-selection pipeline:
//   - snapshot users/profiles/jobs/enrichment once per batch date
//   - per-user: candidate filters → scoring → section selection
//   - idempotent mapping + pick writes, one BatchRun row per date
//
// Triggered by the daily cron and by POST /runs (date, force,
// concurrency, userIds). Publishes EVENT_DIGEST_RUN to Redis for the
// monitoring surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"jobmate/digest-service/internal/batch"
	"jobmate/digest-service/internal/config"
	"jobmate/digest-service/internal/db"
	"jobmate/digest-service/internal/events"
	"jobmate/digest-service/internal/scheduler"
	"jobmate/digest-service/internal/snapshot"
	"jobmate/digest-service/internal/store"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	_ = godotenv.Load() // optional .env for local development

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[digest-service] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[digest-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns))
	if err != nil {
		log.Fatalf("[digest-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[digest-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[digest-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[digest-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[digest-service] Redis connected ✓")

	// ── Pipeline wiring ──────────────────────────────────────────────────────
	orch := batch.NewOrchestrator(
		snapshot.NewLoader(pool),
		store.NewRunStore(pool),
		store.NewWriter(pool),
		events.NewPublisher(rdb),
		batch.Config{
			Concurrency:        cfg.Concurrency,
			ErrorRateThreshold: cfg.ErrorRateThreshold,
			UserTaskTimeout:    cfg.UserTaskTimeout,
			CompanyCap:         cfg.CompanyCap,
			CandidateCap:       cfg.CandidateCap,
		},
	)

	sched := scheduler.New(orch, cfg.CronSpec)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[digest-service] Scheduler: %v", err)
	}
	defer sched.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	h := batch.NewHandler(orch, store.NewRunStore(pool))
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[digest-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[digest-service] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[digest-service] Shutting down…")
	cancel() // stops scheduling new per-user tasks; in-flight users finish

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[digest-service] Shutdown error: %v", err)
	}
	log.Println("[digest-service] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "digest-service",
		"version": version,
	})
}
