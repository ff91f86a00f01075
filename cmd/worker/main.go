package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"classping/internal/attendance"
	"classping/internal/bot"
	"classping/internal/chat"
	"classping/internal/clock"
	"classping/internal/config"
	"classping/internal/lesson"
	"classping/internal/payroll"
	"classping/internal/queue"
	"classping/internal/schedule"
	"classping/internal/session"
	"classping/internal/store"
)

// Worker runs the dispatcher poll loop, the maintenance cadences, and the
// consumer that applies inbound interaction events.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	var seen session.Store
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
		seen = session.NewMemory(cfg.SeenTTL)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classping:updates")
		seen = session.NewRedisStore(redisClient.Client, "classping:seen:", cfg.SeenTTL)
	}

	loc := clock.Zone(cfg.Timezone)
	schedRepo := schedule.NewRepository(db.Client)
	occRepo := lesson.NewRepository(db.Client)
	marks := attendance.NewRepository(db.Client)
	payRepo := payroll.NewRepository(db.Client)
	paySvc := payroll.NewService(payRepo)
	att := attendance.NewService(marks, occRepo, schedRepo, paySvc)
	mat := lesson.NewMaterializer(occRepo, schedRepo, loc, cfg.HorizonWeeks)
	cleanup := lesson.NewCleanup(occRepo, schedRepo, mat, loc, cfg.StaleAfter, cfg.DriftTolerance)

	chatClient := chat.New(cfg.ChatAPIBase, cfg.ChatToken, cfg.ChatSkip)
	if !cfg.ChatSkip {
		if err := chatClient.Health(ctx); err != nil {
			log.Printf("WARNING: chat service not available: %v", err)
			log.Println("Worker will retry sends on the next dispatch cycle")
		} else {
			log.Println("Chat service connected")
		}
	}

	dispatcher := bot.NewDispatcher(occRepo, schedRepo, att, chatClient, cfg.DispatchInterval, cfg.DispatchBatch, cfg.RenderStyle)
	go dispatcher.Run(ctx)

	// Maintenance cadences run zone-local; a slow sweep skips the next tick
	// instead of stacking.
	cronEngine := cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := cronEngine.AddFunc(cfg.DailySweepSpec, func() {
		sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer sweepCancel()
		if _, err := cleanup.DailySweep(sweepCtx); err != nil {
			log.Printf("cleanup: daily sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("add daily sweep failed: %v", err)
	}
	if _, err := cronEngine.AddFunc(cfg.WeeklySweepSpec, func() {
		sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer sweepCancel()
		if err := cleanup.WeeklySweep(sweepCtx); err != nil {
			log.Printf("cleanup: weekly sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("add weekly sweep failed: %v", err)
	}
	cronEngine.Start()
	defer cronEngine.Stop()
	log.Printf("maintenance scheduled: daily %q, weekly %q (%s)", cfg.DailySweepSpec, cfg.WeeklySweepSpec, cfg.Timezone)

	// Metrics and liveness for the worker process.
	metricsSrv := &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: metricsMux(redisClient)}
	go func() {
		log.Printf("worker metrics on :%s", cfg.WorkerMetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("worker metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	interactions := bot.NewHandler(att, occRepo, schedRepo, chatClient, seen, cfg.RenderStyle)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for updates...")
	for msg := range messages {
		if msg.Type != queue.TypeChatUpdate {
			continue
		}
		var upd chat.Update
		if err := json.Unmarshal(msg.Body, &upd); err != nil {
			log.Printf("discarding malformed update: %v", err)
			continue
		}
		if err := interactions.HandleUpdate(ctx, upd); err != nil {
			log.Printf("update %d failed: %v", upd.UpdateID, err)
		}
	}

	log.Println("worker stopped")
}

// metricsMux serves prometheus metrics plus a small liveness probe.
func metricsMux(redisClient *store.Redis) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !redisClient.Healthy(r.Context()) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
