package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classping/internal/attendance"
	"classping/internal/audit"
	"classping/internal/auth"
	"classping/internal/clock"
	"classping/internal/config"
	"classping/internal/handler"
	"classping/internal/httpmiddleware"
	"classping/internal/lesson"
	"classping/internal/payroll"
	"classping/internal/queue"
	"classping/internal/schedule"
	"classping/internal/store"
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
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()
	if cfg.MigrateOnBoot {
		if err := store.Migrate(db.Client); err != nil {
			log.Printf("warning: migrations not applied: %v", err)
		}
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classping:updates")
	}

	loc := clock.Zone(cfg.Timezone)
	schedRepo := schedule.NewRepository(db.Client)
	occRepo := lesson.NewRepository(db.Client)
	marks := attendance.NewRepository(db.Client)
	payRepo := payroll.NewRepository(db.Client)
	paySvc := payroll.NewService(payRepo)
	att := attendance.NewService(marks, occRepo, schedRepo, paySvc)
	mat := lesson.NewMaterializer(occRepo, schedRepo, loc, cfg.HorizonWeeks)
	recorder := audit.NewRecorder(db.Client)

	h := handler.New(cfg, loc, schedRepo, occRepo, mat, att, paySvc, payRepo, q, recorder)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil && db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/auth/token", h.Token)
	r.POST("/webhook/chat", h.ChatWebhook)

	admin := r.Group("/v1", auth.OperatorAuth(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin))

	admin.POST("/clubs", h.CreateClub)
	admin.POST("/teachers", h.CreateTeacher)
	admin.GET("/teachers/:id/pay-rates", h.ListPayRates)
	admin.POST("/students", h.CreateStudent)

	admin.POST("/schedules", h.CreateSchedule)
	admin.GET("/schedules", h.ListSchedules)
	admin.PUT("/schedules/:id/time", h.UpdateScheduleTime)
	admin.POST("/schedules/:id/deactivate", h.DeactivateSchedule)
	admin.POST("/schedules/:id/reactivate", h.ReactivateSchedule)
	admin.POST("/schedules/:id/students", h.Enroll)
	admin.DELETE("/schedules/:id/students/:studentID", h.Unenroll)
	admin.PUT("/schedules/:id/rule", h.UpsertRule)

	admin.GET("/rules", h.ListRules)
	admin.POST("/rules/:id/regenerate", h.RegenerateRule)

	admin.GET("/occurrences", h.ListOccurrences)
	admin.POST("/occurrences/generate-today", h.GenerateToday)
	admin.POST("/occurrences/:id/reset", h.ResetOccurrence)
	admin.GET("/occurrences/:id/marks", h.OccurrenceMarks)
	admin.PUT("/occurrences/:id/marks/:studentID", h.CorrectMark)

	admin.POST("/pay-rates", h.CreatePayRate)
	admin.GET("/conducted-lessons", h.ListConducted)
	admin.GET("/compensations", h.ListCompensations)
	admin.POST("/compensations", h.CreateManualCompensation)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// corsMiddleware allows browser requests from admin tooling.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// securityHeaders sets the usual hardening headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
