// Package handler exposes the admin HTTP surface and the chat webhook. The
// endpoints here are thin pass-throughs to the materializer, the attendance
// service and the repositories; route wiring lives in cmd/api.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"classping/internal/attendance"
	"classping/internal/audit"
	"classping/internal/auth"
	"classping/internal/config"
	"classping/internal/lesson"
	"classping/internal/payroll"
	"classping/internal/queue"
	"classping/internal/schedule"
)

// Handler carries the services behind the HTTP surface.
type Handler struct {
	cfg     config.App
	loc     *time.Location
	sched   *schedule.Repository
	occ     *lesson.Repository
	mat     *lesson.Materializer
	att     *attendance.Service
	pay     *payroll.Service
	payRepo *payroll.Repository
	q       queue.Queue
	aud     *audit.Recorder
}

// New creates a handler.
func New(cfg config.App, loc *time.Location, sched *schedule.Repository, occ *lesson.Repository, mat *lesson.Materializer,
	att *attendance.Service, pay *payroll.Service, payRepo *payroll.Repository, q queue.Queue, aud *audit.Recorder) *Handler {
	return &Handler{cfg: cfg, loc: loc, sched: sched, occ: occ, mat: mat, att: att, pay: pay, payRepo: payRepo, q: q, aud: aud}
}

// Token exchanges the operator secret for a bearer token pair.
func (h *Handler) Token(c *gin.Context) {
	var req struct {
		Secret  string `json:"secret" binding:"required"`
		Subject string `json:"subject"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Secret != h.cfg.AdminSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid secret"})
		return
	}
	subject := req.Subject
	if subject == "" {
		subject = "admin"
	}
	tokens, err := auth.Issue(subject, auth.RoleAdmin, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// actor returns the token subject for audit entries, empty on public routes.
func actor(c *gin.Context) string {
	claimsAny, ok := c.Get("claims")
	if !ok {
		return ""
	}
	claims, ok := claimsAny.(auth.Claims)
	if !ok {
		return ""
	}
	return claims.Subject
}

// pathID parses a numeric path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// queryInt reads an integer query parameter with a fallback.
func queryInt(c *gin.Context, name string, fallback int) int {
	if v := c.Query(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// queryDate reads a yyyy-mm-dd query parameter, nil when absent or malformed.
func queryDate(c *gin.Context, name string) *time.Time {
	v := c.Query(name)
	if v == "" {
		return nil
	}
	d, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil
	}
	return &d
}
