package handler

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"classping/internal/audit"
	"classping/internal/clock"
	"classping/internal/schedule"
)

// CreateClub registers a club.
func (h *Handler) CreateClub(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		DurationMin int    `json:"duration_min"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.DurationMin <= 0 {
		req.DurationMin = 60
	}
	club, err := h.sched.CreateClub(c.Request.Context(), req.Name, req.DurationMin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.aud.Record(c.Request.Context(), audit.Entry{
		Actor: actor(c), Action: "create", EntityType: "club",
		EntityID: strconv.FormatInt(club.ID, 10), Details: club,
	})
	c.JSON(http.StatusCreated, club)
}

// CreateTeacher registers a teacher, optionally with a chat handle.
func (h *Handler) CreateTeacher(c *gin.Context) {
	var req struct {
		FullName string `json:"full_name" binding:"required"`
		ChatID   *int64 `json:"chat_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	teacher, err := h.sched.CreateTeacher(c.Request.Context(), req.FullName, req.ChatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.aud.Record(c.Request.Context(), audit.Entry{
		Actor: actor(c), Action: "create", EntityType: "teacher",
		EntityID: strconv.FormatInt(teacher.ID, 10), Details: teacher,
	})
	c.JSON(http.StatusCreated, teacher)
}

// CreateStudent registers a student.
func (h *Handler) CreateStudent(c *gin.Context) {
	var req struct {
		FullName string `json:"full_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	student, err := h.sched.CreateStudent(c.Request.Context(), req.FullName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.aud.Record(c.Request.Context(), audit.Entry{
		Actor: actor(c), Action: "create", EntityType: "student",
		EntityID: strconv.FormatInt(student.ID, 10), Details: student,
	})
	c.JSON(http.StatusCreated, student)
}

// CreateSchedule registers a weekly lesson slot.
func (h *Handler) CreateSchedule(c *gin.Context) {
	var req struct {
		ClubID    *int64 `json:"club_id"`
		TeacherID int64  `json:"teacher_id" binding:"required"`
		Weekday   int    `json:"weekday" binding:"required"`
		StartTime string `json:"start_time" binding:"required"`
		GroupName string `json:"group_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Weekday < 1 || req.Weekday > 7 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "weekday must be 1 (Monday) to 7 (Sunday)"})
		return
	}
	if _, err := clock.Parse(req.StartTime); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.sched.CreateSchedule(c.Request.Context(), schedule.Schedule{
		ClubID:    req.ClubID,
		TeacherID: req.TeacherID,
		Weekday:   req.Weekday,
		StartTime: req.StartTime,
		GroupName: req.GroupName,
		Active:    true,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.aud.Record(c.Request.Context(), audit.Entry{
		Actor: actor(c), Action: "create", EntityType: "schedule",
		EntityID: strconv.FormatInt(s.ID, 10), Details: s,
	})
	c.JSON(http.StatusCreated, s)
}

// ListSchedules returns schedules; ?include_inactive=1 keeps deactivated ones.
func (h *Handler) ListSchedules(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "1" || c.Query("include_inactive") == "true"
	schedules, err := h.sched.ListSchedules(c.Request.Context(), !includeInactive)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

// UpdateScheduleTime moves a schedule to a new weekly slot. Materialized
// future occurrences catch up on the next weekly sweep.
func (h *Handler) UpdateScheduleTime(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Weekday   int    `json:"weekday" binding:"required"`
		StartTime string `json:"start_time" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Weekday < 1 || req.Weekday > 7 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "weekday must be 1 (Monday) to 7 (Sunday)"})
		return
	}
	if _, err := clock.Parse(req.StartTime); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.sched.UpdateScheduleTime(c.Request.Context(), id, req.Weekday, req.StartTime); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.aud.Record(c.Request.Context(), audit.Entry{
		Actor: actor(c), Action: "update", EntityType: "schedule",
		EntityID: strconv.FormatInt(id, 10), Details: req,
	})
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// DeactivateSchedule stops a schedule and cancels its future planned
// occurrences. Historical rows keep their attendance untouched.
func (h *Handler) DeactivateSchedule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.sched.SetScheduleActive(ctx, id, false); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	cancelled, err := h.occ.CancelFuture(ctx, id, h.todayUTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.aud.Record(ctx, audit.Entry{
		Actor: actor(c), Action: "deactivate", EntityType: "schedule",
		EntityID: strconv.FormatInt(id, 10),
		Details:  gin.H{"cancelled_occurrences": cancelled},
	})
	c.JSON(http.StatusOK, gin.H{"status": "deactivated", "cancelled_occurrences": cancelled})
}

// ReactivateSchedule resumes a schedule and restores its future cancelled
// occurrences to planned.
func (h *Handler) ReactivateSchedule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.sched.SetScheduleActive(ctx, id, true); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	restored, err := h.occ.RestoreFuture(ctx, id, h.todayUTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.aud.Record(ctx, audit.Entry{
		Actor: actor(c), Action: "reactivate", EntityType: "schedule",
		EntityID: strconv.FormatInt(id, 10),
		Details:  gin.H{"restored_occurrences": restored},
	})
	c.JSON(http.StatusOK, gin.H{"status": "reactivated", "restored_occurrences": restored})
}

// Enroll adds a student to a schedule.
func (h *Handler) Enroll(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		StudentID int64 `json:"student_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.sched.Enroll(c.Request.Context(), id, req.StudentID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "enrolled"})
}

// Unenroll removes a student from a schedule.
func (h *Handler) Unenroll(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	studentID, ok := pathID(c, "studentID")
	if !ok {
		return
	}
	if err := h.sched.Unenroll(c.Request.Context(), id, studentID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unenrolled"})
}

// UpsertRule creates or replaces the notify rule of a schedule and
// immediately materializes its occurrence horizon.
func (h *Handler) UpsertRule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Enabled       *bool   `json:"enabled"`
		OffsetMinutes int     `json:"offset_minutes"`
		NotifyTime    *string `json:"notify_time"`
		Message       *string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.NotifyTime != nil && *req.NotifyTime != "" {
		if _, err := clock.Parse(*req.NotifyTime); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	ctx := c.Request.Context()
	s, err := h.sched.GetSchedule(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	rule, err := h.sched.UpsertRule(ctx, schedule.NotifyRule{
		ScheduleID:    id,
		Enabled:       enabled,
		OffsetMinutes: req.OffsetMinutes,
		NotifyTime:    req.NotifyTime,
		Message:       req.Message,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.aud.Record(ctx, audit.Entry{
		Actor: actor(c), Action: "upsert", EntityType: "notify_rule",
		EntityID: strconv.FormatInt(rule.ID, 10), Details: rule,
	})

	// Best effort: fill the horizon now instead of waiting for the weekly
	// sweep. A failure is logged, not returned; the sweep will catch up.
	if rule.Enabled {
		if _, _, err := h.mat.EnsureRule(ctx, rule); err != nil {
			log.Printf("handler: materialize after rule upsert %d: %v", rule.ID, err)
		}
	}
	c.JSON(http.StatusOK, rule)
}

// ListRules returns every enabled notify rule.
func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.sched.ListEnabledRules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}
