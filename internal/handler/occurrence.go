package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"classping/internal/attendance"
	"classping/internal/audit"
	"classping/internal/clock"
)

// ListOccurrences returns occurrences filtered by schedule, status and a
// date window.
func (h *Handler) ListOccurrences(c *gin.Context) {
	var scheduleID int64
	if v := c.Query("schedule_id"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule_id"})
			return
		}
		scheduleID = parsed
	}
	occs, err := h.occ.List(c.Request.Context(), scheduleID, c.Query("status"),
		queryDate(c, "from"), queryDate(c, "to"),
		queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"occurrences": occs})
}

// ResetOccurrence re-arms a single occurrence: back to PLANNED with send and
// completion markers cleared, so the dispatcher picks it up again.
func (h *Handler) ResetOccurrence(c *gin.Context) {
	id := c.Param("id")
	if err := h.occ.ResetToPlanned(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.aud.Record(c.Request.Context(), audit.Entry{
		Actor: actor(c), Action: "reset", EntityType: "occurrence", EntityID: id,
	})
	c.JSON(http.StatusOK, gin.H{"status": "planned"})
}

// GenerateToday materializes occurrences for every enabled rule running on
// today's weekday. Weekends produce nothing.
func (h *Handler) GenerateToday(c *gin.Context) {
	created, err := h.mat.EnsureToday(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.aud.Record(c.Request.Context(), audit.Entry{
		Actor: actor(c), Action: "generate_today", EntityType: "occurrence",
		Details: gin.H{"created": created},
	})
	c.JSON(http.StatusOK, gin.H{"created": created})
}

// RegenerateRule refills the occurrence horizon for one notify rule.
func (h *Handler) RegenerateRule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	rule, err := h.sched.GetRule(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rule == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	created, refreshed, err := h.mat.EnsureRule(ctx, *rule)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.aud.Record(ctx, audit.Entry{
		Actor: actor(c), Action: "regenerate", EntityType: "notify_rule",
		EntityID: strconv.FormatInt(id, 10),
		Details:  gin.H{"created": created, "refreshed": refreshed},
	})
	c.JSON(http.StatusOK, gin.H{"created": created, "refreshed": refreshed})
}

// OccurrenceMarks returns the stored attendance of an occurrence.
func (h *Handler) OccurrenceMarks(c *gin.Context) {
	marks, err := h.att.Marks(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"marks": marks})
}

// CorrectMark sets a student's attendance outside the chat flow. Corrections
// on a finalized occurrence recompute the derived records.
func (h *Handler) CorrectMark(c *gin.Context) {
	occurrenceID := c.Param("id")
	studentID, ok := pathID(c, "studentID")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.att.SetMark(c.Request.Context(), occurrenceID, studentID, req.Status, nil)
	if errors.Is(err, attendance.ErrOccurrenceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.aud.Record(c.Request.Context(), audit.Entry{
		Actor: actor(c), Action: "correct_mark", EntityType: "occurrence", EntityID: occurrenceID,
		Details: gin.H{"student_id": studentID, "status": req.Status},
	})
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

// todayUTC is the zone-local calendar date, normalized the way occurrence
// dates are stored.
func (h *Handler) todayUTC() time.Time {
	return clock.LocalDate(time.Now().UTC(), h.loc)
}
