package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"classping/internal/audit"
	"classping/internal/payroll"
)

// CreatePayRate stores a rate definition for a teacher.
func (h *Handler) CreatePayRate(c *gin.Context) {
	var req struct {
		TeacherID  int64   `json:"teacher_id" binding:"required"`
		RateType   string  `json:"rate_type" binding:"required"`
		Amount     float64 `json:"amount" binding:"required"`
		ActiveFrom string  `json:"active_from" binding:"required"`
		ActiveTo   *string `json:"active_to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	from, err := time.Parse("2006-01-02", req.ActiveFrom)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "active_from must be yyyy-mm-dd"})
		return
	}
	var to *time.Time
	if req.ActiveTo != nil && *req.ActiveTo != "" {
		parsed, err := time.Parse("2006-01-02", *req.ActiveTo)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "active_to must be yyyy-mm-dd"})
			return
		}
		to = &parsed
	}
	rate, err := h.pay.CreateRate(c.Request.Context(), payroll.PayRate{
		TeacherID:  req.TeacherID,
		RateType:   req.RateType,
		Amount:     req.Amount,
		ActiveFrom: from,
		ActiveTo:   to,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.aud.Record(c.Request.Context(), audit.Entry{
		Actor: actor(c), Action: "create", EntityType: "pay_rate",
		EntityID: strconv.FormatInt(rate.ID, 10), Details: rate,
	})
	c.JSON(http.StatusCreated, rate)
}

// ListPayRates returns a teacher's rate history.
func (h *Handler) ListPayRates(c *gin.Context) {
	teacherID, ok := pathID(c, "id")
	if !ok {
		return
	}
	rates, err := h.payRepo.ListRates(c.Request.Context(), teacherID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rates": rates})
}

// ListConducted returns attendance rollups filtered by teacher and window.
func (h *Handler) ListConducted(c *gin.Context) {
	var teacherID int64
	if v := c.Query("teacher_id"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid teacher_id"})
			return
		}
		teacherID = parsed
	}
	lessons, err := h.payRepo.ListConducted(c.Request.Context(), teacherID,
		queryDate(c, "from"), queryDate(c, "to"),
		queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conducted_lessons": lessons})
}

// ListCompensations returns payout lines filtered by teacher and window.
func (h *Handler) ListCompensations(c *gin.Context) {
	var teacherID int64
	if v := c.Query("teacher_id"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid teacher_id"})
			return
		}
		teacherID = parsed
	}
	records, err := h.payRepo.ListCompensations(c.Request.Context(), teacherID,
		queryDate(c, "from"), queryDate(c, "to"),
		queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"compensations": records})
}

// CreateManualCompensation enters a payout line by hand, alongside whatever
// the calculator derived.
func (h *Handler) CreateManualCompensation(c *gin.Context) {
	var req struct {
		TeacherID    int64   `json:"teacher_id" binding:"required"`
		OccurrenceID string  `json:"occurrence_id" binding:"required"`
		Amount       float64 `json:"amount" binding:"required"`
		Note         *string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	record, err := h.pay.CreateManual(c.Request.Context(), req.TeacherID, req.OccurrenceID, req.Amount, req.Note)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.aud.Record(c.Request.Context(), audit.Entry{
		Actor: actor(c), Action: "create", EntityType: "compensation",
		EntityID: strconv.FormatInt(record.ID, 10), Details: record,
	})
	c.JSON(http.StatusCreated, record)
}
