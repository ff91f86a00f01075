package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"classping/internal/attendance"
	"classping/internal/chat"
	"classping/internal/lesson"
	"classping/internal/metrics"
	"classping/internal/schedule"
	"classping/internal/session"
)

// Handler applies inbound interaction events to the attendance state
// machine. It is safe to run concurrently with itself; mark writes converge
// through upserts and replayed updates are dropped via the seen store.
type Handler struct {
	att    *attendance.Service
	occ    *lesson.Repository
	sched  *schedule.Repository
	client *chat.Client
	seen   session.Store
	style  string
}

// NewHandler creates a handler.
func NewHandler(att *attendance.Service, occ *lesson.Repository, sched *schedule.Repository, client *chat.Client, seen session.Store, style string) *Handler {
	if style == "" {
		style = StyleList
	}
	return &Handler{att: att, occ: occ, sched: sched, client: client, seen: seen, style: style}
}

// HandleUpdate processes one webhook event. Replays and malformed payloads
// are acknowledged and dropped; real failures are reported to the teacher
// with a short notice and returned for logging.
func (h *Handler) HandleUpdate(ctx context.Context, upd chat.Update) error {
	if upd.CallbackQuery == nil {
		return nil
	}
	cb := upd.CallbackQuery

	first, err := h.seen.MarkSeen(ctx, strconv.FormatInt(upd.UpdateID, 10))
	if err != nil {
		log.Printf("bot: seen store unavailable, processing update %d anyway: %v", upd.UpdateID, err)
	} else if !first {
		metrics.InteractionDuplicates.Inc()
		return nil
	}

	p, err := ParsePayload(cb.Data)
	if err != nil {
		log.Printf("bot: update %d: %v", upd.UpdateID, err)
		h.answer(ctx, cb.ID, "❌ Unknown action")
		return nil
	}

	switch p.Action {
	case ActionToggle:
		return h.handleToggle(ctx, cb, p)
	case ActionFinish:
		return h.handleFinish(ctx, cb, p)
	}
	return nil
}

func (h *Handler) handleToggle(ctx context.Context, cb *chat.CallbackQuery, p Payload) error {
	actor := cb.From.ID
	status, err := h.att.Toggle(ctx, p.OccurrenceID, p.StudentID, p.KnownStatus, &actor)
	if errors.Is(err, attendance.ErrOccurrenceNotFound) {
		h.answer(ctx, cb.ID, "❌ Lesson not found")
		return nil
	}
	if err != nil {
		h.answer(ctx, cb.ID, "❌ Something went wrong")
		return fmt.Errorf("toggle %s/%d: %w", p.OccurrenceID, p.StudentID, err)
	}
	metrics.InteractionToggles.Inc()

	if cb.Message != nil {
		if err := h.refreshPrompt(ctx, cb, p.OccurrenceID); err != nil {
			log.Printf("bot: refresh prompt for %s: %v", p.OccurrenceID, err)
		}
	}
	if status == attendance.StatusAbsent {
		h.answer(ctx, cb.ID, "❌ Absent")
	} else {
		h.answer(ctx, cb.ID, "✅ Present")
	}
	return nil
}

func (h *Handler) handleFinish(ctx context.Context, cb *chat.CallbackQuery, p Payload) error {
	_, err := h.att.Finish(ctx, p.OccurrenceID, cb.From.ID)
	if errors.Is(err, attendance.ErrOccurrenceNotFound) {
		h.answer(ctx, cb.ID, "❌ Lesson not found")
		return nil
	}
	if err != nil {
		h.answer(ctx, cb.ID, "❌ Could not finish")
		return fmt.Errorf("finish %s: %w", p.OccurrenceID, err)
	}
	metrics.InteractionFinishes.Inc()

	if cb.Message != nil {
		if err := h.showCompletion(ctx, cb, p.OccurrenceID); err != nil {
			log.Printf("bot: show completion for %s: %v", p.OccurrenceID, err)
		}
	}
	h.answer(ctx, cb.ID, "✅ Attendance saved")
	return nil
}

// refreshPrompt re-renders the control set after a toggle.
func (h *Handler) refreshPrompt(ctx context.Context, cb *chat.CallbackQuery, occurrenceID string) error {
	o, err := h.occ.Get(ctx, occurrenceID)
	if err != nil || o == nil {
		return err
	}
	roster, err := h.att.Roster(ctx, occurrenceID)
	if err != nil {
		return err
	}
	prompt, err := LoadPrompt(ctx, h.sched, o)
	if err != nil {
		return err
	}
	text, kb := RenderPrompt(prompt, roster, h.style)
	return h.client.EditMessage(ctx, cb.Message.Chat.ID, cb.Message.MessageID, text, kb)
}

// showCompletion replaces the prompt with the final summary.
func (h *Handler) showCompletion(ctx context.Context, cb *chat.CallbackQuery, occurrenceID string) error {
	o, err := h.occ.Get(ctx, occurrenceID)
	if err != nil || o == nil {
		return err
	}
	prompt, err := LoadPrompt(ctx, h.sched, o)
	if err != nil {
		return err
	}
	marks, err := h.att.Marks(ctx, occurrenceID)
	if err != nil {
		return err
	}
	return h.client.EditMessage(ctx, cb.Message.Chat.ID, cb.Message.MessageID, RenderCompletion(prompt, marks), nil)
}

func (h *Handler) answer(ctx context.Context, callbackID, text string) {
	if err := h.client.AnswerCallback(ctx, callbackID, text); err != nil {
		log.Printf("bot: answer callback: %v", err)
	}
}
