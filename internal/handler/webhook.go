package handler

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"classping/internal/chat"
	"classping/internal/queue"
)

// webhookSecretHeader carries the shared secret set when the webhook was
// registered with the bot API.
const webhookSecretHeader = "X-Bot-Api-Secret-Token"

// ChatWebhook ingests one bot-API update. The body is validated just enough
// to be an update, then handed to the worker through the queue; all state
// machine work happens there. Always answers 200 for parseable updates so
// the bot API does not re-deliver what we already queued.
func (h *Handler) ChatWebhook(c *gin.Context) {
	if h.cfg.ChatWebhookSecret != "" && c.GetHeader(webhookSecretHeader) != h.cfg.ChatWebhookSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bad webhook secret"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	var upd chat.Update
	if err := json.Unmarshal(body, &upd); err != nil || upd.UpdateID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not an update"})
		return
	}
	if err := h.q.Publish(c.Request.Context(), queue.Message{Type: queue.TypeChatUpdate, Body: body}); err != nil {
		// The bot API retries on non-2xx, so a queue hiccup is not lost.
		log.Printf("handler: queue publish for update %d failed: %v", upd.UpdateID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}
