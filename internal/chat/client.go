// Package chat wraps the bot-API HTTP surface used to deliver attendance
// prompts and receive interaction callbacks.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// InlineButton is one tappable control under a message.
type InlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// Keyboard is the button grid attached to a message, row-major.
type Keyboard [][]InlineButton

// User identifies the chat account behind an interaction.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

// Chat identifies a conversation.
type Chat struct {
	ID int64 `json:"id"`
}

// Message is the subset of a chat message the core needs.
type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

// CallbackQuery is an inbound button tap.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data"`
}

// Update is one inbound webhook event.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Client calls the chat bot API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client with configurable timeout.
func New(baseURL, token string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) endpoint(method string) string {
	return c.BaseURL + "/bot" + c.Token + "/" + method
}

// call posts a method payload and decodes the standard ok/result envelope
// into out when out is non-nil.
func (c *Client) call(ctx context.Context, method string, payload map[string]interface{}, out interface{}) error {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("chat service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat service error %s: %s", resp.Status, string(bodyBytes))
	}

	var envelope struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description,omitempty"`
		Result      json.RawMessage `json:"result,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !envelope.OK {
		return fmt.Errorf("chat service rejected %s: %s", method, envelope.Description)
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}
	return nil
}

// SendMessage delivers text with an optional keyboard and returns the new
// message id.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, kb Keyboard) (int64, error) {
	if c.Skip {
		log.Printf("chat: skip mode, would send to %d: %s", chatID, text)
		return 1, nil
	}
	if chatID == 0 {
		return 0, fmt.Errorf("chat id required")
	}

	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if len(kb) > 0 {
		payload["reply_markup"] = map[string]interface{}{"inline_keyboard": kb}
	}

	var out struct {
		MessageID int64 `json:"message_id"`
	}
	if err := c.call(ctx, "sendMessage", payload, &out); err != nil {
		return 0, err
	}
	return out.MessageID, nil
}

// EditMessage replaces the text and keyboard of a previously sent message.
func (c *Client) EditMessage(ctx context.Context, chatID, messageID int64, text string, kb Keyboard) error {
	if c.Skip {
		log.Printf("chat: skip mode, would edit %d/%d: %s", chatID, messageID, text)
		return nil
	}

	payload := map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	if len(kb) > 0 {
		payload["reply_markup"] = map[string]interface{}{"inline_keyboard": kb}
	}
	return c.call(ctx, "editMessageText", payload, nil)
}

// AnswerCallback acknowledges a button tap with a short notice.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if c.Skip {
		return nil
	}

	payload := map[string]interface{}{
		"callback_query_id": callbackID,
	}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

// Health checks if the bot API is reachable and the token valid.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("getMe"), nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("chat service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("chat service unhealthy: %s", resp.Status)
	}

	return nil
}
