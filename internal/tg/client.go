package tg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// ChatID is a numeric chat id or an "@channelusername".
type ChatID string

func ChatIDFromInt(id int64) ChatID { return ChatID(strconv.FormatInt(id, 10)) }

type Client struct {
	baseURL string
	hc      *http.Client
	// pollHC outlives the long-poll server wait.
	pollHC *http.Client
}

type Option func(*Client)

// WithAPIBase points the client at another Bot API server.
func WithAPIBase(base string) Option {
	return func(c *Client) {
		token := c.baseURL[strings.LastIndex(c.baseURL, "/bot")+len("/bot"):]
		c.baseURL = strings.TrimRight(base, "/") + "/bot" + token
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.hc.Timeout = d
		}
	}
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: fmt.Sprintf("%s/bot%s", defaultAPIBase, token),
		hc:      &http.Client{Timeout: 9 * time.Second},
		pollHC:  &http.Client{Timeout: (pollTimeoutSeconds + 15) * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// APIError is a non-2xx or ok=false answer from the Bot API.
type APIError struct {
	Method      string
	Status      int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api %s status %d: %s", e.Method, e.Status, e.Description)
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

func NewInlineKeyboardMarkup(rows [][]InlineKeyboardButton) InlineKeyboardMarkup {
	return InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error {
	payload := map[string]any{"callback_query_id": callbackQueryID}
	if text != "" {
		payload["text"] = text
		payload["show_alert"] = false
	}
	return c.post(ctx, "/answerCallbackQuery", payload)
}

func (c *Client) DeleteMessage(ctx context.Context, chatID ChatID, messageID int) error {
	return c.post(ctx, "/deleteMessage", map[string]any{"chat_id": chatID, "message_id": messageID})
}

type SendMessageRequest struct {
	ChatID                ChatID                `json:"chat_id"`
	Text                  string                `json:"text"`
	ParseMode             string                `json:"parse_mode,omitempty"`
	ReplyMarkup           *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	ReplyToMessageID      int                   `json:"reply_to_message_id,omitempty"`
	DisableWebPagePreview bool                  `json:"disable_web_page_preview,omitempty"`
}

func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) error {
	return c.post(ctx, "/sendMessage", req)
}

type SendPhotoRequest struct {
	ChatID           ChatID                `json:"chat_id"`
	Photo            string                `json:"photo"`
	Caption          string                `json:"caption,omitempty"`
	ParseMode        string                `json:"parse_mode,omitempty"`
	ReplyMarkup      *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	ReplyToMessageID int                   `json:"reply_to_message_id,omitempty"`
}

func (c *Client) SendPhoto(ctx context.Context, req SendPhotoRequest) error {
	return c.post(ctx, "/sendPhoto", req)
}

type EditMessageTextRequest struct {
	ChatID      ChatID                `json:"chat_id"`
	MessageID   int                   `json:"message_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

func (c *Client) EditMessageText(ctx context.Context, req EditMessageTextRequest) error {
	return c.post(ctx, "/editMessageText", req)
}

// GetUpdates long-polls for updates; timeout is the server-side wait in seconds.
func (c *Client) GetUpdates(ctx context.Context, offset int, timeout int) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         timeout,
		"allowed_updates": []string{"message", "callback_query"},
	}
	raw, err := c.do(ctx, c.pollHC, "/getUpdates", payload)
	if err != nil {
		return nil, err
	}
	var out []Update
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return out, nil
}

func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	return c.post(ctx, "/deleteWebhook", map[string]any{"drop_pending_updates": dropPending})
}

func (c *Client) post(ctx context.Context, method string, payload any) error {
	_, err := c.do(ctx, c.hc, method, payload)
	return err
}

func (c *Client) do(ctx context.Context, hc *http.Client, method string, payload any) (json.RawMessage, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram api %s: encode: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		// The request URL carries the bot token.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, fmt.Errorf("telegram api %s: %w", method, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Ok          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		Description string          `json:"description"`
		Parameters  struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	_ = json.Unmarshal(body, &wrapper)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !wrapper.Ok {
		desc := wrapper.Description
		if desc == "" {
			desc = strings.TrimSpace(string(body[:min(len(body), 4096)]))
		}
		return nil, &APIError{Method: method, Status: resp.StatusCode, Description: desc, RetryAfter: wrapper.Parameters.RetryAfter}
	}
	return wrapper.Result, nil
}
