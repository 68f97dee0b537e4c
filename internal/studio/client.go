package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbourn/animai-studio/internal/domain"
)

// DefaultTimeout bounds a single generate call. Generations routinely take
// minutes and a cache hit alone is delayed by a minute.
const DefaultTimeout = 10 * time.Minute

// Messages shown when a generation fails.
const (
	MsgRequestFailed = "Failed to process your request. Please try again."
	MsgGenericError  = "An error occurred"
)

const maxReplyBytes = 4 << 20

// ReplyError is a failed generation as presented to the user. Message is
// display text; Err carries the cause when the request itself failed.
type ReplyError struct {
	Message string
	Status  int
	Err     error
}

func (e *ReplyError) Error() string { return e.Message }

func (e *ReplyError) Unwrap() error { return e.Err }

// Reply is a successful generation.
type Reply struct {
	Text     string
	VideoURL string
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	BaseURL string        // server root, e.g. http://localhost:8080
	APIBase string        // chat API prefix, default /api/v1
	UserID  string        // sent as X-User-ID when Token is empty
	Token   string        // bearer token
	Timeout time.Duration // per-request timeout, default DefaultTimeout
}

// Client talks to the studio server. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiBase string
	userID  string
	token   string
	http    *http.Client
}

// NewClient builds a Client with a traced transport.
func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	apiBase := strings.TrimSpace(opts.APIBase)
	if apiBase == "" {
		apiBase = "/api/v1"
	}
	if !strings.HasPrefix(apiBase, "/") {
		apiBase = "/" + apiBase
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiBase: strings.TrimRight(apiBase, "/"),
		userID:  opts.UserID,
		token:   opts.Token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Generate submits prompt to POST /generate. Every failure is a *ReplyError:
// transport errors and non-2xx statuses carry MsgRequestFailed, and a
// {success:false} body carries the server's message.
func (c *Client) Generate(ctx context.Context, prompt string) (Reply, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return Reply{}, &ReplyError{Message: MsgRequestFailed, Err: err}
	}
	status, raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/generate", body, "")
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("generate request failed")
		return Reply{}, &ReplyError{Message: MsgRequestFailed, Err: err}
	}
	if status < 200 || status > 299 {
		return Reply{}, &ReplyError{
			Message: MsgRequestFailed,
			Status:  status,
			Err:     fmt.Errorf("server returned status %d", status),
		}
	}
	return decodeGenerate(raw)
}

func decodeGenerate(raw []byte) (Reply, error) {
	if !gjson.ValidBytes(raw) {
		return Reply{}, &ReplyError{Message: MsgRequestFailed, Err: errors.New("malformed response body")}
	}
	res := gjson.ParseBytes(raw)
	if !res.Get("success").Bool() {
		msg := res.Get("error").String()
		if msg == "" {
			msg = MsgGenericError
		}
		return Reply{}, &ReplyError{Message: msg}
	}
	text := res.Get("text").String()
	if text == "" {
		text = domain.DefaultSuccessText
	}
	return Reply{Text: text, VideoURL: res.Get("videoUrl").String()}, nil
}

// Gallery fetches the most recent generations.
func (c *Client) Gallery(ctx context.Context) ([]domain.PromptCache, error) {
	status, raw, err := c.do(ctx, http.MethodGet, c.baseURL+"/gallery", nil, "")
	if err != nil {
		return nil, err
	}
	res := gjson.ParseBytes(raw)
	if status != http.StatusOK || !res.Get("success").Bool() {
		msg := res.Get("error").String()
		if msg == "" {
			msg = MsgGenericError
		}
		return nil, fmt.Errorf("gallery: %s", msg)
	}
	var out []domain.PromptCache
	if err := json.Unmarshal([]byte(res.Get("videos").Raw), &out); err != nil {
		return nil, fmt.Errorf("gallery: decode: %w", err)
	}
	return out, nil
}

// CreateChat opens a new chat session.
func (c *Client) CreateChat(ctx context.Context, title string) (domain.Chat, error) {
	body, _ := json.Marshal(map[string]string{"title": title})
	var chat domain.Chat
	if err := c.api(ctx, http.MethodPost, "/chats", body, "", http.StatusCreated, &chat); err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

// SaveMessage appends m to chatID. The request carries a fresh
// Idempotency-Key so a retried call is not stored twice.
func (c *Client) SaveMessage(ctx context.Context, chatID string, m domain.Message) (domain.Message, error) {
	body, _ := json.Marshal(map[string]any{
		"text":        m.Text,
		"video_url":   m.VideoURL,
		"is_response": m.IsResponse,
		"is_error":    m.IsError,
	})
	var out struct {
		Message domain.Message `json:"message"`
	}
	path := "/chats/" + chatID + "/messages"
	if err := c.api(ctx, http.MethodPost, path, body, uuid.NewString(), 0, &out); err != nil {
		return domain.Message{}, err
	}
	return out.Message, nil
}

// ListMessages returns up to pageSize messages of chatID, oldest first.
func (c *Client) ListMessages(ctx context.Context, chatID string, pageSize int) ([]domain.Message, error) {
	var out struct {
		Messages []domain.Message `json:"messages"`
	}
	path := fmt.Sprintf("/chats/%s/messages?page=1&page_size=%d", chatID, pageSize)
	if err := c.api(ctx, http.MethodGet, path, nil, "", http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// APIError is a non-success response from the chat API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

// api calls the chat API and decodes the JSON reply into out. want == 0
// accepts any 2xx status.
func (c *Client) api(ctx context.Context, method, path string, body []byte, idemKey string, want int, out any) error {
	status, raw, err := c.do(ctx, method, c.baseURL+c.apiBase+path, body, idemKey)
	if err != nil {
		return err
	}
	okStatus := status >= 200 && status <= 299
	if want != 0 {
		okStatus = status == want
	}
	if !okStatus {
		res := gjson.ParseBytes(raw)
		return &APIError{Status: status, Code: res.Get("code").String(), Message: res.Get("message").String()}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, idemKey string) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.userID != "":
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}
