// Package workflow talks to the external workflow-orchestration service that
// turns a prompt into an animation, and normalizes its loosely-typed replies.
//
// The upstream contract is a single blocking call:
//
//	POST {base}/runs/wait
//	X-Api-Key: <key>
//	{"assistant_id": "<id>", "input": {"prompt": "<prompt>"}}
//
// The reply may be a JSON object, a JSON string holding an encoded object, or
// plain text; see Classify and Extract.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tbourn/animai-studio/internal/config"
	"github.com/tbourn/animai-studio/internal/domain"
)

const maxResponseBytes = 8 << 20

// UpstreamError reports a failed workflow call. It is fatal for the request.
type UpstreamError struct {
	Status int    // HTTP status, 0 when the request never completed
	Body   string // truncated response body
	Err    error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil:
		return "workflow request failed: " + e.Err.Error()
	case e.Body != "":
		return fmt.Sprintf("workflow returned status %d: %s", e.Status, e.Body)
	default:
		return fmt.Sprintf("workflow returned status %d", e.Status)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Client invokes the remote workflow. It is safe for concurrent use.
type Client struct {
	BaseURL     string
	APIKey      string
	AssistantID string
	HTTP        *http.Client
}

// New builds a Client from configuration. The HTTP transport is traced.
func New(cfg config.GenerationConfig) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(cfg.APIURL, "/"),
		APIKey:      cfg.APIKey,
		AssistantID: cfg.AssistantID,
		HTTP: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type runInput struct {
	Prompt string `json:"prompt"`
}

type runRequest struct {
	AssistantID string   `json:"assistant_id"`
	Input       runInput `json:"input"`
}

// Invoke runs the assistant on prompt and waits for its final output.
// There is no retry.
func (c *Client) Invoke(ctx context.Context, prompt string) (domain.GenerationResult, error) {
	ctx, span := otel.Tracer("workflow").Start(ctx, "workflow.Invoke")
	defer span.End()
	span.SetAttributes(attribute.String("workflow.assistant_id", c.AssistantID))

	body, err := json.Marshal(runRequest{AssistantID: c.AssistantID, Input: runInput{Prompt: prompt}})
	if err != nil {
		return domain.GenerationResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/runs/wait", bytes.NewReader(body))
	if err != nil {
		return domain.GenerationResult{}, &UpstreamError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-Api-Key", c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return domain.GenerationResult{}, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return domain.GenerationResult{}, &UpstreamError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, resp.Status)
		return domain.GenerationResult{}, &UpstreamError{Status: resp.StatusCode, Body: snippet(raw)}
	}

	p := Classify(raw)
	span.SetAttributes(attribute.String("workflow.payload_kind", p.Kind.String()))
	return Extract(p), nil
}

func snippet(b []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
