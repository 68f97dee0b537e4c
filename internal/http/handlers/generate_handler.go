// Generation HTTP handler.
//
//   - POST /generate   (prompt in, animation URL out)
//
// The endpoint keeps the {success, text, videoUrl, error} envelope the web
// client was written against instead of ErrorResponse.
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

// Messages returned by POST /generate.
const (
	msgInvalidBody     = "Invalid request body"
	msgInvalidPrompt   = "Invalid prompt provided"
	msgGenerateFailure = "Failed to generate animation. Please try again."
)

// GenerateRequest documents the POST /generate payload.
type GenerateRequest struct {
	Prompt string `json:"prompt" example:"A red ball bouncing on a wooden floor"`
}

// readPrompt extracts the prompt from a raw JSON body. The prompt is returned
// verbatim; it is the cache key.
func readPrompt(body []byte) (string, string) {
	if !gjson.ValidBytes(body) {
		return "", msgInvalidBody
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return "", msgInvalidBody
	}
	p := root.Get("prompt")
	if p.Type != gjson.String || p.Str == "" {
		return "", msgInvalidPrompt
	}
	return p.Str, ""
}

// Generate godoc
// @ID          generateAnimation
// @Summary     Generate an animation from a prompt
// @Description Returns a cached animation for byte-identical prompts (after a fixed delay),
// @Description otherwise runs the generation workflow and caches the result.
// @Tags        Generation
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.GenerateRequest   true  "Prompt"
// @Success     200   {object}  handlers.GenerateResponse  "Generated or cached animation"
// @Failure     400   {object}  handlers.GenerateResponse  "Invalid body or prompt"
// @Failure     429   {object}  handlers.GenerateResponse  "Too many requests"
// @Failure     500   {object}  handlers.GenerateResponse  "Generation failed"
// @Router      /generate [post]
func (h *Handlers) Generate(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		failSimple(c, http.StatusBadRequest, msgInvalidBody)
		return
	}
	prompt, bad := readPrompt(body)
	if bad != "" {
		failSimple(c, http.StatusBadRequest, bad)
		return
	}

	out, err := h.genSvc.Generate(c.Request.Context(), prompt)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = msgGenerateFailure
		}
		failSimple(c, http.StatusInternalServerError, msg)
		return
	}

	if out.Cached {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	ok(c, http.StatusOK, GenerateResponse{Success: true, Text: out.Text, VideoURL: out.VideoURL})
}
