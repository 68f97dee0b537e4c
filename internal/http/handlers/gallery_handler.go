package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const msgGalleryFailure = "Unknown error"

// Gallery godoc
// @ID          gallery
// @Summary     Recently generated animations
// @Description Lists the 50 newest cached generations, newest first. Supports weak ETag via If-None-Match.
// @Tags        Generation
// @Produce     json
// @Success     200  {object}  handlers.GalleryResponse
// @Success     304  {string}  string "Not Modified"
// @Failure     500  {object}  handlers.GenerateResponse
// @Router      /gallery [get]
func (h *Handlers) Gallery(c *gin.Context) {
	ctx := c.Request.Context()

	if count, newest, err := h.gallerySvc.Stats(ctx); err == nil {
		var ts int64
		if !newest.IsZero() {
			ts = newest.UnixMilli()
		}
		if notModified(c, fmt.Sprintf(`W/"gallery:%d:%d"`, count, ts)) {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, err := h.gallerySvc.Recent(ctx)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = msgGalleryFailure
		}
		failSimple(c, http.StatusInternalServerError, msg)
		return
	}
	ok(c, http.StatusOK, GalleryResponse{Success: true, Videos: items})
}
