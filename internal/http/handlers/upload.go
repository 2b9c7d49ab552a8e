package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mediaforge-backend/internal/http/response"
	"github.com/yungbote/mediaforge-backend/internal/platform/apierr"
	"github.com/yungbote/mediaforge-backend/internal/services"
)

type UploadHandler struct {
	uploads *services.UploadService
}

func NewUploadHandler(uploads *services.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// POST /api/upload-to-gcs (multipart field "file")
func (h *UploadHandler) UploadFile(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploads.MaxBytes())
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondErr(c, apierr.New(http.StatusRequestEntityTooLarge, "upload_too_large", err))
			return
		}
		respondErr(c, apierr.BadRequest("missing_file", err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondErr(c, apierr.BadRequest("invalid_file", err))
		return
	}
	defer f.Close()

	out, err := h.uploads.Upload(c.Request.Context(), userID, fh.Filename, f, fh.Header.Get("Content-Type"))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondCreated(c, out)
}
