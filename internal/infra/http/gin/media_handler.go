package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"mapin/internal/app/dto"
	"mapin/internal/infra/obs"
	"mapin/internal/infra/storage/s3"
	"mapin/internal/media"
)

// maxUploadBytes bounds a single media upload.
const maxUploadBytes = 64 << 20

// MediaHTTP exposes media upload endpoints.
type MediaHTTP interface {
	Upload(c *gin.Context)
}

type MediaHandler struct {
	Uploader s3.Uploader
	Logger   *slog.Logger
}

// Upload streams the request body into object storage under a key derived
// from the uploader and the Content-Type, and returns the public URL.
func (h MediaHandler) Upload(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	if h.Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "media storage unavailable"})
		return
	}
	contentType := c.ContentType()
	key := media.ObjectKey(p.ID, contentType)
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	url, err := h.Uploader.Upload(c.Request.Context(), key, body, contentType)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("media upload failed", "error", err, "user_id", p.ID, "key", key)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	kind := media.KindForMIME(contentType)
	obs.MediaUploads.WithLabelValues(string(kind)).Inc()
	c.JSON(http.StatusCreated, dto.UploadResponse{URL: url, Key: key, Kind: string(kind)})
}

var _ MediaHTTP = (*MediaHandler)(nil)
