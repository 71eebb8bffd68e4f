package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"mapin/internal/deeplink"
)

// LinkHTTP resolves deep-link URIs for the mobile client.
type LinkHTTP interface {
	Resolve(c *gin.Context)
}

type LinkHandler struct{}

// Resolve maps a mapin:// URI to its target screen. Anything unrecognized
// resolves to the map so the client always has somewhere to land.
func (LinkHandler) Resolve(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("uri"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uri is required"})
		return
	}
	c.JSON(http.StatusOK, deeplink.Resolve(raw))
}

var _ LinkHTTP = LinkHandler{}
