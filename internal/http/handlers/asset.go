package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mediaforge-backend/internal/http/response"
	"github.com/yungbote/mediaforge-backend/internal/services"
)

type AssetHandler struct {
	assets *services.AssetService
}

func NewAssetHandler(assets *services.AssetService) *AssetHandler {
	return &AssetHandler{assets: assets}
}

// GET /api/jobs/:id/asset-url
func (h *AssetHandler) GetAssetURL(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	link, err := h.assets.AssetURL(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, link)
}

// GET /api/assets/:id redirects to a freshly signed URL.
func (h *AssetHandler) RedirectToAsset(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	link, err := h.assets.AssetURL(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusTemporaryRedirect, link.SignedURL)
}

// GET /api/jobs/:id/assets
func (h *AssetHandler) ListAssets(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	keys, err := h.assets.ListAssets(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"keys": keys})
}

// DELETE /api/jobs/:id/assets
func (h *AssetHandler) DeleteAssets(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	n, err := h.assets.DeleteAssets(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": n})
}
