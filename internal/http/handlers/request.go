package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mediaforge-backend/internal/platform/apierr"
	"github.com/yungbote/mediaforge-backend/internal/platform/ctxutil"
)

// requestUser returns the authenticated caller id, or writes 401.
func requestUser(c *gin.Context) (string, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || strings.TrimSpace(rd.UserID) == "" {
		respondErr(c, apierr.Unauthorized("unauthorized", errNotAuthenticated))
		return "", false
	}
	return rd.UserID, true
}

// queryLimit parses ?limit=; absent or invalid yields 0 (service default).
func queryLimit(c *gin.Context) int {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
