package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mediaforge-backend/internal/http/response"
	"github.com/yungbote/mediaforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/mediaforge-backend/internal/platform/identity"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

type AuthMiddleware struct {
	log      *logger.Logger
	verifier identity.Verifier
}

func NewAuthMiddleware(log *logger.Logger, verifier identity.Verifier) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("Middleware", "AuthMiddleware"), verifier: verifier}
}

// RequireAuth verifies the bearer credential and attaches the caller to the
// request context. EventSource clients cannot set headers, so ?token= is
// accepted too.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractTokenFromAll(c)
		if token == "" {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errMissingToken)
			c.Abort()
			return
		}
		ident, err := am.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			am.log.Debug("Token rejected", "error", err)
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errInvalidToken)
			c.Abort()
			return
		}
		if strings.TrimSpace(ident.UID) == "" {
			response.RespondError(c, http.StatusForbidden, "forbidden", errNoSubject)
			c.Abort()
			return
		}
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
			UserID: ident.UID,
			Email:  ident.Email,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractTokenFromAll(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}
