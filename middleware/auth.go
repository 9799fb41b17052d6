package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"Bazaar/pkg/token"
)

const (
	ContextUserIDKey = "current_user_id"
	ContextJTIKey    = "current_jti"
	ContextClaimsKey = "current_claims"
)

var ErrTokenRevoked = errors.New("token has been revoked")

// Authenticator validates bearer tokens for HTTP requests and websocket
// upgrades alike.
type Authenticator struct {
	tokens  *token.Manager
	revoked token.RevocationStore
}

func NewAuthenticator(tokens *token.Manager, revoked token.RevocationStore) *Authenticator {
	return &Authenticator{tokens: tokens, revoked: revoked}
}

// Authenticate parses raw and rejects it when it was revoked by logout.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (*token.Claims, error) {
	claims, err := a.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	if a.revoked != nil {
		revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func abortFail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"status": "fail", "message": message})
}

// UnauthorizedMessage is the client-facing reason for a failed Authenticate.
func UnauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, token.ErrExpiredToken):
		return "Token has expired"
	case errors.Is(err, ErrTokenRevoked):
		return "Token has been revoked (logout)"
	default:
		return "Invalid token"
	}
}

func AuthMiddleware(auth *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortFail(c, http.StatusUnauthorized, "Missing authorization header")
			return
		}
		raw, ok := BearerToken(header)
		if !ok {
			abortFail(c, http.StatusUnauthorized, "Invalid authorization header")
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), raw)
		if err != nil {
			LoggerFrom(c).Debug("rejected token")
			abortFail(c, http.StatusUnauthorized, UnauthorizedMessage(err))
			return
		}

		c.Set(ContextUserIDKey, claims.UserID())
		c.Set(ContextJTIKey, claims.ID)
		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id, or "" outside AuthMiddleware.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}

func CurrentClaims(c *gin.Context) *token.Claims {
	v, ok := c.Get(ContextClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*token.Claims)
	return claims
}
