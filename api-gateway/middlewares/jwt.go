package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/vm-marketplace/services/common/auth"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
)

// TokenParser is satisfied by *auth.TokenManager.
type TokenParser interface {
	Parse(tokenStr, expectedType string) (*auth.Claims, error)
}

// Authenticator validates access tokens from the Authorization header or the
// access token cookie.
type Authenticator struct {
	tokens TokenParser
	cookie string
}

func NewAuthenticator(tokens TokenParser, cookie string) *Authenticator {
	return &Authenticator{tokens: tokens, cookie: cookie}
}

// StripIdentity removes identity headers supplied by the client. Only the
// gateway may set them.
func StripIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Header.Del(middleware.HeaderUserID)
		c.Request.Header.Del(middleware.HeaderUserEmail)
		c.Request.Header.Del(middleware.HeaderUserRole)
		c.Next()
	}
}

var errNoToken = errors.New("token is required")

func (a *Authenticator) token(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return "", auth.ErrInvalidToken
		}
		return strings.TrimSpace(header[len("Bearer "):]), nil
	}
	if a.cookie != "" {
		if v, err := c.Cookie(a.cookie); err == nil && v != "" {
			return v, nil
		}
	}
	return "", errNoToken
}

// Authenticate sets the identity context keys from a valid access token.
func (a *Authenticator) Authenticate(c *gin.Context) error {
	raw, err := a.token(c)
	if err != nil {
		return err
	}
	claims, err := a.tokens.Parse(raw, auth.TypeAccess)
	if err != nil {
		return err
	}
	role := claims.Role
	if role == "" {
		role = middleware.RoleUser
	}
	c.Set(middleware.ContextUserID, claims.Subject)
	c.Set(middleware.ContextEmail, claims.Email)
	c.Set(middleware.ContextRole, role)
	return nil
}

// Reject aborts with 401 and a message matching err.
func Reject(c *gin.Context, err error) {
	msg := "Invalid or expired token"
	switch {
	case errors.Is(err, errNoToken):
		msg = "Token is required"
	case errors.Is(err, auth.ErrWrongType):
		msg = "Invalid token type"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
