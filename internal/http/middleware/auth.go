// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller's identity from an HS256 bearer token. The
// token's "sub" claim becomes the user id and its "email" claim, when present,
// is kept for billing. Requests without an Authorization header pass through
// unauthenticated; once Identity is installed the X-User-ID header is no
// longer trusted and RequireIdentity guards routes that need a real user.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Gin context keys populated by Identity.
const (
	CtxKeyUserID   = "userID"
	CtxKeyEmail    = "userEmail"
	ctxKeyEnforced = "auth.enforced"
)

// HeaderUserID carries a caller-asserted user id for unauthenticated
// development clients.
const HeaderUserID = "X-User-ID"

// AnonymousUser owns requests that carry no identity at all.
const AnonymousUser = "demo-user"

// ErrInvalidToken is returned by ParseIdentity for any token that fails
// signature, algorithm or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// IdentityClaims are the claims read from a bearer token.
type IdentityClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ParseIdentity verifies token with secret and returns its claims. The
// subject must be present.
func ParseIdentity(token string, secret []byte) (*IdentityClaims, error) {
	claims := &IdentityClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, err
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Identity verifies "Authorization: Bearer <jwt>" and stores the subject and
// email in the Gin context. A present but invalid token is rejected with 401.
func Identity(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		c.Set(ctxKeyEnforced, true)
		h := strings.TrimSpace(c.GetHeader("Authorization"))
		if h == "" {
			c.Next()
			return
		}
		scheme, token, found := strings.Cut(h, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortUnauthorized(c, "invalid authorization header")
			return
		}
		claims, err := ParseIdentity(strings.TrimSpace(token), key)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			abortUnauthorized(c, msg)
			return
		}
		c.Set(CtxKeyUserID, claims.Subject)
		if claims.Email != "" {
			c.Set(CtxKeyEmail, claims.Email)
		}
		c.Next()
	}
}

// RequireIdentity rejects requests that reached it without a verified token
// subject. It is a no-op on routes Identity does not cover.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool(ctxKeyEnforced) && verifiedUserID(c) == "" {
			abortUnauthorized(c, "authentication required")
			return
		}
		c.Next()
	}
}

// UserID returns the verified token subject, then the X-User-ID header, and
// finally AnonymousUser. The header is ignored behind Identity.
func UserID(c *gin.Context) string {
	if s := verifiedUserID(c); s != "" {
		return s
	}
	if c.Request != nil && !c.GetBool(ctxKeyEnforced) {
		if h := strings.TrimSpace(c.GetHeader(HeaderUserID)); h != "" {
			return h
		}
	}
	return AnonymousUser
}

func verifiedUserID(c *gin.Context) string {
	if v, ok := c.Get(CtxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// UserEmail returns the email claim of the verified token, if any.
func UserEmail(c *gin.Context) string {
	return c.GetString(CtxKeyEmail)
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
