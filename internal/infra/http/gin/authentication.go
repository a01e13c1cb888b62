package ginserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	domainauth "booking-service/internal/domain/auth"
)

const (
	principalContextKey = "booking.principal"
	userIDContextKey    = "user_id"
)

// Claims are issued by the identity service. The subject is the user id.
type Claims struct {
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	IsHost bool   `json:"is_host"`
	jwt.RegisteredClaims
}

// AuthMiddleware resolves an HS256 bearer token into a principal. Requests without a token
// pass through anonymous; routes that need a caller reject them later.
type AuthMiddleware struct {
	Secret []byte
	Logger *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || len(m.Secret) == 0 {
		c.Next()
		return
	}
	p, err := ParseToken(m.Secret, token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}
	setPrincipal(c, p)
	c.Next()
}

// ParseToken verifies signature and expiry and maps the claims to a principal.
func ParseToken(secret []byte, token string) (domainauth.Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return domainauth.Principal{}, err
	}
	if !parsed.Valid {
		return domainauth.Principal{}, errors.New("token invalid")
	}
	p := domainauth.Principal{
		ID:     strings.TrimSpace(claims.Subject),
		IsHost: claims.IsHost,
		Name:   claims.Name,
		Email:  claims.Email,
	}
	if !p.Valid() {
		return domainauth.Principal{}, errors.New("token has no subject")
	}
	return p, nil
}

// SignToken issues a token the middleware accepts. Used by tests and local tooling.
func SignToken(secret []byte, p domainauth.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:   p.Name,
		Email:  p.Email,
		IsHost: p.IsHost,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func setPrincipal(c *gin.Context, p domainauth.Principal) {
	c.Set(principalContextKey, p)
	c.Set(userIDContextKey, p.ID)
	c.Request = c.Request.WithContext(domainauth.WithPrincipal(c.Request.Context(), p))
}

func currentPrincipal(c *gin.Context) (domainauth.Principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return domainauth.Principal{}, false
	}
	p, ok := val.(domainauth.Principal)
	return p, ok
}

func requirePrincipal(c *gin.Context) (domainauth.Principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return domainauth.Principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
