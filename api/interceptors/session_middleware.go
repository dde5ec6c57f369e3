package interceptors

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-jose/go-jose/v3"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/types"
)

const (
	SessionCookieName = "__keyless-session"
	// response header carrying a freshly issued session token (for clients that don't keep cookies)
	SessionTokenHeader = "X-Session-Token"

	sessionIDKey        = "sessionId"
	sessionTokenKey     = "sessionToken"
	sessionAudience     = "keyless-session"
	defaultSessionHours = 14 * 24
)

type sessionClaims struct {
	Subject   string `json:"sub"`
	Audience  string `json:"aud"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

func sessionLifetime() time.Duration {
	hours := global.Conf.Server.SessionTokenHours
	if hours <= 0 {
		hours = defaultSessionHours
	}
	return time.Duration(hours) * time.Hour
}

// GenerateSessionToken signs a compact JWS naming the session
func GenerateSessionToken(serverPrivateKey ed25519.PrivateKey, sessionID string, lifetime time.Duration) (string, error) {
	now := time.Now()
	pl := sessionClaims{
		Subject:   sessionID,
		Audience:  sessionAudience,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(lifetime).Unix(),
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: serverPrivateKey}, nil)
	if err != nil {
		return "", err
	}
	plBytes, plErr := json.Marshal(pl)
	if plErr != nil {
		return "", plErr
	}
	object, err := signer.Sign(plBytes)
	if err != nil {
		return "", err
	}
	return object.CompactSerialize()
}

// ParseSessionToken verifies the token and returns the session id
func ParseSessionToken(token string, serverPublicKey ed25519.PublicKey) (string, error) {
	object, err := jose.ParseSigned(token)
	if err != nil {
		return "", types.ErrUnauthorized
	}
	payload, err := object.Verify(serverPublicKey)
	if err != nil {
		return "", types.ErrUnauthorized
	}
	var claims sessionClaims
	if uErr := json.Unmarshal(payload, &claims); uErr != nil {
		return "", types.ErrUnauthorized
	}
	if claims.Audience != sessionAudience || claims.ExpiresAt < time.Now().Unix() {
		return "", types.ErrUnauthorized
	}
	if _, pErr := uuid.Parse(claims.Subject); pErr != nil {
		return "", types.ErrUnauthorized
	}
	return claims.Subject, nil
}

// session token from the Authorization header (Bearer) or the session cookie
func sessionTokenFromRequest(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if cookie, err := c.Cookie(SessionCookieName); err == nil {
		return cookie
	}
	return ""
}

// SessionMiddleware requires a valid session token
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionTokenFromRequest(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "session token is missing"})
			return
		}
		sessionID, err := ParseSessionToken(token, global.PublicKey)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "invalid session token"})
			return
		}
		c.Set(sessionIDKey, sessionID)
		c.Next()
	}
}

// EnsureSessionMiddleware reuses a valid session or starts a new one (cookie + X-Session-Token header)
func EnsureSessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := sessionTokenFromRequest(c); token != "" {
			if sessionID, err := ParseSessionToken(token, global.PublicKey); err == nil {
				c.Set(sessionIDKey, sessionID)
				c.Next()
				return
			}
		}
		sessionID := uuid.NewString()
		lifetime := sessionLifetime()
		token, err := GenerateSessionToken(global.PrivateKey, sessionID, lifetime)
		if err != nil {
			level.Error(global.Logger).Log("msg", "failed to generate session token", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "failed to create session"})
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookieName, token, int(lifetime.Seconds()), "/", global.Conf.Server.SessionCookieDomain, global.Conf.Scheme == "https", true)
		c.Header(SessionTokenHeader, token)
		c.Set(sessionIDKey, sessionID)
		c.Set(sessionTokenKey, token)
		c.Next()
	}
}

// GetSessionID returns the session id set by one of the session middlewares
func GetSessionID(c *gin.Context) (string, error) {
	sessionID := c.GetString(sessionIDKey)
	if sessionID == "" {
		return "", errors.New("no session in context")
	}
	return sessionID, nil
}

// GetIssuedSessionToken returns the token when the current request started a new session
func GetIssuedSessionToken(c *gin.Context) string {
	return c.GetString(sessionTokenKey)
}
