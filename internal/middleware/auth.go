package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// The identity provider boundary: requests carry a signed bearer token,
// this middleware verifies it and exposes the subject claim as the user
// id. Everything downstream trusts that value verbatim as the owner.

const userIDKey = "user_id"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Identity verifies JWTs signed with an HMAC secret.
type Identity struct {
	secret []byte
}

func NewIdentity(secret string) *Identity {
	return &Identity{secret: []byte(secret)}
}

// Middleware rejects requests without a valid token and stores the
// verified subject in the gin context for handlers.
func (id *Identity) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := id.authenticate(c.Request)
		if err != nil {
			status := "missing_token"
			if errors.Is(err, ErrInvalidToken) {
				status = "invalid_token"
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   status,
				"message": "A valid bearer token is required",
			})
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func (id *Identity) authenticate(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", ErrMissingToken
	}
	raw := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return id.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}

	return sub, nil
}

// IssueToken mints a token for a user id. Used by tests and by
// operators provisioning service credentials.
func (id *Identity) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return token.SignedString(id.secret)
}

// UserIDFromContext extracts the verified user id set by Middleware.
func UserIDFromContext(c *gin.Context) (string, bool) {
	v, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}
	userID, ok := v.(string)
	return userID, ok && userID != ""
}
