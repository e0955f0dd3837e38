// Package auth guards protected routes with a static bearer token.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKey is the gin context key holding the verified credential
const ContextKey = "credential"

var (
	// ErrMissingCredential means no usable bearer credential was presented
	ErrMissingCredential = errors.New("not authenticated")
	// ErrInvalidScheme means a credential was presented with a scheme other than Bearer
	ErrInvalidScheme = errors.New("invalid authentication credentials")
	// ErrInvalidCredential means the credential does not match the token
	ErrInvalidCredential = errors.New("invalid or missing authentication token")
)

// Gate checks bearer credentials against the configured token
type Gate struct {
	token string
}

// NewGate creates a gate for token
func NewGate(token string) *Gate {
	return &Gate{token: token}
}

// Verify returns the credential when it matches the token exactly.
// The comparison is constant-time.
func (g *Gate) Verify(credential string) (string, error) {
	if credential == "" {
		return "", ErrMissingCredential
	}
	if subtle.ConstantTimeCompare([]byte(credential), []byte(g.token)) != 1 {
		return "", ErrInvalidCredential
	}
	return credential, nil
}

// Authorize checks an Authorization header value. An empty header, scheme
// or credential counts as missing; a scheme other than Bearer (any case) is
// rejected before the token is compared.
func (g *Gate) Authorize(header string) (string, error) {
	scheme, credential, _ := strings.Cut(header, " ")
	if scheme == "" || credential == "" {
		return "", ErrMissingCredential
	}
	if !strings.EqualFold(scheme, "bearer") {
		return "", ErrInvalidScheme
	}
	return g.Verify(credential)
}

// Status maps a gate error to its HTTP status
func Status(err error) int {
	switch {
	case errors.Is(err, ErrMissingCredential), errors.Is(err, ErrInvalidScheme):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidCredential):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Middleware rejects requests without a valid bearer credential.
// Missing credentials get 403, wrong ones 401 with WWW-Authenticate.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, err := g.Authorize(c.GetHeader("Authorization"))
		if err != nil {
			status := Status(err)
			if status == http.StatusUnauthorized {
				c.Header("WWW-Authenticate", "Bearer")
			}
			c.AbortWithStatusJSON(status, gin.H{"detail": capitalize(err.Error())})
			return
		}

		c.Set(ContextKey, credential)
		c.Next()
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
