package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// AdminContextKey holds the principal that passed AdminAuth.
const AdminContextKey = "admin_principal"

// AdminCredentials lists every accepted way to authenticate an operator.
// Empty fields disable that method.
type AdminCredentials struct {
	CronSecret string
	JWTSecret  string
	Username   string
	Password   string
}

// Configured reports whether at least one method is enabled.
func (a AdminCredentials) Configured() bool {
	return a.CronSecret != "" || a.JWTSecret != "" || (a.Username != "" && a.Password != "")
}

// AdminAuth accepts a bearer shared secret, a bearer HS256 JWT whose role
// claim is "admin", or HTTP basic credentials. With nothing configured every
// request is rejected.
func AdminAuth(creds AdminCredentials) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := creds.authenticate(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "code": "UNAUTHORIZED"})
			return
		}
		c.Set(AdminContextKey, principal)
		c.Next()
	}
}

func (a AdminCredentials) authenticate(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		token = strings.TrimSpace(token)
		if a.CronSecret != "" && secureEqual(token, a.CronSecret) {
			return "cron", true
		}
		if a.JWTSecret != "" {
			if sub, err := parseAdminToken(token, a.JWTSecret); err == nil {
				return sub, true
			}
		}
		return "", false
	}

	if a.Username == "" || a.Password == "" {
		return "", false
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return "", false
	}
	// Evaluate both comparisons so timing does not reveal which one failed.
	userOK := secureEqual(user, a.Username)
	passOK := secureEqual(pass, a.Password)
	if userOK && passOK {
		return user, true
	}
	return "", false
}

func parseAdminToken(tokenStr, secret string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || token == nil || !token.Valid {
		return "", fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	if role, _ := claims["role"].(string); role != "admin" {
		return "", fmt.Errorf("admin role required")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		sub = "admin"
	}
	return sub, nil
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
