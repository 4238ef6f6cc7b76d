package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"handoff-service/internal/apperr"
	"handoff-service/internal/service"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
)

const (
	principalKey   = "principal"
	roleSuperAdmin = "superadmin"
)

// Claims are issued by the external auth system. Subject is the numeric
// user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.StandardClaims
}

// authenticate resolves the bearer token, if any, into a principal. Requests
// without a token continue anonymously; an invalid token is rejected.
func authenticate(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Set(principalKey, service.Principal{})
			c.Next()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == header || token == "" {
			abortUnauthenticated(c)
			return
		}

		p, err := parseToken(secret, token)
		if err != nil {
			abortUnauthenticated(c)
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

func parseToken(secret []byte, raw string) (service.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return service.Principal{}, err
	}
	if !token.Valid {
		return service.Principal{}, errors.New("invalid token")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return service.Principal{}, errors.New("token subject is not a user id")
	}

	return service.Principal{
		UserID:     userID,
		SuperAdmin: claims.Role == roleSuperAdmin,
	}, nil
}

func abortUnauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apperr.MsgAuthRequired})
}

func principal(c *gin.Context) service.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(service.Principal); ok {
			return p
		}
	}
	return service.Principal{}
}
