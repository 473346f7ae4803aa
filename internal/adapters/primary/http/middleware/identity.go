package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"

	"model-gateway-service/internal/core/domain"
)

const (
	ContextUserID = "user_id"
	bearerPrefix  = "Bearer "
)

// Identity authenticates the caller with an HS256 bearer token issued by the
// identity provider and stores the token subject as the user id. An empty
// secret rejects every request.
func Identity(secret, issuer string) gin.HandlerFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		raw, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok || secret == "" {
			abortUnauthorized(c)
			return
		}

		claims := &jwt.RegisteredClaims{}
		_, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || claims.Subject == "" {
			if err == nil {
				err = errors.New("token has no subject")
			}
			log.WithError(err).WithField("request_id", c.GetString(ContextRequestID)).Debug("rejected identity token")
			abortUnauthorized(c)
			return
		}

		c.Set(ContextUserID, claims.Subject)
		c.Next()
	}
}

// UserID returns the caller set by Identity.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   domain.ErrMissingIdentity.Error(),
	})
}
