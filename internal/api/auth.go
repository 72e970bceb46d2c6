package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	studentKey = "student_id"
	issuer     = "speakquest"
)

// IssueToken mints an HS256 token whose subject is the student id.
func IssueToken(secret []byte, studentID string, ttl time.Duration, now time.Time) (string, error) {
	if studentID == "" {
		return "", errors.New("student id is required")
	}
	claims := jwt.RegisteredClaims{
		Subject:   studentID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// parseToken verifies a bearer token and returns its subject.
func parseToken(secret []byte, tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// RequireStudent authenticates the bearer token and stores the student
// id on the context.
func RequireStudent(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) <= 7 || !strings.EqualFold(header[:7], "Bearer ") {
			respondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing bearer token"))
			c.Abort()
			return
		}
		sub, err := parseToken(secret, strings.TrimSpace(header[7:]))
		if err != nil {
			respondError(c, http.StatusUnauthorized, "unauthorized", errors.New("invalid token"))
			c.Abort()
			return
		}
		c.Set(studentKey, sub)
		c.Next()
	}
}

func studentID(c *gin.Context) string {
	return c.GetString(studentKey)
}
