package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/windoze95/voicepack-api/internal/config"
	"github.com/windoze95/voicepack-api/internal/util"
)

var (
	// ErrInvalidToken is returned for unparseable, expired or mis-signed tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrWrongTokenType is returned when a token is presented for the other use.
	ErrWrongTokenType = errors.New("invalid token type")
	// ErrInvalidUserClaim is returned when the user_id claim is missing.
	ErrInvalidUserClaim = errors.New("invalid user_id in token")
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 30 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenPair is what signup, login and refresh hand back to a client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// IssueTokens signs a fresh access and refresh token for userID.
func IssueTokens(secret string, userID uint) (TokenPair, error) {
	now := time.Now()
	access, err := signToken(secret, userID, tokenTypeAccess, now, accessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := signToken(secret, userID, tokenTypeRefresh, now, refreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func signToken(secret string, userID uint, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"type":    tokenType,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// ParseAccessToken validates an HS256 access token and returns its user ID.
func ParseAccessToken(secret, tokenString string) (uint, error) {
	return parseToken(secret, tokenString, tokenTypeAccess)
}

// ParseRefreshToken is ParseAccessToken for refresh tokens.
func ParseRefreshToken(secret, tokenString string) (uint, error) {
	return parseToken(secret, tokenString, tokenTypeRefresh)
}

func parseToken(secret, tokenString, wantType string) (uint, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	if tokenType, _ := claims["type"].(string); tokenType != wantType {
		return 0, ErrWrongTokenType
	}

	// JSON numbers decode as float64
	idFloat, ok := claims["user_id"].(float64)
	if !ok || idFloat <= 0 {
		return 0, ErrInvalidUserClaim
	}
	return uint(idFloat), nil
}

// tokenFromRequest reads a bearer token from the Authorization header, falling
// back to the token query parameter browsers use for WebSocket upgrades.
func tokenFromRequest(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return strings.TrimSpace(c.Query("token"))
}

// VerifyTokenMiddleware verifies the JWT access token and sets user_id.
func VerifyTokenMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := ParseAccessToken(cfg.EnvVars.JwtSecretKey, tokenFromRequest(c))
		switch {
		case errors.Is(err, ErrInvalidUserClaim):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			c.Abort()
			return
		case err != nil:
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set(util.UserIDKey, userID)
		c.Next()
	}
}

// OptionalTokenMiddleware sets user_id when a valid access token is present
// and lets anonymous requests through untouched.
func OptionalTokenMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := tokenFromRequest(c); tokenString != "" {
			if userID, err := ParseAccessToken(cfg.EnvVars.JwtSecretKey, tokenString); err == nil {
				c.Set(util.UserIDKey, userID)
			}
		}
		c.Next()
	}
}
