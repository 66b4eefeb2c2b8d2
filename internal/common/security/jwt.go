package security

import (
	"errors"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

var TokenAuth *jwtauth.JWTAuth

// InitJWT configures the HS256 verifier shared by the router and the token minting tool.
func InitJWT(secret []byte) {
	TokenAuth = jwtauth.New("HS256", secret, nil)
}

// GenerateToken mints a bearer token for userID. Tokens are normally issued by the
// identity provider; this is used by problemctl and tests.
func GenerateToken(userID string, ttl time.Duration) (string, error) {
	if TokenAuth == nil {
		return "", errors.New("jwt not initialized")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     userID,
		"user_id": userID,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	}
	_, tokenString, err := TokenAuth.Encode(claims)
	return tokenString, err
}

// GetUserIDFromClaims reads the caller id from "user_id", falling back to "sub".
func GetUserIDFromClaims(claims jwt.MapClaims) (string, error) {
	if id, ok := claims["user_id"].(string); ok && strings.TrimSpace(id) != "" {
		return id, nil
	}
	if sub, ok := claims["sub"].(string); ok && strings.TrimSpace(sub) != "" {
		return sub, nil
	}
	return "", errors.New("user_id claim is missing or not a string")
}
