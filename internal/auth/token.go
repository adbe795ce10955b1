package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated principal a connection acts as.
type Identity struct {
	UserId   int64
	Username string
}

// TokenVerifier is the credential collaborator consumed by the
// connection gate. The core never inspects token internals.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

type Claims struct {
	UserId   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies HMAC-signed tokens.
type JWTManager struct {
	signingKey []byte
	expiry     time.Duration
}

func NewJWTManager(signingKey []byte, expiry time.Duration) *JWTManager {
	return &JWTManager{
		signingKey: signingKey,
		expiry:     expiry,
	}
}

func (m *JWTManager) Issue(userId int64, username string) (string, error) {
	claims := Claims{
		UserId:   userId,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

func (m *JWTManager) Verify(raw string) (Identity, error) {
	token, err := jwt.ParseWithClaims(StripBearer(raw), &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.signingKey, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}

	return Identity{
		UserId:   claims.UserId,
		Username: claims.Username,
	}, nil
}

// StripBearer removes an optional "Bearer " scheme prefix from a raw
// credential.
func StripBearer(raw string) string {
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return raw[7:]
	}
	return raw
}
