package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lishuceo/draw-and-guess/domain"
)

// guestClaims carries the guest identity. Fields must be exported for JSON serialization.
type guestClaims struct {
	Id   string `json:"id"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	secretKey []byte
	maxAge    time.Duration
}

func NewJWTManager(secretKey string, maxAge time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secretKey),
		maxAge:    maxAge,
	}
}

func (m *JWTManager) MaxAge() time.Duration {
	return m.maxAge
}

func (m *JWTManager) Generate(id, name string, now time.Time) (string, error) {
	claims := guestClaims{
		Id:   id,
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.UnexpectedTokenGenerationError, err)
	}

	return signedToken, nil
}

func (m *JWTManager) Verify(tokenString string) (id string, name string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &guestClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidSigningAlg
		}
		return m.secretKey, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSigningAlg):
			return "", "", err
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", "", domain.ErrExpiredToken
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return "", "", domain.ErrInvalidTokenSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", "", domain.ErrCorruptedToken
		default:
			return "", "", fmt.Errorf("%w: %w", domain.UnexpectedTokenVerificationError, err)
		}
	}

	if claims, ok := token.Claims.(*guestClaims); ok && token.Valid && claims.Id != "" {
		return claims.Id, claims.Name, nil
	}

	return "", "", domain.ErrCorruptedToken
}
