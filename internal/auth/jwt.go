package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleUI marks tokens issued to paired UI shells.
const RoleUI = "ui"

// JWTClaims represents the claims in our JWT token.
type JWTClaims struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and validates pairing tokens for UI shells.
type Authenticator struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewAuthenticator creates an authenticator with the given signing
// secret.
func NewAuthenticator(secret string, tokenTTL time.Duration) *Authenticator {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Authenticator{secret: []byte(secret), tokenTTL: tokenTTL}
}

// GeneratePairingToken generates a JWT token for a paired UI shell.
func (a *Authenticator) GeneratePairingToken(clientID string) (string, time.Time, error) {
	expiresAt := time.Now().Add(a.tokenTTL)
	claims := &JWTClaims{
		ClientID: clientID,
		Role:     RoleUI,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (a *Authenticator) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
