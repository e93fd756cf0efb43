package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// accessTokenSigner mints the short-lived HS256 bearer tokens handed out next
// to each refresh token. The refresh token id rides along as jti so that
// blacklisting the refresh token also kills its access tokens.
type accessTokenSigner struct {
	secret []byte
}

func newAccessTokenSigner(secret string) *accessTokenSigner {
	return &accessTokenSigner{secret: []byte(secret)}
}

func (s *accessTokenSigner) Sign(userID, tokenID string, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        tokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns (userID, tokenID).
func (s *accessTokenSigner) Verify(tokenString string) (string, string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("invalid access token: %w", err)
	}
	if !token.Valid {
		return "", "", fmt.Errorf("invalid access token")
	}

	return claims.Subject, claims.ID, nil
}
