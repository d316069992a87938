// Package auth resolves a bearer token into a stable user identifier. Token
// issuance lives outside this service; only verification happens here.
package auth

import (
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired authentication token")

// TokenVerifier yields the user id a valid token was issued for.
type TokenVerifier interface {
	Verify(token string) (int, error)
}

type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(tokenString string) (int, error) {
	token, err := jwt.Parse(
		tokenString,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return 0, ErrInvalidToken
	}

	userID, err := strconv.Atoi(subject)
	if err != nil || userID < 1 {
		return 0, ErrInvalidToken
	}

	return userID, nil
}
