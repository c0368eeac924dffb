// Package auth resolves bearer credentials to users.
package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/useinkwell/inkwell/store"
)

// AccessTokenCookieName is the cookie carrying the access token for
// browser clients.
const AccessTokenCookieName = "inkwell.access-token"

const issuer = "inkwell"

// Authenticator validates access tokens against the user store.
type Authenticator struct {
	store  *store.Store
	secret string
}

// NewAuthenticator creates an Authenticator with the signing secret.
func NewAuthenticator(s *store.Store, secret string) *Authenticator {
	return &Authenticator{store: s, secret: secret}
}

// GenerateAccessToken signs a token for the given user.
func GenerateAccessToken(userID int32, secret string, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Issuer:    issuer,
		Subject:   strconv.Itoa(int(userID)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	return token.SignedString([]byte(secret))
}

// AuthenticateToUser resolves the request's bearer header or cookie to a
// user. Returns an error when the token is absent, invalid, expired, or
// names an unknown user.
func (a *Authenticator) AuthenticateToUser(ctx context.Context, authHeader, cookieHeader string) (*store.User, error) {
	tokenString := extractToken(authHeader, cookieHeader)
	if tokenString == "" {
		return nil, errors.New("no access token")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.secret), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse access token")
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return nil, errors.Wrap(err, "invalid token subject")
	}
	id := int32(userID)
	user, err := a.store.GetUser(ctx, &store.FindUser{ID: &id})
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	if user == nil {
		return nil, errors.Errorf("user %d not found", id)
	}
	return user, nil
}

func extractToken(authHeader, cookieHeader string) string {
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	header := http.Header{}
	header.Add("Cookie", cookieHeader)
	request := http.Request{Header: header}
	if cookie, err := request.Cookie(AccessTokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
