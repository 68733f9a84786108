// Package session resolves the two identities a request can carry: the
// signed-in user (JWT access-token cookie minted by the external auth
// provider) and the anonymous cart session cookie. Token issuance is not
// done here; cookies are only read and verified.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	accessTokenCookie = "accessToken"
	cartCookie        = "sessionCartId"
	cartCookieMaxAge  = 30 * 24 * time.Hour
)

var ErrNoSession = errors.New("no session")

// UserID extracts and verifies the signed-in user id from the access-token
// cookie. Returns ErrNoSession when the cookie is absent; anonymous callers
// are a normal case for cart operations, not an error.
func UserID(c echo.Context, secret []byte) (uint, error) {
	cookie, err := c.Cookie(accessTokenCookie)
	if err != nil || cookie.Value == "" {
		return 0, ErrNoSession
	}

	token, err := jwt.Parse(cookie.Value, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "invalid token: "+err.Error())
	}
	if !token.Valid {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	subRaw, ok := claims["sub"].(float64)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid subject claim")
	}
	return uint(subRaw), nil
}

// CartID returns the anonymous cart session id, minting and setting the
// cookie on first contact so a shopper can fill a cart before signing in.
func CartID(c echo.Context) string {
	if cookie, err := c.Cookie(cartCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	id := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     cartCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(cartCookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
