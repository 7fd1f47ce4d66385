// Package auth reads the claims of the backend-issued session token.
//
// The signing secret lives on the backend, so the token is decoded without
// verifying its signature. The result is for display only and never decides
// whether a session is valid; that is the backend's verify endpoint's job.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned when the token is not a decodable JWT
var ErrNotJWT = errors.New("token is not a JWT")

// TokenClaims represents the claims the backend puts into its tokens
type TokenClaims struct {
	ID     string `json:"id,omitempty"`
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenInfo is what the client can tell about a token without the secret
type TokenInfo struct {
	UserID    string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Inspect decodes token without verifying its signature
func Inspect(token string) (*TokenInfo, error) {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}

	info := &TokenInfo{
		UserID: claims.UserID,
		Email:  claims.Email,
	}
	if info.UserID == "" {
		info.UserID = claims.ID
	}
	if info.UserID == "" {
		info.UserID = claims.Subject
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// HasExpiry reports whether the token carries an exp claim
func (i *TokenInfo) HasExpiry() bool {
	return !i.ExpiresAt.IsZero()
}

// Expired reports whether the exp claim lies before now. Tokens without an
// exp claim never expire on the client side.
func (i *TokenInfo) Expired(now time.Time) bool {
	return i.HasExpiry() && now.After(i.ExpiresAt)
}

// Describe renders the expiry relative to now, e.g. "expires in 6d 2h"
func (i *TokenInfo) Describe(now time.Time) string {
	if !i.HasExpiry() {
		return "no expiry"
	}
	if i.Expired(now) {
		return "expired " + humanDuration(now.Sub(i.ExpiresAt)) + " ago"
	}
	return "expires in " + humanDuration(i.ExpiresAt.Sub(now))
}

func humanDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
