package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ilyakarpov/paycodes/internal/common"
)

// InspectToken extracts the subject and expiry from a JWT without verifying
// the signature. The server is the authority on validity; the client only
// needs the claims to decide whether a refresh is worth attempting.
func InspectToken(token string) (subject string, expiresAt time.Time, err error) {
	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: malformed token", common.ErrUnauthorized)
	}

	subject, _ = claims.GetSubject()
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return subject, time.Time{}, nil
	}
	return subject, exp.Time, nil
}

// TokenExpired reports whether the token's exp claim is in the past. Tokens
// without an exp claim never count as expired.
func TokenExpired(token string, now time.Time) bool {
	_, exp, err := InspectToken(token)
	if err != nil {
		return true
	}
	if exp.IsZero() {
		return false
	}
	return !exp.After(now)
}
