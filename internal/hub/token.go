package hub

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry reads the exp claim of a hub access token. The signature is
// not verified: only the hub can do that.
//
// Returns:
//   - time.Time: expiry time
//   - bool: false if the token carries no exp claim
//   - error: if the token is not a JWT
func TokenExpiry(token string) (time.Time, bool, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false, fmt.Errorf("parsing access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false, nil
	}
	return claims.ExpiresAt.Time, true, nil
}

// checkToken logs a warning when the token is expired or expires within
// window.
func checkToken(token string, window time.Duration, now time.Time, logger Logger) {
	exp, ok, err := TokenExpiry(token)
	if err != nil {
		logger.Debug("access token is not a JWT, skipping expiry check")
		return
	}
	if !ok {
		return
	}
	switch remaining := exp.Sub(now); {
	case remaining <= 0:
		logger.Warn("hub access token has expired", "expired_at", exp)
	case remaining <= window:
		logger.Warn("hub access token expires soon", "expires_at", exp, "remaining", remaining.Round(time.Minute))
	}
}
