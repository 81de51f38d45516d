package auth

import (
	"time"
)

// NewTestJWTService creates a JWT service with a fixed secret, lifetime and
// clock. It skips the secret length check so tests can use short keys.
func NewTestJWTService(secret string, lifetime time.Duration, timeFunc func() time.Time) JWTService {
	if timeFunc == nil {
		timeFunc = time.Now
	}
	return &hmacJWTService{
		signingKey:    []byte(secret),
		tokenLifetime: lifetime,
		timeFunc:      timeFunc,
	}
}
