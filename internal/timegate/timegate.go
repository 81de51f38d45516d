// Package timegate decides whether a request may proceed at a given instant.
package timegate

import (
	"fmt"
	"time"

	"github.com/phrazzld/webapp-api/internal/config"
)

// Predicate reports whether access is allowed at t. Implementations must be
// pure so tests can pass a fixed instant.
type Predicate func(t time.Time) bool

// Clock returns the current time.
type Clock func() time.Time

// BusinessHours allows access Monday to Friday within [Open, Close) local
// time in Location. Open and Close are offsets from midnight. The window is
// half-open: a request at exactly Close (17:00:00.000) is rejected, unlike a
// closed window that would still admit it.
type BusinessHours struct {
	Location *time.Location
	Open     time.Duration
	Close    time.Duration
}

// NewBusinessHours builds the window described by cfg.
func NewBusinessHours(cfg config.GateConfig) (*BusinessHours, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid gate timezone %q: %w", cfg.Timezone, err)
	}

	open, err := parseClock(cfg.Open)
	if err != nil {
		return nil, err
	}
	closeAt, err := parseClock(cfg.Close)
	if err != nil {
		return nil, err
	}
	if open >= closeAt {
		return nil, fmt.Errorf("gate opens at %s but closes at %s", cfg.Open, cfg.Close)
	}

	return &BusinessHours{Location: loc, Open: open, Close: closeAt}, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid gate time %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Allowed implements Predicate.
func (b *BusinessHours) Allowed(t time.Time) bool {
	local := t.In(b.Location)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	sinceMidnight := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())

	return sinceMidnight >= b.Open && sinceMidnight < b.Close
}

// Always allows every instant. It is used when the gate is disabled.
func Always(time.Time) bool { return true }
