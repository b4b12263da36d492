package ledger

import (
	"fmt"
	"time"
)

// Clock decides what "today" means for the ledger. Expiry is a calendar
// question, so the boundary is midnight in the configured zone, not UTC.
type Clock struct {
	loc *time.Location
}

func NewClock(timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Clock{loc: loc}, nil
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current ledger-local time at second precision, the
// resolution log timestamps are stored at.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc).Truncate(time.Second)
}

// Today returns the current ledger-local calendar date.
func (c *Clock) Today() time.Time {
	return DateOnly(time.Now().In(c.loc))
}

// DateOnly strips a timestamp down to its calendar date. All dates held by
// the ledger (receive, expiry, "today") are normalized this way so that
// comparisons are pure calendar arithmetic regardless of source zone.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
