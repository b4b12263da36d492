package ledger

import "time"

// Status is the expiry classification of a single batch relative to a
// reference date.
type Status string

const (
	StatusExpired  Status = "EXPIRED"
	StatusDueToday Status = "DUE_TODAY"
	StatusNear     Status = "NEAR_EXPIRY"
	StatusNormal   Status = "NORMAL"
)

// Classifier is the single source of truth for every expiry-dependent
// decision: snapshot bucketing, near-expiry banners, purge eligibility.
// It is pure; callers supply both dates.
type Classifier struct {
	// WindowDays is the near-expiry warning window. A batch expiring
	// within 1..WindowDays days classifies as NEAR_EXPIRY.
	WindowDays int
}

// Classify buckets an expiry date against a reference date. A nil expiry
// (shelf life unknown) is always NORMAL and never counts as expired.
func (c Classifier) Classify(expiry *time.Time, today time.Time) Status {
	if expiry == nil {
		return StatusNormal
	}
	days := DaysRemaining(*expiry, today)
	switch {
	case days < 0:
		return StatusExpired
	case days == 0:
		return StatusDueToday
	case days <= c.WindowDays:
		return StatusNear
	default:
		return StatusNormal
	}
}

// DaysRemaining returns the whole calendar days from today until expiry,
// negative once the date has passed. Both inputs are truncated to their
// calendar date first, which makes the ceil of the day fraction exact.
func DaysRemaining(expiry, today time.Time) int {
	e := DateOnly(expiry)
	t := DateOnly(today)
	return int(e.Sub(t).Hours() / 24)
}
