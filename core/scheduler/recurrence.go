package scheduler

import (
	"fmt"
	"time"
)

// maxSearchDays bounds the forward search for a matching day. Every policy
// matches at least one day in any seven, so this is never reached.
const maxSearchDays = 14

// NextFireTime returns the first instant strictly after ref at which a
// reminder with the given time of day and policy fires, in zone loc.
//
// Days are stepped with time.Date rather than by adding 24h so that the wall
// clock time stays put across DST changes.
func NextFireTime(tod TimeOfDay, policy Policy, ref time.Time, loc *time.Location) (time.Time, error) {
	if !tod.Valid() || !policy.Valid() {
		return time.Time{}, fmt.Errorf("%w: cannot schedule %s (%s)", ErrValidation, tod, policy)
	}
	if loc == nil {
		loc = time.Local
	}
	local := ref.In(loc)
	y, m, d := local.Date()

	for i := 0; i <= maxSearchDays; i++ {
		candidate := time.Date(y, m, d+i, tod.Hour, tod.Minute, 0, 0, loc)
		if !candidate.After(ref) {
			continue
		}
		if policy.Matches(candidate.Weekday()) {
			return candidate, nil
		}
	}

	return time.Time{}, fmt.Errorf("no occurrence of %s (%s) within %d days of %s", tod, policy, maxSearchDays, ref.Format(time.RFC3339))
}
