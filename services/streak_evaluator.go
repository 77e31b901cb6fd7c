package services

import "time"

// StreakDecision is what the scheduler does for one user on one tick.
type StreakDecision int

const (
	StreakNone StreakDecision = iota
	StreakRemind
	StreakReset
)

func (d StreakDecision) String() string {
	switch d {
	case StreakRemind:
		return "REMIND"
	case StreakReset:
		return "RESET"
	default:
		return "NONE"
	}
}

const (
	// StreakCadence is the nominal once-per-day check-in interval.
	StreakCadence = 24 * time.Hour
	// StreakBreakAfter ends the grace window; at or past it the streak is cleared.
	StreakBreakAfter = 30 * time.Hour
	// ReminderCooldown is the TTL of the reminder suppression flag.
	ReminderCooldown = 7 * 24 * time.Hour
)

// EvaluateStreak decides reminder/reset for a user given the latest check-in.
// A nil lastCheckIn means the user has no live streak.
// RESET ignores suppression; REMIND is only returned when not suppressed.
func EvaluateStreak(now time.Time, lastCheckIn *time.Time, suppressed bool) StreakDecision {
	if lastCheckIn == nil {
		if suppressed {
			return StreakNone
		}
		return StreakRemind
	}

	diff := absDuration(now.Sub(*lastCheckIn))
	switch {
	case diff < StreakCadence:
		return StreakNone
	case diff < StreakBreakAfter:
		if suppressed {
			return StreakNone
		}
		return StreakRemind
	default:
		return StreakReset
	}
}

// IsDuplicateCheckIn reports whether a check-in at now only confirms the streak:
// same UTC calendar day as latest, or less than 24h apart.
func IsDuplicateCheckIn(now, latest time.Time) bool {
	if sameUTCDay(now, latest) {
		return true
	}
	return absDuration(now.Sub(latest)) < StreakCadence
}

// needsSuppressionLookup is false when the decision cannot depend on suppression.
func needsSuppressionLookup(now time.Time, lastCheckIn *time.Time) bool {
	if lastCheckIn == nil {
		return true
	}
	diff := absDuration(now.Sub(*lastCheckIn))
	return diff >= StreakCadence && diff < StreakBreakAfter
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
