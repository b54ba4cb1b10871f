// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// Weekday numbering follows the persisted format: Sunday=1 .. Saturday=7.
const (
	Sunday    = 1
	Monday    = 2
	Tuesday   = 3
	Wednesday = 4
	Thursday  = 5
	Friday    = 6
	Saturday  = 7
)

// WeekdayOf converts a time.Time weekday to the 1..7 persisted numbering.
func WeekdayOf(t time.Time) int {
	return int(t.Weekday()) + 1
}

// MinuteOfDay returns the minute-of-day (0..1439) for a timestamp.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Schedule is a named weekly recurring time-window policy with its own
// blocklists. Owned by the settings store; the engine only evaluates it.
type Schedule struct {
	ID              string
	Name            string
	StartMinute     int          // minute-of-day, 0..1439
	EndMinute       int          // minute-of-day, 0..1439; EndMinute < StartMinute wraps past midnight
	Days            map[int]bool // weekday set, Sunday=1..Saturday=7
	Enabled         bool
	BlockedApps     map[string]bool
	BlockedWebsites map[string]bool
}

// IsActiveAt reports whether the schedule's window covers the given instant.
// Pure function; callers must re-evaluate on every poll so window boundaries
// are detected within one polling period.
func (s Schedule) IsActiveAt(now time.Time) bool {
	if !s.Enabled {
		return false
	}
	if !s.Days[WeekdayOf(now)] {
		return false
	}

	minute := MinuteOfDay(now)
	if s.StartMinute <= s.EndMinute {
		// Same-day window, e.g. 09:00-18:00. Both bounds inclusive.
		return minute >= s.StartMinute && minute <= s.EndMinute
	}
	// Window wraps past midnight, e.g. 22:00-06:00.
	return minute >= s.StartMinute || minute <= s.EndMinute
}

// FocusProfile is a named, user-triggered policy with its own blocklists.
// Break fields are advisory only; the engine does not enforce breaks.
type FocusProfile struct {
	ID                   string
	Name                 string
	DurationMinutes      int // 0 = unbounded
	BlockedApps          map[string]bool
	BlockedWebsites      map[string]bool
	AllowBreaks          bool
	BreakIntervalMinutes int
	BreakDurationMinutes int
}

// Unlimited reports whether the profile runs until explicitly stopped.
func (p FocusProfile) Unlimited() bool {
	return p.DurationMinutes == 0
}

// SessionState identifies which policy currently governs enforcement.
type SessionState string

const (
	StateIdle           SessionState = "idle"
	StateTimedFocus     SessionState = "timed"
	StateScheduledFocus SessionState = "scheduled"
)

// FocusSession is the live, in-memory record of the active enforcement mode.
// Exactly one of {idle, timer-driven, schedule-driven} holds at a time.
// Never persisted; reconstructed as idle on process restart.
type FocusSession struct {
	State     SessionState
	StartedAt time.Time
	EndsAt    time.Time // zero value = unbounded
	Profile   *FocusProfile
	Schedule  *Schedule
}

// Active reports whether any focus session is running.
func (s FocusSession) Active() bool {
	return s.State != StateIdle && s.State != ""
}

// Unbounded reports whether the session has no scheduled end time.
func (s FocusSession) Unbounded() bool {
	return s.EndsAt.IsZero()
}

// AppUsage is one foreground-app candidate reported by the usage probe.
type AppUsage struct {
	Package    string
	LastUsedAt time.Time
}

// UINode is a best-effort snapshot of one element in a browser UI tree,
// delivered by the accessibility probe. Children are owned by the node.
type UINode struct {
	ViewID    string
	ClassName string
	Text      string
	Children  []*UINode
}

// UIEvent is a "browser UI changed" notification from the accessibility probe.
type UIEvent struct {
	Package string
	Root    *UINode
}

// BlockReason says why the block surface is being shown.
type BlockReason struct {
	App     string // package id; empty for website blocks
	Website string // matched domain; empty for app blocks
}
