package domain

import "time"

// SettingsStore provides access to the persisted policy entities.
// Read-mostly from the engine's point of view; the CLI management commands
// write through the same interface. Eventually consistent with edits.
type SettingsStore interface {
	// LoadSchedules returns all schedules in persisted order.
	// The order is meaningful: the first active schedule wins.
	LoadSchedules() ([]Schedule, error)

	// LoadFocusProfiles returns all focus profiles.
	LoadFocusProfiles() ([]FocusProfile, error)

	// LoadManualBlocklists returns the always-on blocklists.
	LoadManualBlocklists() (apps map[string]bool, websites map[string]bool, err error)

	// SaveSchedule inserts or updates a schedule.
	SaveSchedule(s Schedule) error

	// DeleteSchedule removes a schedule by id.
	DeleteSchedule(id string) error

	// SaveFocusProfile inserts or updates a focus profile.
	SaveFocusProfile(p FocusProfile) error

	// DeleteFocusProfile removes a focus profile by id.
	DeleteFocusProfile(id string) error

	// SetAppBlocked adds or removes an app from the manual blocklist.
	SetAppBlocked(pkg string, blocked bool) error

	// SetWebsiteBlocked adds or removes a website from the manual blocklist.
	SetWebsiteBlocked(domain string, blocked bool) error

	// Close releases resources (e.g., database connection).
	Close() error
}

// UsageProbe reports foreground-app candidates.
// The probe may return nothing; that is "no signal", not an error.
type UsageProbe interface {
	// Candidates returns app usage observed inside [windowStart, windowEnd],
	// in no particular order. The most recently used entry is treated as
	// the current foreground app.
	Candidates(windowStart, windowEnd time.Time) ([]AppUsage, error)
}

// AppDirectory resolves package ids to display names.
type AppDirectory interface {
	// DisplayName returns a human-readable name for the package.
	// Best-effort; callers fall back to the raw id on error.
	DisplayName(pkg string) (string, error)
}

// BlockSurface presents the "blocked" interstitial to the user.
// Fire-and-forget; the engine does not await a result.
type BlockSurface interface {
	ShowBlocked(reason BlockReason)
}

// Notifier is the advisory status surface. Failures are ignored.
type Notifier interface {
	NotifySessionState(text string)
}

// KeyProvider abstracts the source of the settings store encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
