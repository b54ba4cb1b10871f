// Package policy decides what is blocked at any given instant: it merges
// schedules, the active focus session, and the manual blocklists, and
// subtracts temporary allows.
package policy

import (
	"sync"
	"time"
)

// TemporaryAllowlist is the process-lifetime store of explicit overrides:
// per-app expiry timestamps plus a single allow-until covering all websites.
// Readers (the monitor loops) and the writer (the user allow action) run in
// different goroutines; all access is serialized by the mutex. Never
// persisted across restarts.
type TemporaryAllowlist struct {
	mu            sync.Mutex
	apps          map[string]time.Time
	websitesUntil time.Time
}

// NewTemporaryAllowlist creates an empty allowlist.
func NewTemporaryAllowlist() *TemporaryAllowlist {
	return &TemporaryAllowlist{
		apps: make(map[string]time.Time),
	}
}

// AllowApp suppresses blocking of one app until now + duration.
// The expiry is absolute, computed at write time.
func (a *TemporaryAllowlist) AllowApp(pkg string, duration time.Duration, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.apps[pkg] = now.Add(duration)
}

// AllowWebsites suppresses blocking of all websites until now + duration.
func (a *TemporaryAllowlist) AllowWebsites(duration time.Duration, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.websitesUntil = now.Add(duration)
}

// IsAppAllowed reports whether the app has an unexpired allow entry.
func (a *TemporaryAllowlist) IsAppAllowed(pkg string, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	expiry, ok := a.apps[pkg]
	return ok && now.Before(expiry)
}

// IsWebsiteAllowed reports whether the website-wide allow is still in effect.
func (a *TemporaryAllowlist) IsWebsiteAllowed(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return now.Before(a.websitesUntil)
}

// PurgeExpired removes entries whose expiry has passed. Invoked from the
// app monitor tick, so staleness is bounded by one polling period.
func (a *TemporaryAllowlist) PurgeExpired(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for pkg, expiry := range a.apps {
		if !now.Before(expiry) {
			delete(a.apps, pkg)
		}
	}
}

// Len returns the number of live app entries (for the status surface).
func (a *TemporaryAllowlist) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.apps)
}
