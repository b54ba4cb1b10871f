package policy

import (
	"time"

	"go.uber.org/zap"

	"github.com/dkpark22-ai/TurnOffApp/internal/domain"
)

// SessionSource exposes the current focus session to the resolver.
// Implemented by usecase.SessionManager.
type SessionSource interface {
	Current() domain.FocusSession
}

// Resolver computes the effective blocked sets at a given instant.
// Precedence: the first currently-active schedule replaces everything;
// otherwise an active focus session's profile sets apply; otherwise the
// manual blocklists. Temporary allows are subtracted last.
//
// Nothing is cached between calls: schedule windows and session state must
// be re-evaluated on every poll.
type Resolver struct {
	store    domain.SettingsStore
	sessions SessionSource
	allow    *TemporaryAllowlist
	logger   *zap.Logger
}

// NewResolver creates a policy resolver.
func NewResolver(
	store domain.SettingsStore,
	sessions SessionSource,
	allow *TemporaryAllowlist,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		store:    store,
		sessions: sessions,
		allow:    allow,
		logger:   logger,
	}
}

// ActiveSchedule returns the first schedule (in persisted order) whose window
// covers now, or nil if none. First-match is the defined tie-break when
// several enabled schedules overlap.
func (r *Resolver) ActiveSchedule(now time.Time) *domain.Schedule {
	schedules, err := r.store.LoadSchedules()
	if err != nil {
		// Fail open: unreadable schedules never block the user out.
		r.logger.Warn("failed to load schedules", zap.Error(err))
		return nil
	}

	for i := range schedules {
		if schedules[i].IsActiveAt(now) {
			return &schedules[i]
		}
	}
	return nil
}

// EffectiveBlockedApps returns the app set enforced at now, after precedence
// and temporary-allow resolution.
func (r *Resolver) EffectiveBlockedApps(now time.Time) map[string]bool {
	blocked := r.governingApps(now)

	effective := make(map[string]bool, len(blocked))
	for pkg := range blocked {
		if r.allow.IsAppAllowed(pkg, now) {
			continue
		}
		effective[pkg] = true
	}
	return effective
}

// EffectiveBlockedWebsites returns the website set enforced at now.
// The website-wide temporary allow short-circuits to an empty set.
func (r *Resolver) EffectiveBlockedWebsites(now time.Time) map[string]bool {
	if r.allow.IsWebsiteAllowed(now) {
		return map[string]bool{}
	}
	return r.governingWebsites(now)
}

// Enforcing reports whether any schedule or focus session currently governs.
// Website blocking is gated on this: with no active session or schedule the
// manual website list is advisory only.
func (r *Resolver) Enforcing(now time.Time) bool {
	if r.ActiveSchedule(now) != nil {
		return true
	}
	return r.sessions.Current().Active()
}

// governingApps picks the single authoritative app set: replace, not union.
func (r *Resolver) governingApps(now time.Time) map[string]bool {
	if s := r.ActiveSchedule(now); s != nil {
		return s.BlockedApps
	}

	if session := r.sessions.Current(); session.Active() && session.Profile != nil {
		return session.Profile.BlockedApps
	}

	apps, _, err := r.store.LoadManualBlocklists()
	if err != nil {
		r.logger.Warn("failed to load manual blocklists", zap.Error(err))
		return map[string]bool{}
	}
	return apps
}

// governingWebsites picks the single authoritative website set.
func (r *Resolver) governingWebsites(now time.Time) map[string]bool {
	if s := r.ActiveSchedule(now); s != nil {
		return s.BlockedWebsites
	}

	if session := r.sessions.Current(); session.Active() && session.Profile != nil {
		return session.Profile.BlockedWebsites
	}

	_, websites, err := r.store.LoadManualBlocklists()
	if err != nil {
		r.logger.Warn("failed to load manual blocklists", zap.Error(err))
		return map[string]bool{}
	}
	return websites
}
