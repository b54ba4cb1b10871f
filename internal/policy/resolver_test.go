package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/dkpark22-ai/TurnOffApp/internal/domain"
)

// mockStore implements domain.SettingsStore for testing.
type mockStore struct {
	schedules   []domain.Schedule
	profiles    []domain.FocusProfile
	manualApps  map[string]bool
	manualSites map[string]bool
	loadErr     error
}

func (m *mockStore) LoadSchedules() ([]domain.Schedule, error) {
	return m.schedules, m.loadErr
}

func (m *mockStore) LoadFocusProfiles() ([]domain.FocusProfile, error) {
	return m.profiles, m.loadErr
}

func (m *mockStore) LoadManualBlocklists() (map[string]bool, map[string]bool, error) {
	return m.manualApps, m.manualSites, m.loadErr
}

func (m *mockStore) SaveSchedule(domain.Schedule) error         { return nil }
func (m *mockStore) DeleteSchedule(string) error                { return nil }
func (m *mockStore) SaveFocusProfile(domain.FocusProfile) error { return nil }
func (m *mockStore) DeleteFocusProfile(string) error            { return nil }
func (m *mockStore) SetAppBlocked(string, bool) error           { return nil }
func (m *mockStore) SetWebsiteBlocked(string, bool) error       { return nil }
func (m *mockStore) Close() error                               { return nil }

// mockSessions implements SessionSource for testing.
type mockSessions struct {
	session domain.FocusSession
}

func (m *mockSessions) Current() domain.FocusSession { return m.session }

func allDays() map[int]bool {
	m := make(map[int]bool)
	for d := domain.Sunday; d <= domain.Saturday; d++ {
		m[d] = true
	}
	return m
}

func alwaysActive(id string, apps, sites map[string]bool) domain.Schedule {
	return domain.Schedule{
		ID:              id,
		Name:            id,
		StartMinute:     0,
		EndMinute:       1439,
		Days:            allDays(),
		Enabled:         true,
		BlockedApps:     apps,
		BlockedWebsites: sites,
	}
}

func newResolver(store domain.SettingsStore, sessions SessionSource) (*Resolver, *TemporaryAllowlist) {
	allow := NewTemporaryAllowlist()
	return NewResolver(store, sessions, allow, zap.NewNop()), allow
}

// TestEffectiveBlockedApps_ScheduleReplacesManual verifies an active
// schedule's set replaces (not unions with) a non-empty manual blocklist.
func TestEffectiveBlockedApps_ScheduleReplacesManual(t *testing.T) {
	store := &mockStore{
		schedules:  []domain.Schedule{alwaysActive("s1", map[string]bool{"com.game": true}, nil)},
		manualApps: map[string]bool{"com.social": true, "com.video": true},
	}
	r, _ := newResolver(store, &mockSessions{})

	got := r.EffectiveBlockedApps(time.Now())

	assert.Equal(t, map[string]bool{"com.game": true}, got)
}

// TestEffectiveBlockedApps_FirstActiveScheduleWins verifies the persisted
// order tie-break when several schedules are active at once.
func TestEffectiveBlockedApps_FirstActiveScheduleWins(t *testing.T) {
	store := &mockStore{
		schedules: []domain.Schedule{
			alwaysActive("first", map[string]bool{"com.a": true}, nil),
			alwaysActive("second", map[string]bool{"com.b": true}, nil),
		},
	}
	r, _ := newResolver(store, &mockSessions{})

	got := r.EffectiveBlockedApps(time.Now())

	assert.Equal(t, map[string]bool{"com.a": true}, got)
	assert.Equal(t, "first", r.ActiveSchedule(time.Now()).ID)
}

// TestEffectiveBlockedApps_SessionProfile verifies profile sets apply when
// no schedule is active.
func TestEffectiveBlockedApps_SessionProfile(t *testing.T) {
	profile := domain.FocusProfile{
		ID:          "p1",
		BlockedApps: map[string]bool{"com.game": true},
	}
	store := &mockStore{manualApps: map[string]bool{"com.other": true}}
	sessions := &mockSessions{session: domain.FocusSession{
		State:   domain.StateTimedFocus,
		Profile: &profile,
	}}
	r, _ := newResolver(store, sessions)

	got := r.EffectiveBlockedApps(time.Now())

	assert.Equal(t, map[string]bool{"com.game": true}, got)
}

// TestEffectiveBlockedApps_ManualFallback verifies the always-on lists apply
// when nothing else governs.
func TestEffectiveBlockedApps_ManualFallback(t *testing.T) {
	store := &mockStore{manualApps: map[string]bool{"com.social": true}}
	r, _ := newResolver(store, &mockSessions{})

	got := r.EffectiveBlockedApps(time.Now())

	assert.Equal(t, map[string]bool{"com.social": true}, got)
}

// TestEffectiveBlockedApps_TemporaryAllowSubtracted verifies unexpired allow
// entries are removed from the effective set.
func TestEffectiveBlockedApps_TemporaryAllowSubtracted(t *testing.T) {
	store := &mockStore{manualApps: map[string]bool{"com.a": true, "com.b": true}}
	r, allow := newResolver(store, &mockSessions{})

	now := time.Now()
	allow.AllowApp("com.a", 10*time.Minute, now)

	got := r.EffectiveBlockedApps(now)

	assert.Equal(t, map[string]bool{"com.b": true}, got)

	// After expiry the app is blocked again.
	later := now.Add(11 * time.Minute)
	assert.Equal(t, map[string]bool{"com.a": true, "com.b": true}, r.EffectiveBlockedApps(later))
}

// TestEffectiveBlockedWebsites_AllowShortCircuits verifies the website-wide
// allow empties the whole set.
func TestEffectiveBlockedWebsites_AllowShortCircuits(t *testing.T) {
	store := &mockStore{
		schedules: []domain.Schedule{alwaysActive("s1", nil, map[string]bool{"example.com": true})},
	}
	r, allow := newResolver(store, &mockSessions{})

	now := time.Now()
	assert.Equal(t, map[string]bool{"example.com": true}, r.EffectiveBlockedWebsites(now))

	allow.AllowWebsites(5*time.Minute, now)
	assert.Empty(t, r.EffectiveBlockedWebsites(now))
}

// TestResolver_StoreFailureFailsOpen verifies an unreadable store degrades
// to "nothing blocked" instead of erroring or blocking.
func TestResolver_StoreFailureFailsOpen(t *testing.T) {
	store := &mockStore{loadErr: errors.New("corrupt database")}
	r, _ := newResolver(store, &mockSessions{})

	now := time.Now()
	assert.Nil(t, r.ActiveSchedule(now))
	assert.Empty(t, r.EffectiveBlockedApps(now))
	assert.Empty(t, r.EffectiveBlockedWebsites(now))
}

// TestEnforcing verifies website gating: enforcement requires an active
// schedule or focus session.
func TestEnforcing(t *testing.T) {
	now := time.Now()

	idle := &mockSessions{}
	r, _ := newResolver(&mockStore{}, idle)
	assert.False(t, r.Enforcing(now))

	withSchedule := &mockStore{schedules: []domain.Schedule{alwaysActive("s1", nil, nil)}}
	r2, _ := newResolver(withSchedule, idle)
	assert.True(t, r2.Enforcing(now))

	inSession := &mockSessions{session: domain.FocusSession{State: domain.StateTimedFocus}}
	r3, _ := newResolver(&mockStore{}, inSession)
	assert.True(t, r3.Enforcing(now))
}
