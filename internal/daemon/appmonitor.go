// Package daemon implements the monitor loops: the foreground app monitor,
// the schedule monitor, and the browser URL monitor.
package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dkpark22-ai/TurnOffApp/internal/domain"
	"github.com/dkpark22-ai/TurnOffApp/internal/policy"
)

// AppMonitorConfig holds foreground app monitor configuration.
type AppMonitorConfig struct {
	PollInterval time.Duration // how often to check the foreground app
	UsageWindow  time.Duration // how far back the usage probe looks
}

// DefaultAppMonitorConfig returns default app monitor configuration.
func DefaultAppMonitorConfig() AppMonitorConfig {
	return AppMonitorConfig{
		PollInterval: 500 * time.Millisecond,
		UsageWindow:  10 * time.Second,
	}
}

// SessionControl is the slice of the session manager the app monitor needs:
// reading the current session and ending it from inside the loop.
type SessionControl interface {
	Current() domain.FocusSession
	Deactivate(reason string)
}

// AppMonitor polls the foreground app while a focus session is active and
// triggers the block surface when a blocked app is in front. The loop also
// self-terminates the session on timer expiry, and winds down when the
// driving schedule is no longer the active one (the schedule monitor
// restarts it if appropriate).
type AppMonitor struct {
	config    AppMonitorConfig
	probe     domain.UsageProbe
	resolver  *policy.Resolver
	allow     *policy.TemporaryAllowlist
	surface   domain.BlockSurface
	directory domain.AppDirectory
	sessions  SessionControl
	selfPkg   string
	logger    *zap.Logger
	nowFunc   func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAppMonitor creates a foreground app monitor. selfPkg is this engine's
// own identity, which is never blocked.
func NewAppMonitor(
	config AppMonitorConfig,
	probe domain.UsageProbe,
	resolver *policy.Resolver,
	allow *policy.TemporaryAllowlist,
	surface domain.BlockSurface,
	directory domain.AppDirectory,
	sessions SessionControl,
	selfPkg string,
	logger *zap.Logger,
) *AppMonitor {
	return &AppMonitor{
		config:    config,
		probe:     probe,
		resolver:  resolver,
		allow:     allow,
		surface:   surface,
		directory: directory,
		sessions:  sessions,
		selfPkg:   selfPkg,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// SetNowFunc overrides the clock (tests only).
func (m *AppMonitor) SetNowFunc(f func() time.Time) {
	m.nowFunc = f
}

// Start launches the monitor loop. No-op if already running.
func (m *AppMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go m.run(ctx, done)
}

// Stop cancels the loop and blocks until it has exited. Idempotent; safe to
// call after the loop terminated itself.
func (m *AppMonitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *AppMonitor) run(ctx context.Context, done chan struct{}) {
	// On exit the loop releases its own lifecycle slot, otherwise a later
	// Start would see stale state and refuse to launch a fresh loop after
	// the session self-terminated. A concurrent Stop may already have
	// claimed the slot (or a successor loop may own it), hence the
	// identity check.
	defer func() {
		m.mu.Lock()
		if m.done == done {
			m.cancel = nil
			m.done = nil
		}
		m.mu.Unlock()
		close(done)
	}()

	m.logger.Debug("app monitor started",
		zap.Duration("poll_interval", m.config.PollInterval))

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	if !m.tick() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("app monitor stopping")
			return
		case <-ticker.C:
			if !m.tick() {
				m.logger.Debug("app monitor wound down")
				return
			}
		}
	}
}

// tick runs one poll cycle. Returns false when the loop should terminate.
func (m *AppMonitor) tick() bool {
	now := m.nowFunc()

	m.allow.PurgeExpired(now)

	session := m.sessions.Current()
	switch session.State {
	case domain.StateTimedFocus:
		if !session.Unbounded() && !now.Before(session.EndsAt) {
			m.sessions.Deactivate("timer expired")
			return false
		}
	case domain.StateScheduledFocus:
		active := m.resolver.ActiveSchedule(now)
		if active == nil || session.Schedule == nil || active.ID != session.Schedule.ID {
			m.sessions.Deactivate("schedule no longer active")
			return false
		}
	default:
		// Session ended elsewhere; wind down.
		return false
	}

	m.checkForeground(now)
	return true
}

func (m *AppMonitor) checkForeground(now time.Time) {
	candidates, err := m.probe.Candidates(now.Add(-m.config.UsageWindow), now)
	if err != nil {
		// No actionable signal; the next poll retries naturally.
		m.logger.Debug("usage probe failed", zap.Error(err))
		return
	}

	current := mostRecent(candidates)
	if current == "" || current == m.selfPkg {
		return
	}

	if m.allow.IsAppAllowed(current, now) {
		return
	}

	if m.resolver.EffectiveBlockedApps(now)[current] {
		m.logger.Info("blocking app",
			zap.String("package", current),
			zap.String("name", m.displayName(current)))
		m.surface.ShowBlocked(domain.BlockReason{App: current})
	}
}

// mostRecent picks the candidate with the latest LastUsedAt.
func mostRecent(candidates []domain.AppUsage) string {
	var best domain.AppUsage
	for _, c := range candidates {
		if c.Package != "" && c.LastUsedAt.After(best.LastUsedAt) {
			best = c
		}
	}
	return best.Package
}

func (m *AppMonitor) displayName(pkg string) string {
	if m.directory == nil {
		return pkg
	}
	name, err := m.directory.DisplayName(pkg)
	if err != nil || name == "" {
		return pkg
	}
	return name
}
