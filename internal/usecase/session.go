// Package usecase contains application business logic.
package usecase

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dkpark22-ai/TurnOffApp/internal/domain"
)

// MonitorRunner is the foreground app monitor's lifecycle as seen by the
// session manager. Stop blocks until the monitor loop has fully exited and
// is idempotent, so stop-before-start never leaves two loops racing.
type MonitorRunner interface {
	Start()
	Stop()
}

// SessionManager owns the focus session state machine:
// Idle <-> TimedFocus (user actions) and Idle <-> ScheduledFocus (schedule
// monitor only). Starting either kind while the other is active stops the
// former first; that is the invariant everything else relies on.
type SessionManager struct {
	mu      sync.Mutex
	current domain.FocusSession

	monitor  MonitorRunner
	notifier domain.Notifier
	logger   *zap.Logger
	nowFunc  func() time.Time
}

// NewSessionManager creates a session manager in the idle state.
func NewSessionManager(notifier domain.Notifier, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		current:  domain.FocusSession{State: domain.StateIdle},
		notifier: notifier,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// SetMonitor attaches the foreground app monitor. Called once during wiring;
// the monitor itself needs the manager, hence the two-step construction.
func (s *SessionManager) SetMonitor(m MonitorRunner) {
	s.monitor = m
}

// SetNowFunc overrides the clock (tests only).
func (s *SessionManager) SetNowFunc(f func() time.Time) {
	s.nowFunc = f
}

// Current returns a snapshot of the active session.
func (s *SessionManager) Current() domain.FocusSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// StartTimed begins a timer-driven focus session for the given profile.
// Duration 0 means the session runs until explicitly stopped.
func (s *SessionManager) StartTimed(profile domain.FocusProfile) {
	s.Stop()

	now := s.nowFunc()
	session := domain.FocusSession{
		State:     domain.StateTimedFocus,
		StartedAt: now,
		Profile:   &profile,
	}
	if !profile.Unlimited() {
		session.EndsAt = now.Add(time.Duration(profile.DurationMinutes) * time.Minute)
	}

	s.mu.Lock()
	s.current = session
	s.mu.Unlock()

	s.startMonitor()
	s.logger.Info("timed focus session started",
		zap.String("profile", profile.Name),
		zap.Int("duration_minutes", profile.DurationMinutes))
	if profile.Unlimited() {
		s.notify(fmt.Sprintf("Focus '%s' running (until stopped)", profile.Name))
	} else {
		s.notify(fmt.Sprintf("Focus '%s' running (%d min)", profile.Name, profile.DurationMinutes))
	}
}

// StartScheduled begins a schedule-driven focus session. Called only by the
// schedule monitor; a running timed session is stopped first.
func (s *SessionManager) StartScheduled(schedule domain.Schedule) {
	s.Stop()

	session := domain.FocusSession{
		State:     domain.StateScheduledFocus,
		StartedAt: s.nowFunc(),
		Schedule:  &schedule,
	}

	s.mu.Lock()
	s.current = session
	s.mu.Unlock()

	s.startMonitor()
	s.logger.Info("scheduled focus session started", zap.String("schedule", schedule.Name))
	s.notify(fmt.Sprintf("Schedule '%s' running", schedule.Name))
}

// Stop ends the active session, whatever its kind, and blocks until the
// foreground app monitor loop has terminated. No-op when idle.
func (s *SessionManager) Stop() {
	s.mu.Lock()
	if !s.current.Active() {
		s.mu.Unlock()
		return
	}
	s.current = domain.FocusSession{State: domain.StateIdle}
	s.mu.Unlock()

	// The loop must be fully drained before a successor session starts,
	// otherwise two loops race against inconsistent policy state.
	s.stopMonitor()
	s.logger.Info("focus session stopped")
	s.notify("Focus ended")
}

// Deactivate marks the session ended without waiting for the monitor loop.
// Called from inside the monitor loop itself (timer expiry, schedule gone);
// the loop exits right after, and a later Stop is a no-op.
func (s *SessionManager) Deactivate(reason string) {
	s.mu.Lock()
	if !s.current.Active() {
		s.mu.Unlock()
		return
	}
	s.current = domain.FocusSession{State: domain.StateIdle}
	s.mu.Unlock()

	s.logger.Info("focus session ended", zap.String("reason", reason))
	s.notify("Focus ended")
}

func (s *SessionManager) startMonitor() {
	if s.monitor != nil {
		s.monitor.Start()
	}
}

func (s *SessionManager) stopMonitor() {
	if s.monitor != nil {
		s.monitor.Stop()
	}
}

func (s *SessionManager) notify(text string) {
	if s.notifier != nil {
		s.notifier.NotifySessionState(text)
	}
}
