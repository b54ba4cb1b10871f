package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dkpark22-ai/TurnOffApp/internal/domain"
	"github.com/dkpark22-ai/TurnOffApp/internal/policy"
)

// ScheduleMonitorConfig holds schedule monitor configuration.
type ScheduleMonitorConfig struct {
	CheckInterval time.Duration // how often to re-evaluate schedule windows
}

// DefaultScheduleMonitorConfig returns default schedule monitor configuration.
func DefaultScheduleMonitorConfig() ScheduleMonitorConfig {
	return ScheduleMonitorConfig{
		CheckInterval: 60 * time.Second,
	}
}

// ScheduleSessions is the slice of the session manager the schedule monitor
// drives. StartScheduled stops any running session first; Stop blocks until
// the app monitor loop has exited.
type ScheduleSessions interface {
	Current() domain.FocusSession
	StartScheduled(schedule domain.Schedule)
	Stop()
}

// ScheduleMonitor is the top-level scheduler. It runs for the lifetime of
// the process, detects transitions of which schedule is currently active,
// and starts/stops schedule-driven focus sessions accordingly. It is the
// only writer of ScheduledFocus state.
type ScheduleMonitor struct {
	config   ScheduleMonitorConfig
	resolver *policy.Resolver
	sessions ScheduleSessions
	logger   *zap.Logger
	nowFunc  func() time.Time

	// lastActiveID is the schedule observed active on the previous tick.
	// Only touched from the Run goroutine.
	lastActiveID string
}

// NewScheduleMonitor creates a schedule monitor.
func NewScheduleMonitor(
	config ScheduleMonitorConfig,
	resolver *policy.Resolver,
	sessions ScheduleSessions,
	logger *zap.Logger,
) *ScheduleMonitor {
	return &ScheduleMonitor{
		config:   config,
		resolver: resolver,
		sessions: sessions,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// SetNowFunc overrides the clock (tests only).
func (m *ScheduleMonitor) SetNowFunc(f func() time.Time) {
	m.nowFunc = f
}

// Run starts the schedule monitor loop. Blocks until the context is
// canceled; any session still running is stopped on the way out.
func (m *ScheduleMonitor) Run(ctx context.Context) error {
	m.logger.Info("schedule monitor started",
		zap.Duration("check_interval", m.config.CheckInterval))

	// Evaluate immediately so a window already in progress is picked up
	// without waiting a full interval.
	m.CheckSchedules()

	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("schedule monitor stopping")
			m.sessions.Stop()
			return ctx.Err()
		case <-ticker.C:
			m.CheckSchedules()
		}
	}
}

// CheckSchedules runs one transition check. Exported so the status command
// and tests can drive it directly.
func (m *ScheduleMonitor) CheckSchedules() {
	now := m.nowFunc()
	active := m.resolver.ActiveSchedule(now)

	switch {
	case active != nil && active.ID != m.lastActiveID:
		// A schedule became active, possibly superseding another one.
		// StartScheduled stops the previous session first, so listeners
		// see stop-then-start, never an in-place swap.
		m.logger.Info("schedule became active",
			zap.String("schedule_id", active.ID),
			zap.String("schedule", active.Name))
		m.lastActiveID = active.ID
		m.sessions.StartScheduled(*active)

	case active == nil && m.lastActiveID != "":
		m.logger.Info("active schedule ended",
			zap.String("schedule_id", m.lastActiveID))
		m.lastActiveID = ""
		m.stopScheduledSession()
	}
}

// stopScheduledSession ends the schedule-driven session, if it is still the
// one running. A timed session started by the user in the meantime is left
// alone.
func (m *ScheduleMonitor) stopScheduledSession() {
	if m.sessions.Current().State == domain.StateScheduledFocus {
		m.sessions.Stop()
	}
}
