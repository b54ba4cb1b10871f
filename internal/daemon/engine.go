package daemon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dkpark22-ai/TurnOffApp/internal/domain"
	"github.com/dkpark22-ai/TurnOffApp/internal/policy"
	"github.com/dkpark22-ai/TurnOffApp/internal/usecase"
)

// EngineConfig aggregates the tunables of all monitors.
type EngineConfig struct {
	AppMonitor      AppMonitorConfig
	ScheduleMonitor ScheduleMonitorConfig
	Browsers        []string // package ids treated as web browsers
	SelfPackage     string   // this engine's own identity, never blocked
}

// DefaultEngineConfig returns default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		AppMonitor:      DefaultAppMonitorConfig(),
		ScheduleMonitor: DefaultScheduleMonitorConfig(),
	}
}

// Engine wires the monitors, the session manager, the resolver and the
// temporary allowlist into one owned unit. All user-facing actions (start
// or stop focus, temporary allows, browser events) enter through here, so
// nothing in the engine is hidden process-wide state.
type Engine struct {
	store    domain.SettingsStore
	sessions *usecase.SessionManager
	allow    *policy.TemporaryAllowlist
	resolver *policy.Resolver

	appMonitor   *AppMonitor
	schedMonitor *ScheduleMonitor
	webMonitor   *WebMonitor

	logger  *zap.Logger
	nowFunc func() time.Time
}

// NewEngine builds a fully wired enforcement engine.
func NewEngine(
	config EngineConfig,
	store domain.SettingsStore,
	probe domain.UsageProbe,
	directory domain.AppDirectory,
	surface domain.BlockSurface,
	notifier domain.Notifier,
	logger *zap.Logger,
) *Engine {
	allow := policy.NewTemporaryAllowlist()
	sessions := usecase.NewSessionManager(notifier, logger)
	resolver := policy.NewResolver(store, sessions, allow, logger)

	appMonitor := NewAppMonitor(
		config.AppMonitor,
		probe,
		resolver,
		allow,
		surface,
		directory,
		sessions,
		config.SelfPackage,
		logger,
	)
	sessions.SetMonitor(appMonitor)

	return &Engine{
		store:        store,
		sessions:     sessions,
		allow:        allow,
		resolver:     resolver,
		appMonitor:   appMonitor,
		schedMonitor: NewScheduleMonitor(config.ScheduleMonitor, resolver, sessions, logger),
		webMonitor:   NewWebMonitor(config.Browsers, resolver, allow, surface, logger),
		logger:       logger,
		nowFunc:      time.Now,
	}
}

// Run starts the schedule monitor loop, which arbitrates scheduled focus
// for the lifetime of the process. Blocks until the context is canceled.
func (e *Engine) Run(ctx context.Context) error {
	return e.schedMonitor.Run(ctx)
}

// StartFocus begins a timed focus session for the named profile.
func (e *Engine) StartFocus(profileName string) error {
	profiles, err := e.store.LoadFocusProfiles()
	if err != nil {
		return fmt.Errorf("failed to load focus profiles: %w", err)
	}

	for _, p := range profiles {
		if p.Name == profileName || p.ID == profileName {
			e.sessions.StartTimed(p)
			return nil
		}
	}
	return fmt.Errorf("focus profile not found: %s", profileName)
}

// StopFocus ends the active session, if any.
func (e *Engine) StopFocus() {
	e.sessions.Stop()
}

// Session returns a snapshot of the current focus session.
func (e *Engine) Session() domain.FocusSession {
	return e.sessions.Current()
}

// AllowAppTemporarily suppresses blocking of one app for the duration.
func (e *Engine) AllowAppTemporarily(pkg string, duration time.Duration) {
	e.logger.Info("temporary app allow",
		zap.String("package", pkg),
		zap.Duration("duration", duration))
	e.allow.AllowApp(pkg, duration, e.nowFunc())
}

// AllowWebsitesTemporarily suppresses blocking of all websites for the
// duration.
func (e *Engine) AllowWebsitesTemporarily(duration time.Duration) {
	e.logger.Info("temporary website allow", zap.Duration("duration", duration))
	e.allow.AllowWebsites(duration, e.nowFunc())
}

// HandleBrowserEvent forwards one accessibility event to the URL monitor.
// Safe to call concurrently with the monitor loops.
func (e *Engine) HandleBrowserEvent(ev domain.UIEvent) {
	e.webMonitor.HandleEvent(ev)
}

// Resolver exposes the policy resolver for one-shot evaluation (the check
// and status commands).
func (e *Engine) Resolver() *policy.Resolver {
	return e.resolver
}
