//go:build integration

package integration

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/dkpark22-ai/TurnOffApp/internal/daemon"
	"github.com/dkpark22-ai/TurnOffApp/internal/domain"
	"github.com/dkpark22-ai/TurnOffApp/internal/infra"
	"github.com/dkpark22-ai/TurnOffApp/internal/policy"
	"github.com/dkpark22-ai/TurnOffApp/internal/usecase"
)

// fakeProbe reports a scripted foreground candidate.
type fakeProbe struct {
	mu      sync.Mutex
	current string
}

func (p *fakeProbe) setForeground(pkg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = pkg
}

func (p *fakeProbe) Candidates(windowStart, windowEnd time.Time) ([]domain.AppUsage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == "" {
		return nil, nil
	}
	return []domain.AppUsage{{Package: p.current, LastUsedAt: windowEnd}}, nil
}

// recordingSurface collects every block signal shown to the user.
type recordingSurface struct {
	mu      sync.Mutex
	reasons []domain.BlockReason
}

func (s *recordingSurface) ShowBlocked(reason domain.BlockReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reasons = append(s.reasons, reason)
}

func (s *recordingSurface) all() []domain.BlockReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.BlockReason(nil), s.reasons...)
}

func (s *recordingSurface) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reasons = nil
}

type nopDirectory struct{}

func (nopDirectory) DisplayName(pkg string) (string, error) { return pkg, nil }

func allDays() map[int]bool {
	days := make(map[int]bool, 7)
	for d := 1; d <= 7; d++ {
		days[d] = true
	}
	return days
}

func newStore(dir string) *infra.SettingsDB {
	key, err := infra.EnsureKey(infra.NewKeyFile(dir))
	Expect(err).NotTo(HaveOccurred())
	store, err := infra.NewSettingsDB(dir, key)
	Expect(err).NotTo(HaveOccurred())
	return store
}

func chromeEvent(url string) domain.UIEvent {
	return domain.UIEvent{
		Package: "com.android.chrome",
		Root: &domain.UINode{
			ClassName: "android.widget.FrameLayout",
			Children: []*domain.UINode{
				{ViewID: "com.android.chrome:id/url_bar", ClassName: "android.widget.EditText", Text: url},
			},
		},
	}
}

var _ = Describe("Enforcement engine", func() {
	var (
		store   *infra.SettingsDB
		probe   *fakeProbe
		surface *recordingSurface
		engine  *daemon.Engine
	)

	BeforeEach(func() {
		store = newStore(GinkgoT().TempDir())
		probe = &fakeProbe{}
		surface = &recordingSurface{}

		cfg := daemon.DefaultEngineConfig()
		cfg.AppMonitor.PollInterval = 10 * time.Millisecond
		cfg.AppMonitor.UsageWindow = time.Second
		cfg.Browsers = []string{"com.android.chrome"}
		cfg.SelfPackage = "com.dkpark22.turnoff"

		engine = daemon.NewEngine(cfg, store, probe, nopDirectory{}, surface, nil, zap.NewNop())
	})

	AfterEach(func() {
		engine.StopFocus()
		store.Close()
	})

	Describe("timed focus sessions", func() {
		BeforeEach(func() {
			Expect(store.SaveFocusProfile(domain.FocusProfile{
				ID:              "deep",
				Name:            "Deep work",
				DurationMinutes: 0,
				BlockedApps:     map[string]bool{"com.example.game": true},
				BlockedWebsites: map[string]bool{"example.com": true},
			})).To(Succeed())
		})

		It("blocks a profile app while the session runs", func() {
			Expect(engine.StartFocus("Deep work")).To(Succeed())
			Expect(engine.Session().State).To(Equal(domain.StateTimedFocus))

			probe.setForeground("com.example.game")
			Eventually(surface.all).Should(ContainElement(
				domain.BlockReason{App: "com.example.game"}))
		})

		It("leaves other apps alone", func() {
			Expect(engine.StartFocus("Deep work")).To(Succeed())

			probe.setForeground("com.example.notes")
			Consistently(surface.all, 100*time.Millisecond).Should(BeEmpty())
		})

		It("stops blocking when the session is stopped", func() {
			Expect(engine.StartFocus("Deep work")).To(Succeed())
			probe.setForeground("com.example.game")
			Eventually(surface.all).ShouldNot(BeEmpty())

			engine.StopFocus()
			Expect(engine.Session().State).To(Equal(domain.StateIdle))

			surface.reset()
			Consistently(surface.all, 100*time.Millisecond).Should(BeEmpty())
		})

		It("honors a temporary app allow and re-blocks after expiry", func() {
			Expect(engine.StartFocus("Deep work")).To(Succeed())

			engine.AllowAppTemporarily("com.example.game", 150*time.Millisecond)
			probe.setForeground("com.example.game")
			Consistently(surface.all, 100*time.Millisecond).Should(BeEmpty())

			Eventually(surface.all, time.Second).Should(ContainElement(
				domain.BlockReason{App: "com.example.game"}))
		})

		It("rejects an unknown profile", func() {
			Expect(engine.StartFocus("no such profile")).NotTo(Succeed())
		})
	})

	Describe("browser URL events", func() {
		BeforeEach(func() {
			Expect(store.SaveFocusProfile(domain.FocusProfile{
				ID:              "web",
				Name:            "No browsing",
				BlockedApps:     map[string]bool{},
				BlockedWebsites: map[string]bool{"example.com": true},
			})).To(Succeed())
			Expect(engine.StartFocus("No browsing")).To(Succeed())
		})

		It("blocks a visited blocked domain", func() {
			engine.HandleBrowserEvent(chromeEvent("https://www.example.com/watch"))
			Expect(surface.all()).To(ContainElement(
				domain.BlockReason{Website: "example.com"}))
		})

		It("does not block other domains", func() {
			engine.HandleBrowserEvent(chromeEvent("https://docs.example.org"))
			Expect(surface.all()).To(BeEmpty())
		})

		It("honors a website-wide temporary allow", func() {
			engine.AllowWebsitesTemporarily(time.Minute)
			engine.HandleBrowserEvent(chromeEvent("https://example.com"))
			Expect(surface.all()).To(BeEmpty())
		})

		It("ignores websites once the session ends", func() {
			engine.StopFocus()
			engine.HandleBrowserEvent(chromeEvent("https://example.com"))
			Expect(surface.all()).To(BeEmpty())
		})
	})
})

var _ = Describe("Scheduled focus over a day", func() {
	var (
		store    *infra.SettingsDB
		sessions *usecase.SessionManager
		monitor  *daemon.ScheduleMonitor
		now      time.Time
		mu       sync.Mutex
	)

	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	setClock := func(t time.Time) {
		mu.Lock()
		defer mu.Unlock()
		now = t
	}

	BeforeEach(func() {
		store = newStore(GinkgoT().TempDir())
		Expect(store.SaveSchedule(domain.Schedule{
			ID:              "night",
			Name:            "Night block",
			StartMinute:     1320, // 22:00
			EndMinute:       360,  // 06:00, wraps past midnight
			Days:            allDays(),
			Enabled:         true,
			BlockedApps:     map[string]bool{"com.example.game": true},
			BlockedWebsites: map[string]bool{},
		})).To(Succeed())

		logger := zap.NewNop()
		sessions = usecase.NewSessionManager(nil, logger)
		allow := policy.NewTemporaryAllowlist()
		resolver := policy.NewResolver(store, sessions, allow, logger)
		monitor = daemon.NewScheduleMonitor(daemon.DefaultScheduleMonitorConfig(), resolver, sessions, logger)
		monitor.SetNowFunc(clock)

		// 2024-03-04 is a Monday.
		setClock(time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC))
	})

	AfterEach(func() {
		store.Close()
	})

	It("starts and stops a scheduled session across the window", func() {
		monitor.CheckSchedules()
		Expect(sessions.Current().State).To(Equal(domain.StateIdle))

		setClock(time.Date(2024, 3, 4, 22, 30, 0, 0, time.UTC))
		monitor.CheckSchedules()
		session := sessions.Current()
		Expect(session.State).To(Equal(domain.StateScheduledFocus))
		Expect(session.Schedule.ID).To(Equal("night"))

		// Still inside the wrapped window after midnight.
		setClock(time.Date(2024, 3, 5, 2, 0, 0, 0, time.UTC))
		monitor.CheckSchedules()
		Expect(sessions.Current().State).To(Equal(domain.StateScheduledFocus))

		setClock(time.Date(2024, 3, 5, 6, 30, 0, 0, time.UTC))
		monitor.CheckSchedules()
		Expect(sessions.Current().State).To(Equal(domain.StateIdle))
	})

	It("does not stop a timed session when the schedule ends", func() {
		// The monitor must first see the schedule active, so that the
		// window ending is a transition it acts on.
		setClock(time.Date(2024, 3, 4, 22, 30, 0, 0, time.UTC))
		monitor.CheckSchedules()
		Expect(sessions.Current().State).To(Equal(domain.StateScheduledFocus))

		// User overrides with a timed session mid-window.
		sessions.StartTimed(domain.FocusProfile{
			ID: "deep", Name: "Deep work",
			BlockedApps: map[string]bool{}, BlockedWebsites: map[string]bool{},
		})

		setClock(time.Date(2024, 3, 5, 6, 30, 0, 0, time.UTC))
		monitor.CheckSchedules()
		Expect(sessions.Current().State).To(Equal(domain.StateTimedFocus))
	})
})
