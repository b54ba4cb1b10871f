package daemon

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dkpark22-ai/TurnOffApp/internal/domain"
	"github.com/dkpark22-ai/TurnOffApp/internal/policy"
)

// WebMonitor reacts to browser UI change events: it extracts a best-effort
// URL from the element tree, and triggers the block surface when the bare
// domain exactly matches a blocked entry. Event-driven, not polled; the
// accessibility probe invokes HandleEvent from its own goroutine.
//
// Website blocking only applies while a schedule or focus session is active;
// with everything idle the manual website list is not enforced.
type WebMonitor struct {
	browsers map[string]bool
	resolver *policy.Resolver
	allow    *policy.TemporaryAllowlist
	surface  domain.BlockSurface
	logger   *zap.Logger
	nowFunc  func() time.Time
}

// NewWebMonitor creates a browser URL monitor. browsers is the set of
// package ids treated as web browsers.
func NewWebMonitor(
	browsers []string,
	resolver *policy.Resolver,
	allow *policy.TemporaryAllowlist,
	surface domain.BlockSurface,
	logger *zap.Logger,
) *WebMonitor {
	set := make(map[string]bool, len(browsers))
	for _, b := range browsers {
		set[b] = true
	}
	return &WebMonitor{
		browsers: set,
		resolver: resolver,
		allow:    allow,
		surface:  surface,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// SetNowFunc overrides the clock (tests only).
func (m *WebMonitor) SetNowFunc(f func() time.Time) {
	m.nowFunc = f
}

// HandleEvent processes one "browser UI changed" notification.
// Extraction failure is "no actionable signal": nothing happens.
func (m *WebMonitor) HandleEvent(ev domain.UIEvent) {
	if ev.Root == nil || !m.browsers[ev.Package] {
		return
	}

	rawURL := extractURL(ev.Root)
	if rawURL == "" {
		return
	}

	now := m.nowFunc()
	if m.allow.IsWebsiteAllowed(now) {
		return
	}
	if !m.resolver.Enforcing(now) {
		return
	}

	current := normalizeDomain(rawURL)
	if current == "" {
		return
	}

	for blocked := range m.resolver.EffectiveBlockedWebsites(now) {
		if current == normalizeDomain(blocked) {
			m.logger.Info("blocking website",
				zap.String("domain", current),
				zap.String("browser", ev.Package))
			m.surface.ShowBlocked(domain.BlockReason{Website: current})
			return
		}
	}
}

// extractURL walks the element tree looking for an address bar. Elements
// identified as a URL bar win; a text input whose content looks URL-shaped
// (contains a dot, no spaces) is the fallback.
func extractURL(root *domain.UINode) string {
	node := findURLNode(root)
	if node == nil {
		return ""
	}
	return node.Text
}

func findURLNode(node *domain.UINode) *domain.UINode {
	if node == nil {
		return nil
	}

	if strings.Contains(node.ViewID, "url_bar") || strings.Contains(node.ViewID, "address_bar") {
		return node
	}

	// Less reliable, but works on browsers without a recognizable bar id.
	if strings.Contains(node.ClassName, "EditText") {
		if node.Text != "" && strings.Contains(node.Text, ".") && !strings.Contains(node.Text, " ") {
			return node
		}
	}

	for _, child := range node.Children {
		if found := findURLNode(child); found != nil {
			return found
		}
	}
	return nil
}

// normalizeDomain reduces a URL or stored blocklist entry to a bare,
// lowercase domain: scheme stripped, path dropped, "www." removed.
// Lowercasing happens first so scheme and "www." are matched regardless of
// the case the browser reports.
func normalizeDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimPrefix(s, "www.")
}
