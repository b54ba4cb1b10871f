// Package infra implements infrastructure concerns (usage probe, settings
// store, notification surfaces).
package infra

import (
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/dkpark22-ai/TurnOffApp/internal/domain"
)

// ProcessProbe implements domain.UsageProbe using gopsutil. It is a
// best-effort foreground signal on a desktop session: processes started
// inside the window are treated as "recently used", newest first wins.
// An empty result means no signal, which callers skip.
type ProcessProbe struct{}

// NewProcessProbe creates a process-based usage probe.
func NewProcessProbe() domain.UsageProbe {
	return &ProcessProbe{}
}

// Candidates returns processes whose start time falls inside the window.
func (p *ProcessProbe) Candidates(windowStart, windowEnd time.Time) ([]domain.AppUsage, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	var usage []domain.AppUsage
	for _, proc := range procs {
		name, err := proc.Name()
		if err != nil || name == "" {
			continue // Process may have exited
		}

		createdMs, err := proc.CreateTime()
		if err != nil {
			continue
		}
		created := time.UnixMilli(createdMs)
		if created.Before(windowStart) || created.After(windowEnd) {
			continue
		}

		usage = append(usage, domain.AppUsage{
			Package:    name,
			LastUsedAt: created,
		})
	}

	return usage, nil
}

// Ensure ProcessProbe implements domain.UsageProbe.
var _ domain.UsageProbe = (*ProcessProbe)(nil)

// ProcessDirectory implements domain.AppDirectory over a static name map,
// falling back to the raw id for anything unknown.
type ProcessDirectory struct {
	names map[string]string
}

// NewProcessDirectory creates an app directory with the given display names.
func NewProcessDirectory(names map[string]string) domain.AppDirectory {
	if names == nil {
		names = make(map[string]string)
	}
	return &ProcessDirectory{names: names}
}

// DisplayName returns the configured display name, or the raw id.
func (d *ProcessDirectory) DisplayName(pkg string) (string, error) {
	if name, ok := d.names[pkg]; ok {
		return name, nil
	}
	return pkg, nil
}

// Ensure ProcessDirectory implements domain.AppDirectory.
var _ domain.AppDirectory = (*ProcessDirectory)(nil)
