package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseClock converts a "HH:mm" wall-clock string to a minute of day
// (0..1439).
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q: want HH:mm", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:mm", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:mm", s)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return hour*60 + minute, nil
}

// FormatClock converts a minute of day back to "HH:mm".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseDays converts a comma-separated day list ("mon,tue,fri" or "all")
// to the persisted weekday numbering, Sunday=1 .. Saturday=7.
func ParseDays(s string) (map[int]bool, error) {
	names := map[string]int{
		"sun": 1, "mon": 2, "tue": 3, "wed": 4, "thu": 5, "fri": 6, "sat": 7,
	}

	days := make(map[int]bool)
	if strings.EqualFold(strings.TrimSpace(s), "all") {
		for _, d := range names {
			days[d] = true
		}
		return days, nil
	}

	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		day, ok := names[name]
		if !ok {
			return nil, fmt.Errorf("unknown day %q", part)
		}
		days[day] = true
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no days given")
	}
	return days, nil
}
