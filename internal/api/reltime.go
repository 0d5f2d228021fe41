package api

import (
	"regexp"
	"strconv"
	"time"
)

// relativeOffsetRe matches signed offsets like "-7d", "3h", "-30m".
// Units: d days, M months, h hours, m minutes, s seconds.
var relativeOffsetRe = regexp.MustCompile(`^(-?\d+)([dMhms])$`)

// convertRelativeTime resolves named presets and signed offsets against
// now, in now's location. Named presets land on local calendar boundaries
// ("today" is local midnight). Unresolvable input returns ok=false so the
// caller can fall back to literal timestamp parsing.
func convertRelativeTime(spec string, now time.Time) (time.Time, bool) {
	loc := now.Location()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch spec {
	case "today":
		return midnight, true
	case "yesterday":
		return midnight.AddDate(0, 0, -1), true
	case "week":
		return midnight.AddDate(0, 0, -int(now.Weekday())), true
	case "lastWeek":
		return midnight.AddDate(0, 0, -int(now.Weekday())-7), true
	case "month":
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc), true
	case "lastMonth":
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, -1, 0), true
	case "year":
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, loc), true
	case "lastYear":
		return time.Date(now.Year()-1, 1, 1, 0, 0, 0, 0, loc), true
	case "hour":
		return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, loc), true
	case "lastHour":
		return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, loc).Add(-time.Hour), true
	}

	m := relativeOffsetRe.FindStringSubmatch(spec)
	if m == nil {
		return time.Time{}, false
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}

	switch m[2] {
	case "d":
		return now.AddDate(0, 0, n), true
	case "M":
		return now.AddDate(0, n, 0), true
	case "h":
		return now.Add(time.Duration(n) * time.Hour), true
	case "m":
		return now.Add(time.Duration(n) * time.Minute), true
	case "s":
		return now.Add(time.Duration(n) * time.Second), true
	}
	return time.Time{}, false
}

// parseTimeParam resolves a dateFrom/dateTo parameter: relative specs
// first, then millisecond epoch timestamps, then RFC 3339.
func parseTimeParam(spec string, now time.Time) (time.Time, bool) {
	if t, ok := convertRelativeTime(spec, now); ok {
		return t, true
	}
	if ms, err := strconv.ParseInt(spec, 10, 64); err == nil {
		return time.UnixMilli(ms), true
	}
	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t, true
	}
	return time.Time{}, false
}
