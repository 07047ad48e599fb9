// Package filters holds the user-editable analytics filter and the date
// presets that resolve to concrete ranges.
package filters

import (
	"fmt"
	"time"
)

// Preset is a named date range selection.
type Preset string

const (
	PresetToday       Preset = "today"
	PresetYesterday   Preset = "yesterday"
	PresetLast7Days   Preset = "last7days"
	PresetLast30Days  Preset = "last30days"
	PresetThisMonth   Preset = "thisMonth"
	PresetLastMonth   Preset = "lastMonth"
	PresetThisQuarter Preset = "thisQuarter"
	PresetLastQuarter Preset = "lastQuarter"
	PresetThisYear    Preset = "thisYear"
	PresetLastYear    Preset = "lastYear"
	PresetAllTime     Preset = "allTime"
	PresetCustom      Preset = "custom"
)

// DefaultPreset is applied at session start.
const DefaultPreset = PresetLast30Days

// DateLayout is the ISO 8601 calendar date layout used on the wire.
const DateLayout = "2006-01-02"

var presets = []Preset{
	PresetToday, PresetYesterday, PresetLast7Days, PresetLast30Days,
	PresetThisMonth, PresetLastMonth, PresetThisQuarter, PresetLastQuarter,
	PresetThisYear, PresetLastYear, PresetAllTime, PresetCustom,
}

// Presets returns every preset in display order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// ParsePreset validates a preset name.
func ParsePreset(s string) (Preset, error) {
	for _, p := range presets {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown preset %q", s)
}

func (p Preset) String() string {
	return string(p)
}

// Resolve returns the inclusive date range a preset covers relative to now.
// allTime is unbounded on both ends; custom has no range of its own.
func (p Preset) Resolve(now time.Time) (from, to *time.Time, err error) {
	today := startOfDay(now)

	switch p {
	case PresetToday:
		return bounds(today, today)
	case PresetYesterday:
		y := today.AddDate(0, 0, -1)
		return bounds(y, y)
	case PresetLast7Days:
		return bounds(today.AddDate(0, 0, -6), today)
	case PresetLast30Days:
		return bounds(today.AddDate(0, 0, -29), today)
	case PresetThisMonth:
		return bounds(startOfMonth(today), today)
	case PresetLastMonth:
		start := startOfMonth(today).AddDate(0, -1, 0)
		return bounds(start, start.AddDate(0, 1, -1))
	case PresetThisQuarter:
		return bounds(startOfQuarter(today), today)
	case PresetLastQuarter:
		start := startOfQuarter(today).AddDate(0, -3, 0)
		return bounds(start, start.AddDate(0, 3, -1))
	case PresetThisYear:
		return bounds(startOfYear(today), today)
	case PresetLastYear:
		start := startOfYear(today).AddDate(-1, 0, 0)
		return bounds(start, start.AddDate(1, 0, -1))
	case PresetAllTime:
		return nil, nil, nil
	case PresetCustom:
		return nil, nil, fmt.Errorf("preset %q has no implicit range", p)
	default:
		return nil, nil, fmt.Errorf("unknown preset %q", p)
	}
}

func bounds(from, to time.Time) (*time.Time, *time.Time, error) {
	return &from, &to, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func startOfQuarter(t time.Time) time.Time {
	month := time.Month((int(t.Month())-1)/3*3 + 1)
	return time.Date(t.Year(), month, 1, 0, 0, 0, 0, t.Location())
}

func startOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}
