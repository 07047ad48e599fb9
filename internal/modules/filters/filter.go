package filters

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidRange is returned when a range cannot be parsed.
var ErrInvalidRange = errors.New("invalid date range")

// FilterState is the canonical analytics selection. Values are immutable:
// every With* method returns a modified copy.
type FilterState struct {
	DateFrom            *time.Time
	DateTo              *time.Time
	Preset              Preset
	SelectedAccountID   *int
	SelectedInstruments []string // sorted, unique
}

// New returns the session-start filter: last 30 days, all accounts.
func New(now time.Time) FilterState {
	f, _ := FilterState{}.WithPreset(DefaultPreset, now)
	return f
}

// WithPreset selects a preset and replaces the date range with its resolution.
func (f FilterState) WithPreset(p Preset, now time.Time) (FilterState, error) {
	from, to, err := p.Resolve(now)
	if err != nil {
		return f, err
	}
	f.Preset = p
	f.DateFrom, f.DateTo = from, to
	return f, nil
}

// WithDateRange sets a manually picked range and switches to the custom preset.
// A reversed range is corrected by swapping the ends.
func (f FilterState) WithDateRange(from, to *time.Time) FilterState {
	if from != nil {
		d := startOfDay(*from)
		from = &d
	}
	if to != nil {
		d := startOfDay(*to)
		to = &d
	}
	if from != nil && to != nil && from.After(*to) {
		from, to = to, from
	}
	f.DateFrom, f.DateTo = from, to
	f.Preset = PresetCustom
	return f
}

// Normalize makes the preset agree with the dates. A named preset with no
// dates, or with the dates it resolves to, is re-resolved against now. Any
// other combination keeps the dates as a manual range under custom.
func (f FilterState) Normalize(now time.Time) FilterState {
	if f.Preset != PresetCustom && f.Preset != "" {
		resolved, err := f.WithPreset(f.Preset, now)
		if err == nil {
			if f.DateFrom == nil && f.DateTo == nil {
				return resolved
			}
			if resolved.FromString() == f.FromString() && resolved.ToString() == f.ToString() {
				return resolved
			}
		}
	}
	return f.WithDateRange(f.DateFrom, f.DateTo)
}

// WithAccount selects one account, or all accounts when id is nil.
func (f FilterState) WithAccount(id *int) FilterState {
	if id != nil {
		v := *id
		id = &v
	}
	f.SelectedAccountID = id
	return f
}

// WithInstruments replaces the instrument set.
func (f FilterState) WithInstruments(instruments []string) FilterState {
	f.SelectedInstruments = normalizeInstruments(instruments)
	return f
}

// Refresh re-resolves a relative preset against now, so "today" keeps
// meaning today across midnight. Custom and allTime are unchanged.
func (f FilterState) Refresh(now time.Time) FilterState {
	if f.Preset == PresetCustom || f.Preset == PresetAllTime || f.Preset == "" {
		return f
	}
	refreshed, err := f.WithPreset(f.Preset, now)
	if err != nil {
		return f
	}
	return refreshed
}

// Validate checks the ordering invariant.
func (f FilterState) Validate() error {
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return fmt.Errorf("%w: from %s is after to %s", ErrInvalidRange,
			f.DateFrom.Format(DateLayout), f.DateTo.Format(DateLayout))
	}
	return nil
}

// FromString returns the ISO date of DateFrom or "" when unbounded.
func (f FilterState) FromString() string {
	return formatDate(f.DateFrom)
}

// ToString returns the ISO date of DateTo or "" when unbounded.
func (f FilterState) ToString() string {
	return formatDate(f.DateTo)
}

// Equal reports whether two filters select the same data.
func (f FilterState) Equal(other FilterState) bool {
	if f.Preset != other.Preset || f.FromString() != other.FromString() || f.ToString() != other.ToString() {
		return false
	}
	if (f.SelectedAccountID == nil) != (other.SelectedAccountID == nil) {
		return false
	}
	if f.SelectedAccountID != nil && *f.SelectedAccountID != *other.SelectedAccountID {
		return false
	}
	if len(f.SelectedInstruments) != len(other.SelectedInstruments) {
		return false
	}
	for i := range f.SelectedInstruments {
		if f.SelectedInstruments[i] != other.SelectedInstruments[i] {
			return false
		}
	}
	return true
}

// Wire is the transport form of a FilterState with ISO calendar dates.
type Wire struct {
	DateFrom            *string  `json:"dateFrom" msgpack:"dateFrom"`
	DateTo              *string  `json:"dateTo" msgpack:"dateTo"`
	Preset              Preset   `json:"preset" msgpack:"preset"`
	SelectedAccountID   *int     `json:"selectedAccountId" msgpack:"selectedAccountId"`
	SelectedInstruments []string `json:"selectedInstruments" msgpack:"selectedInstruments"`
}

// Wire returns the transport form.
func (f FilterState) Wire() Wire {
	out := Wire{
		Preset:              f.Preset,
		SelectedAccountID:   f.SelectedAccountID,
		SelectedInstruments: f.SelectedInstruments,
	}
	if out.SelectedInstruments == nil {
		out.SelectedInstruments = []string{}
	}
	if f.DateFrom != nil {
		s := f.FromString()
		out.DateFrom = &s
	}
	if f.DateTo != nil {
		s := f.ToString()
		out.DateTo = &s
	}
	return out
}

// MarshalJSON encodes the wire form.
func (f FilterState) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Wire())
}

// UnmarshalJSON decodes the wire form. A missing preset means custom.
func (f *FilterState) UnmarshalJSON(data []byte) error {
	var in Wire
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	from, err := parseDate(in.DateFrom)
	if err != nil {
		return err
	}
	to, err := parseDate(in.DateTo)
	if err != nil {
		return err
	}

	preset := in.Preset
	if preset == "" {
		preset = PresetCustom
	}
	if _, err := ParsePreset(string(preset)); err != nil {
		return err
	}

	*f = FilterState{
		DateFrom:            from,
		DateTo:              to,
		Preset:              preset,
		SelectedAccountID:   in.SelectedAccountID,
		SelectedInstruments: normalizeInstruments(in.SelectedInstruments),
	}
	return nil
}

// ParseDate parses an ISO calendar date; an empty string yields nil.
func ParseDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return parseDate(&s)
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(*s), time.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

func normalizeInstruments(instruments []string) []string {
	if len(instruments) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(instruments))
	out := make([]string, 0, len(instruments))
	for _, i := range instruments {
		i = strings.TrimSpace(i)
		if i == "" || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
