// Package firetime models the half-day time step used by fire tracking.
//
// A step is (year, month, day, AM|PM). Satellite overpasses are binned into
// two slots per day; the AM slot maps to 00:00 UTC and the PM slot to
// 12:00 UTC, so differences between steps are multiples of half a day.
package firetime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// AMPM is the half-day indicator of a time step.
type AMPM string

const (
	AM AMPM = "AM"
	PM AMPM = "PM"
)

// ErrInvalidStep is returned when a time step does not name a real calendar half-day.
var ErrInvalidStep = errors.New("invalid time step")

// TimeStep identifies one half-day tracking slot.
type TimeStep struct {
	Year  int
	Month int
	Day   int
	AMPM  AMPM
}

// New builds a validated TimeStep.
func New(year, month, day int, ampm AMPM) (TimeStep, error) {
	t := TimeStep{Year: year, Month: month, Day: day, AMPM: ampm}
	if err := t.Validate(); err != nil {
		return TimeStep{}, err
	}
	return t, nil
}

// FromTime bins a detection instant into its half-day slot (UTC).
func FromTime(tm time.Time) TimeStep {
	tm = tm.UTC()
	ampm := AM
	if tm.Hour() >= 12 {
		ampm = PM
	}
	return TimeStep{Year: tm.Year(), Month: int(tm.Month()), Day: tm.Day(), AMPM: ampm}
}

// Validate checks that the step names an existing date and a known half-day.
func (t TimeStep) Validate() error {
	if t.AMPM != AM && t.AMPM != PM {
		return fmt.Errorf("%w: ampm %q", ErrInvalidStep, t.AMPM)
	}
	d := time.Date(t.Year, time.Month(t.Month), t.Day, 0, 0, 0, 0, time.UTC)
	if d.Year() != t.Year || int(d.Month()) != t.Month || d.Day() != t.Day {
		return fmt.Errorf("%w: no such date %04d-%02d-%02d", ErrInvalidStep, t.Year, t.Month, t.Day)
	}
	return nil
}

// IsZero reports whether t is the zero value.
func (t TimeStep) IsZero() bool {
	return t == TimeStep{}
}

// Date returns midnight UTC of the step's calendar day.
func (t TimeStep) Date() time.Time {
	return time.Date(t.Year, time.Month(t.Month), t.Day, 0, 0, 0, 0, time.UTC)
}

// Time returns the calendar instant of the step: 00:00 UTC for AM, 12:00 UTC for PM.
func (t TimeStep) Time() time.Time {
	d := t.Date()
	if t.AMPM == PM {
		return d.Add(12 * time.Hour)
	}
	return d
}

// DayOfYear returns the ordinal day of the step's date.
func (t TimeStep) DayOfYear() int {
	return t.Date().YearDay()
}

// Next returns the following half-day step.
func (t TimeStep) Next() TimeStep {
	return FromTime(t.Time().Add(12 * time.Hour))
}

// Prev returns the preceding half-day step.
func (t TimeStep) Prev() TimeStep {
	return FromTime(t.Time().Add(-12 * time.Hour))
}

// IsYearEnd reports whether t is the last step of its year (Dec 31 PM).
func (t TimeStep) IsYearEnd() bool {
	return t.Month == 12 && t.Day == 31 && t.AMPM == PM
}

// Compare returns -1, 0 or +1 as t is before, equal to, or after u.
func (t TimeStep) Compare(u TimeStep) int {
	return t.Time().Compare(u.Time())
}

// Before reports whether t is strictly earlier than u.
func (t TimeStep) Before(u TimeStep) bool {
	return t.Compare(u) < 0
}

// After reports whether t is strictly later than u.
func (t TimeStep) After(u TimeStep) bool {
	return t.Compare(u) > 0
}

func (t TimeStep) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %s", t.Year, t.Month, t.Day, t.AMPM)
}

// Diff returns the elapsed time from t1 to t2 in days, in half-day increments.
// It is negative when t2 precedes t1.
func Diff(t1, t2 TimeStep) float64 {
	return t2.Time().Sub(t1.Time()).Hours() / 24
}

// MarshalJSON encodes the step as [year, month, day, "AM"|"PM"].
func (t TimeStep) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.Year, t.Month, t.Day, string(t.AMPM)})
}

// UnmarshalJSON decodes the [year, month, day, "AM"|"PM"] form.
func (t *TimeStep) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("decode time step: %w", err)
	}
	if len(parts) != 4 {
		return fmt.Errorf("%w: expected 4 components, got %d", ErrInvalidStep, len(parts))
	}
	var out TimeStep
	for i, dst := range []*int{&out.Year, &out.Month, &out.Day} {
		if err := json.Unmarshal(parts[i], dst); err != nil {
			return fmt.Errorf("decode time step component %d: %w", i, err)
		}
	}
	var ampm string
	if err := json.Unmarshal(parts[3], &ampm); err != nil {
		return fmt.Errorf("decode time step ampm: %w", err)
	}
	out.AMPM = AMPM(ampm)
	if err := out.Validate(); err != nil {
		return err
	}
	*t = out
	return nil
}
