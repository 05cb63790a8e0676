package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Weekday is a day-of-week that unmarshals from short or full English day
// names ("mon" or "monday").
type Weekday time.Weekday

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday parses a day name.
func ParseWeekday(s string) (Weekday, error) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown day of week %q", s)
	}
	return Weekday(d), nil
}

func (d Weekday) String() string {
	return strings.ToLower(time.Weekday(d).String()[:3])
}

func (d Weekday) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Weekday) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseWeekday(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ContainsDay reports whether days includes the given weekday.
func ContainsDay(days []Weekday, day time.Weekday) bool {
	for _, d := range days {
		if time.Weekday(d) == day {
			return true
		}
	}
	return false
}
