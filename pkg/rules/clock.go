package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// weekdayNames maps time.Weekday to the lowercase three-letter names used
// in bedtime and schedule day sets.
var weekdayNames = map[time.Weekday]string{
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
	time.Sunday:    "sun",
}

// WeekdayName returns the config-form name for a weekday.
func WeekdayName(d time.Weekday) string {
	return weekdayNames[d]
}

// dayMatches reports whether now's weekday is in the day set. An empty set
// matches every day.
func dayMatches(days []string, now time.Time) bool {
	if len(days) == 0 {
		return true
	}
	today := WeekdayName(now.Weekday())
	for _, d := range days {
		if strings.EqualFold(d, today) {
			return true
		}
	}
	return false
}

// parseHHMM parses a "HH:MM" local time-of-day into minutes since midnight.
func parseHHMM(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time-of-day %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// minutesIntoDay returns now's offset from local midnight in whole minutes,
// plus the fractional seconds for deadline math.
func minutesIntoDay(now time.Time) float64 {
	return float64(now.Hour())*60 + float64(now.Minute()) + float64(now.Second())/60
}

// LocalDate formats a timestamp as its local calendar date. Usage rollover
// and warning dedup both key on this.
func LocalDate(t time.Time) string {
	return t.Format("2006-01-02")
}
