package timeutil

import "time"

const DayLayout = "2006-01-02"

func StartOfDay(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, value.Location())
}

func DayKey(value time.Time) string {
	return value.Format(DayLayout)
}

func ParseDay(value string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, value, time.Local)
}

// DaysInRange returns every calendar day from from to to, inclusive, in
// ascending order. An inverted range yields an empty slice.
func DaysInRange(from, to time.Time) []time.Time {
	from = StartOfDay(from)
	to = StartOfDay(to)

	days := make([]time.Time, 0, 7)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	return days
}

// WeekOf returns the Monday-to-Sunday week containing the given day.
func WeekOf(value time.Time) (time.Time, time.Time) {
	day := StartOfDay(value)
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 6)
}
