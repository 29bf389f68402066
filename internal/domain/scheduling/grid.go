package scheduling

import (
	"fmt"
	"time"
)

const (
	hourLayout = "15:04"
	dateLayout = "2006-01-02"
)

// parseHour converts an "HH:MM" wall-clock value into minutes since midnight.
func parseHour(s string) (int, error) {
	t, err := time.Parse(hourLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: hour %q is not HH:MM", ErrValidation, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatHour(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// weekdayOf derives the symbolic day of week from a "2006-01-02" date.
// Pure calendar arithmetic, no timezone conversion.
func weekdayOf(date string) (Weekday, error) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrValidation, date)
	}
	return weekdays[t.Weekday()], nil
}

// gridTime is one candidate of an expanded window grid.
type gridTime struct {
	minutes  int
	hour     string
	overtime bool
}

// expandWindow generates the candidate times of a window for a slot duration:
// openingHour, openingHour+d, ... strictly below closeHour. Candidates at or
// after overtimeStartHour are tagged overtime. A close hour at or before the
// opening hour yields an empty grid and no error; the caller decides whether
// to log the inconsistency.
func expandWindow(w *ScheduleWindow, durationMinutes int) ([]gridTime, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %d", ErrValidation, durationMinutes)
	}

	open, err := parseHour(w.OpeningHour)
	if err != nil {
		return nil, err
	}
	closing, err := parseHour(w.CloseHour)
	if err != nil {
		return nil, err
	}

	overtimeStart := -1
	if w.OvertimeStartHour != nil {
		overtimeStart, err = parseHour(*w.OvertimeStartHour)
		if err != nil {
			return nil, err
		}
	}

	var grid []gridTime
	for t := open; t < closing; t += durationMinutes {
		grid = append(grid, gridTime{
			minutes:  t,
			hour:     formatHour(t),
			overtime: overtimeStart >= 0 && t >= overtimeStart,
		})
	}
	return grid, nil
}

// alignment checks whether hour is a bookable candidate of the window grid.
// Overtime candidates are on the grid but not bookable.
func alignment(w *ScheduleWindow, durationMinutes int, hour string) (bookable bool, err error) {
	h, err := parseHour(hour)
	if err != nil {
		return false, err
	}

	grid, err := expandWindow(w, durationMinutes)
	if err != nil {
		return false, err
	}
	for _, g := range grid {
		if g.minutes == h {
			return !g.overtime, nil
		}
	}
	return false, nil
}

// nearestCandidates returns up to n bookable grid times closest to hour,
// used to enrich misalignment errors.
func nearestCandidates(w *ScheduleWindow, durationMinutes int, hour string, n int) []string {
	h, err := parseHour(hour)
	if err != nil {
		return nil
	}
	grid, err := expandWindow(w, durationMinutes)
	if err != nil {
		return nil
	}

	var bookable []gridTime
	for _, g := range grid {
		if !g.overtime {
			bookable = append(bookable, g)
		}
	}
	if len(bookable) == 0 {
		return nil
	}

	// Selection by distance; grids are small so quadratic is fine.
	var result []string
	picked := make(map[int]bool)
	for len(result) < n && len(result) < len(bookable) {
		best := -1
		for i, g := range bookable {
			if picked[i] {
				continue
			}
			if best < 0 || abs(g.minutes-h) < abs(bookable[best].minutes-h) {
				best = i
			}
		}
		picked[best] = true
		result = append(result, bookable[best].hour)
	}
	return result
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
