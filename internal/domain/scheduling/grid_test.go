package scheduling

import (
	"errors"
	"reflect"
	"testing"
)

func window(opening, closing string, overtime *string) *ScheduleWindow {
	return &ScheduleWindow{OpeningHour: opening, CloseHour: closing, OvertimeStartHour: overtime}
}

func strPtr(s string) *string { return &s }

func gridHours(t *testing.T, w *ScheduleWindow, duration int) []string {
	t.Helper()
	grid, err := expandWindow(w, duration)
	if err != nil {
		t.Fatalf("expandWindow: %v", err)
	}
	var hours []string
	for _, g := range grid {
		hours = append(hours, g.hour)
	}
	return hours
}

func TestParseHour(t *testing.T) {
	min, err := parseHour("09:30")
	if err != nil {
		t.Fatalf("parseHour: %v", err)
	}
	if min != 570 {
		t.Errorf("expected 570 minutes, got %d", min)
	}

	for _, bad := range []string{"9:30", "24:00", "12:60", "noon", ""} {
		if _, err := parseHour(bad); !errors.Is(err, ErrValidation) {
			t.Errorf("parseHour(%q): expected validation error, got %v", bad, err)
		}
	}
}

func TestExpandWindow(t *testing.T) {
	hours := gridHours(t, window("09:00", "12:00", nil), 30)
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	if !reflect.DeepEqual(hours, want) {
		t.Errorf("expected %v, got %v", want, hours)
	}
}

func TestExpandWindowExcludesCloseHour(t *testing.T) {
	// A candidate landing exactly on the close hour is excluded; one landing
	// just before stays.
	hours := gridHours(t, window("09:00", "10:30", nil), 45)
	want := []string{"09:00", "09:45"}
	if !reflect.DeepEqual(hours, want) {
		t.Errorf("expected %v, got %v", want, hours)
	}
}

func TestExpandWindowOvertimeTagging(t *testing.T) {
	grid, err := expandWindow(window("09:00", "12:00", strPtr("11:00")), 30)
	if err != nil {
		t.Fatalf("expandWindow: %v", err)
	}
	for _, g := range grid {
		wantOvertime := g.minutes >= 11*60
		if g.overtime != wantOvertime {
			t.Errorf("candidate %s: overtime = %v, want %v", g.hour, g.overtime, wantOvertime)
		}
	}
}

func TestExpandWindowInvertedBoundsYieldEmptyGrid(t *testing.T) {
	for _, w := range []*ScheduleWindow{
		window("12:00", "09:00", nil),
		window("10:00", "10:00", nil),
	} {
		grid, err := expandWindow(w, 30)
		if err != nil {
			t.Fatalf("expandWindow(%s-%s): %v", w.OpeningHour, w.CloseHour, err)
		}
		if len(grid) != 0 {
			t.Errorf("expandWindow(%s-%s): expected empty grid, got %d candidates",
				w.OpeningHour, w.CloseHour, len(grid))
		}
	}
}

func TestExpandWindowRejectsNonPositiveDuration(t *testing.T) {
	if _, err := expandWindow(window("09:00", "12:00", nil), 0); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for zero duration, got %v", err)
	}
	if _, err := expandWindow(window("09:00", "12:00", nil), -15); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for negative duration, got %v", err)
	}
}

func TestAlignment(t *testing.T) {
	w := window("09:00", "12:00", strPtr("11:00"))

	cases := []struct {
		hour     string
		bookable bool
	}{
		{"09:00", true},
		{"10:30", true},
		{"09:15", false}, // off grid
		{"11:00", false}, // on grid but overtime
		{"11:30", false},
		{"12:00", false}, // close hour is exclusive
		{"08:30", false}, // before opening
	}
	for _, tc := range cases {
		ok, err := alignment(w, 30, tc.hour)
		if err != nil {
			t.Fatalf("alignment(%s): %v", tc.hour, err)
		}
		if ok != tc.bookable {
			t.Errorf("alignment(%s) = %v, want %v", tc.hour, ok, tc.bookable)
		}
	}
}

func TestNearestCandidates(t *testing.T) {
	w := window("09:00", "12:00", strPtr("11:00"))

	got := nearestCandidates(w, 30, "09:15", 2)
	want := []string{"09:00", "09:30"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	// Overtime candidates never suggested.
	got = nearestCandidates(w, 30, "11:10", 1)
	want = []string{"10:30"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestWeekdayOf(t *testing.T) {
	day, err := weekdayOf("2025-06-02")
	if err != nil {
		t.Fatalf("weekdayOf: %v", err)
	}
	if day != Monday {
		t.Errorf("2025-06-02 should be monday, got %s", day)
	}

	if _, err := weekdayOf("02/06/2025"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for bad date format, got %v", err)
	}
}
