package localtime

import (
	"errors"
	"testing"
	"time"
)

func TestLocalToUTC_SofiaAcrossDST(t *testing.T) {
	// 2024-03-31: EEST (+03:00) from 03:00 local.
	summer, err := LocalToUTC("2024-03-31", "09:00", "Europe/Sofia")
	if err != nil {
		t.Fatalf("LocalToUTC: %v", err)
	}
	if want := time.Date(2024, 3, 31, 6, 0, 0, 0, time.UTC); !summer.Equal(want) {
		t.Fatalf("expected %s, got %s", want, summer)
	}

	// 2024-10-27: back to EET (+02:00) from 04:00 local.
	winter, err := LocalToUTC("2024-10-27", "09:00", "Europe/Sofia")
	if err != nil {
		t.Fatalf("LocalToUTC: %v", err)
	}
	if want := time.Date(2024, 10, 27, 7, 0, 0, 0, time.UTC); !winter.Equal(want) {
		t.Fatalf("expected %s, got %s", want, winter)
	}
}

func TestLocalToUTC_Errors(t *testing.T) {
	if _, err := LocalToUTC("2024-13-01", "09:00", "Europe/Sofia"); !errors.Is(err, ErrInvalidTemporalInput) {
		t.Fatalf("expected ErrInvalidTemporalInput for bad date, got %v", err)
	}
	if _, err := LocalToUTC("2024-05-01", "9am", "Europe/Sofia"); !errors.Is(err, ErrInvalidTemporalInput) {
		t.Fatalf("expected ErrInvalidTemporalInput for bad time, got %v", err)
	}
	if _, err := LocalToUTC("2024-05-01", "09:00", "Mars/Olympus"); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("expected ErrInvalidTimezone, got %v", err)
	}
	if _, err := LoadZone(""); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("expected ErrInvalidTimezone for empty zone, got %v", err)
	}
}

func TestParseClockAcceptsSecondsAndEndOfDay(t *testing.T) {
	h, m, err := ParseClock("18:30:00")
	if err != nil || h != 18 || m != 30 {
		t.Fatalf("expected 18:30, got %d:%d err=%v", h, m, err)
	}
	h, _, err = ParseClock("24:00")
	if err != nil || h != 24 {
		t.Fatalf("expected 24:00 accepted, got %d err=%v", h, err)
	}
}

func TestWeekdayOf(t *testing.T) {
	// 2024-03-31 is a Sunday; DST starts that morning in Sofia.
	wd, err := WeekdayOf("2024-03-31", "Europe/Sofia")
	if err != nil {
		t.Fatalf("WeekdayOf: %v", err)
	}
	if wd != 0 {
		t.Fatalf("expected Sunday (0), got %d", wd)
	}
	wd, err = WeekdayOf("2024-04-06", "Pacific/Kiritimati")
	if err != nil {
		t.Fatalf("WeekdayOf: %v", err)
	}
	if wd != 6 {
		t.Fatalf("expected Saturday (6), got %d", wd)
	}
}

func TestDayWindowIsExclusiveAndDSTAware(t *testing.T) {
	loc, err := LoadZone("Europe/Sofia")
	if err != nil {
		t.Fatal(err)
	}
	start, end, err := DayWindow("2024-03-31", loc)
	if err != nil {
		t.Fatalf("DayWindow: %v", err)
	}
	if want := time.Date(2024, 3, 30, 22, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("expected start %s, got %s", want, start)
	}
	if want := time.Date(2024, 3, 31, 21, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("expected end %s, got %s", want, end)
	}
	if got := end.Sub(start); got != 23*time.Hour {
		t.Fatalf("expected a 23h day, got %s", got)
	}
}

func TestWeekWindowStartsMonday(t *testing.T) {
	loc := time.UTC
	for _, date := range []string{"2024-05-06", "2024-05-08", "2024-05-12"} {
		start, end, err := WeekWindow(date, loc)
		if err != nil {
			t.Fatalf("WeekWindow(%s): %v", date, err)
		}
		if want := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
			t.Fatalf("%s: expected week start %s, got %s", date, want, start)
		}
		if want := time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
			t.Fatalf("%s: expected week end %s, got %s", date, want, end)
		}
	}
}

func TestLabel(t *testing.T) {
	loc, _ := LoadZone("Europe/Sofia")
	at := time.Date(2024, 7, 1, 6, 30, 0, 0, time.UTC)
	if got := Label(at, loc); got != "09:30" {
		t.Fatalf("expected 09:30, got %s", got)
	}
	if got := AddMinutes(at, 45); !got.Equal(at.Add(45 * time.Minute)) {
		t.Fatalf("AddMinutes mismatch: %s", got)
	}
}
