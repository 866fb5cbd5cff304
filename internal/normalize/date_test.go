package normalize

import "testing"

func TestMonthName(t *testing.T) {
	if got := MonthName(3); got != "MARZO" {
		t.Fatalf("MonthName(3) = %q", got)
	}
	if got := MonthName(12); got != "DICIEMBRE" {
		t.Fatalf("MonthName(12) = %q", got)
	}
	for _, month := range []int{0, 13, -1} {
		if got := MonthName(month); got != UnknownMonth {
			t.Fatalf("MonthName(%d) = %q, want %q", month, got, UnknownMonth)
		}
	}
}

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("2025-11-05", ISODate, DayMonthYear)
	if !ok || got != "05/11/2025" {
		t.Fatalf("ParseDate = %q, %v", got, ok)
	}
	if got, ok := ParseDate("05/11/2025", ISODate, DayMonthYear); ok || got != "" {
		t.Fatalf("expected failure, got %q, %v", got, ok)
	}
}

func TestBilledMonth(t *testing.T) {
	for _, in := range []string{"31/10/2025", "31-10-2025"} {
		got, err := BilledMonth(in)
		if err != nil {
			t.Fatalf("BilledMonth(%q): %v", in, err)
		}
		if got != "OCTUBRE" {
			t.Fatalf("BilledMonth(%q) = %q", in, got)
		}
	}
	if _, err := BilledMonth("N/A"); err == nil {
		t.Fatalf("expected error for N/A")
	}
}

func TestDaysBetween(t *testing.T) {
	days, err := DaysBetween("01/10/2025", "31/10/2025")
	if err != nil {
		t.Fatalf("days between: %v", err)
	}
	if days != 30 {
		t.Fatalf("expected 30 days, got %d", days)
	}
	days, err = DaysBetween("31-10-2025", "01/10/2025")
	if err != nil {
		t.Fatalf("days between reversed: %v", err)
	}
	if days != 30 {
		t.Fatalf("expected absolute 30 days, got %d", days)
	}
	if _, err := DaysBetween("", "01/10/2025"); err == nil {
		t.Fatalf("expected error for empty start")
	}
}

func TestParseDayMonthYearWithoutLeadingZeros(t *testing.T) {
	for _, in := range []string{"5/03/2024", "05/3/2024", "5-3-2024", "05/03/2024"} {
		got, err := ParseDayMonthYear(in)
		if err != nil {
			t.Fatalf("ParseDayMonthYear(%q): %v", in, err)
		}
		if got.Format(DayMonthYear) != "05/03/2024" {
			t.Fatalf("ParseDayMonthYear(%q) = %s", in, got.Format(DayMonthYear))
		}
	}
	for _, in := range []string{"31/02/2024", "2024/03/05", ""} {
		if _, err := ParseDayMonthYear(in); err == nil {
			t.Fatalf("ParseDayMonthYear(%q) should fail", in)
		}
	}
}
