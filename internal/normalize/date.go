package normalize

import (
	"errors"
	"strings"
	"time"
)

const (
	// DayMonthYear is the portal date layout (DD/MM/YYYY).
	DayMonthYear = "02/01/2006"
	// ISODate is the layout used by structured documents.
	ISODate = "2006-01-02"

	// dayMonthYearLoose also reads days and months without a leading zero.
	dayMonthYearLoose = "2/1/2006"
)

// UnknownMonth is returned for month numbers outside 1..12.
const UnknownMonth = "DESCONOCIDO"

// ErrInvalidDate is returned when a date cannot be parsed.
var ErrInvalidDate = errors.New("normalize: invalid date")

var monthNames = [12]string{
	"ENERO", "FEBRERO", "MARZO", "ABRIL", "MAYO", "JUNIO",
	"JULIO", "AGOSTO", "SEPTIEMBRE", "OCTUBRE", "NOVIEMBRE", "DICIEMBRE",
}

// ParseDate reformats text from inLayout to outLayout. ok is false when text
// does not match inLayout.
func ParseDate(text, inLayout, outLayout string) (string, bool) {
	parsed, err := time.Parse(inLayout, strings.TrimSpace(text))
	if err != nil {
		return "", false
	}
	return parsed.Format(outLayout), true
}

// MonthName maps 1..12 to the Spanish month name in upper case.
func MonthName(month int) string {
	if month < 1 || month > len(monthNames) {
		return UnknownMonth
	}
	return monthNames[month-1]
}

// ParseDayMonthYear accepts DD/MM/YYYY or DD-MM-YYYY, with or without
// leading zeros.
func ParseDayMonthYear(text string) (time.Time, error) {
	text = strings.ReplaceAll(strings.TrimSpace(text), "-", "/")
	parsed, err := time.Parse(dayMonthYearLoose, text)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return parsed, nil
}

// BilledMonth derives the billed month name from a period end date.
func BilledMonth(periodEnd string) (string, error) {
	end, err := ParseDayMonthYear(periodEnd)
	if err != nil {
		return "", err
	}
	return MonthName(int(end.Month())), nil
}

// DaysBetween returns the absolute number of days between two DD/MM/YYYY dates.
func DaysBetween(start, end string) (int, error) {
	from, err := ParseDayMonthYear(start)
	if err != nil {
		return 0, err
	}
	to, err := ParseDayMonthYear(end)
	if err != nil {
		return 0, err
	}
	days := int(to.Sub(from).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days, nil
}
