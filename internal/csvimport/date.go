package csvimport

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var (
	isoDate   = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})$`)
	localDate = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})$`)
)

// ParseDate accepts ISO (YYYY-MM-DD) and day-first local (DD/MM/YYYY) dates.
// The position of the four digit year decides which form applies. A trailing
// time component is ignored.
func ParseDate(raw string) (civil.Date, error) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}

	var year, month, day string
	if m := isoDate.FindStringSubmatch(s); m != nil {
		year, month, day = m[1], m[2], m[3]
	} else if m := localDate.FindStringSubmatch(s); m != nil {
		day, month, year = m[1], m[2], m[3]
	} else {
		return civil.Date{}, fmt.Errorf("unsupported date format: %q", raw)
	}

	y, _ := strconv.Atoi(year)
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return civil.Date{}, fmt.Errorf("date out of range: %q", raw)
	}

	date := civil.Date{Year: y, Month: time.Month(mo), Day: d}
	if !date.IsValid() {
		return civil.Date{}, fmt.Errorf("invalid calendar date: %q", raw)
	}
	return date, nil
}
