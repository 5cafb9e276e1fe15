package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
)

// ParseDay accepts either YYYY-MM-DD or a natural phrase ("tomorrow", "next sunday")
// relative to base, and returns the start of that day in loc.
func ParseDay(parser *when.Parser, text string, base time.Time, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("ParseDay: text is blank")
	}
	if loc == nil {
		loc = time.UTC
	}
	if day, err := time.ParseInLocation(time.DateOnly, text, loc); err == nil {
		return day, nil
	}
	if parser == nil {
		return time.Time{}, fmt.Errorf("ParseDay: %q is not a YYYY-MM-DD date", text)
	}

	result, err := parser.Parse(text, base.In(loc))
	switch {
	case err != nil:
		return time.Time{}, fmt.Errorf("ParseDay: %w", err)
	case result == nil:
		return time.Time{}, fmt.Errorf("ParseDay: no date found in %q", text)
	}
	t := result.Time.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}
