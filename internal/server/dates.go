package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"

	"taskboard/internal/models"
	"taskboard/internal/recurrence"
)

// parseOptionalDate parses raw unless it is nil or blank.
func parseOptionalDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := models.ParseDate(*raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseWindow builds an inclusive occurrence window from optional bounds. A
// calendar date as the upper bound covers that whole day.
func parseWindow(from, to string) (recurrence.Window, error) {
	var window recurrence.Window
	if strings.TrimSpace(from) != "" {
		start, err := models.ParseDate(from)
		if err != nil {
			return window, fmt.Errorf("from: %w", err)
		}
		window.Start = mo.Some(start)
	}
	if strings.TrimSpace(to) != "" {
		end, err := models.ParseDate(to)
		if err != nil {
			return window, fmt.Errorf("to: %w", err)
		}
		if len(strings.TrimSpace(to)) == len(models.DateLayout) {
			end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		window.End = mo.Some(end)
	}
	if start, ok := window.Start.Get(); ok {
		if end, ok := window.End.Get(); ok && end.Before(start) {
			return window, fmt.Errorf("to must not be before from")
		}
	}
	return window, nil
}

// parseAsOf reads the as_of query parameter, defaulting to now.
func (s *Server) parseAsOf(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return s.now().UTC(), nil
	}
	asOf, err := models.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("as_of: %w", err)
	}
	return asOf, nil
}
