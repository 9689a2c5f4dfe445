package main

import (
	"fmt"
	"time"

	"github.com/prompt-general/healthscore/internal/window"
)

const monthLayout = "2006-01"

// monthWindows returns one window per calendar month from..to inclusive.
func monthWindows(from, to string) ([]window.Window, error) {
	start, err := time.Parse(monthLayout, from)
	if err != nil {
		return nil, fmt.Errorf("-from: expected YYYY-MM, got %q", from)
	}
	end, err := time.Parse(monthLayout, to)
	if err != nil {
		return nil, fmt.Errorf("-to: expected YYYY-MM, got %q", to)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("-to %s is before -from %s", to, from)
	}

	var out []window.Window
	for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
		first := m
		last := m.AddDate(0, 1, -1)
		out = append(out, window.New(&first, &last))
	}
	return out, nil
}
