// Package window implements the dual-date period filter shared by every view.
//
// A window is a pair of optional calendar days. A customer belongs to a
// window when either its acquisition day or its churn day falls inside it,
// so a period report covers both new and lost customers.
package window

import (
	"strings"
	"time"
)

// AllBound is the textual form of an absent bound in cache keys.
const AllBound = "all"

const dayLayout = "2006-01-02"

var layouts = []string{
	dayLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05-07:00",
}

// Window is an inclusive range of calendar days. A nil bound is open.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// All is the unbounded window.
func All() Window { return Window{} }

// New builds a window from two optional days.
func New(start, end *time.Time) Window {
	w := Window{}
	if start != nil {
		d := Day(*start)
		w.Start = &d
	}
	if end != nil {
		d := Day(*end)
		w.End = &d
	}
	return w
}

// Parse builds a window from request parameters. An empty or unparseable
// bound is treated as absent.
func Parse(start, end string) Window {
	w := Window{}
	if t, ok := ParseDate(start); ok {
		w.Start = &t
	}
	if t, ok := ParseDate(end); ok {
		w.End = &t
	}
	return w
}

// ParseDate parses a day in any accepted layout and truncates it to its
// calendar day. The second result is false when s is blank or malformed.
func ParseDate(s string) (time.Time, bool) {
	t, ok := ParseTimestamp(s)
	if !ok {
		return time.Time{}, false
	}
	return Day(t), true
}

// ParseTimestamp is ParseDate without the truncation. Text that only yields
// a day is returned at midnight.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	// text with an unrecognised clock suffix keeps only its day
	if len(s) > len(dayLayout) && (s[len(dayLayout)] == ' ' || s[len(dayLayout)] == 'T') {
		if t, err := time.Parse(dayLayout, s[:len(dayLayout)]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Day drops the clock part of t, keeping its wall-clock date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Unbounded reports whether neither bound is set.
func (w Window) Unbounded() bool {
	return w.Start == nil && w.End == nil
}

// Contains reports whether the day of t lies within the window. A nil t is
// never contained.
func (w Window) Contains(t *time.Time) bool {
	if t == nil {
		return false
	}
	d := Day(*t)
	if w.Start != nil && d.Before(*w.Start) {
		return false
	}
	if w.End != nil && d.After(*w.End) {
		return false
	}
	return true
}

// Include reports whether a customer with the given acquisition and churn
// days belongs to the window.
func (w Window) Include(acquisition, churn *time.Time) bool {
	if w.Unbounded() {
		return true
	}
	return w.Contains(acquisition) || w.Contains(churn)
}

// Key returns the textual bounds used in cache keys.
func (w Window) Key() (string, string) {
	return formatBound(w.Start), formatBound(w.End)
}

func (w Window) String() string {
	s, e := w.Key()
	return s + ".." + e
}

func formatBound(t *time.Time) string {
	if t == nil {
		return AllBound
	}
	return t.Format(dayLayout)
}
