package main

import "testing"

func TestMonthWindows(t *testing.T) {
	ws, err := monthWindows("2023-12", "2024-02")
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]string{
		{"2023-12-01", "2023-12-31"},
		{"2024-01-01", "2024-01-31"},
		{"2024-02-01", "2024-02-29"},
	}
	if len(ws) != len(want) {
		t.Fatalf("got %d windows, want %d", len(ws), len(want))
	}
	for i, w := range ws {
		start, end := w.Key()
		if start != want[i][0] || end != want[i][1] {
			t.Errorf("window %d = %s..%s, want %s..%s", i, start, end, want[i][0], want[i][1])
		}
	}
}

func TestMonthWindowsErrors(t *testing.T) {
	for _, tc := range [][2]string{{"2024-13", "2024-12"}, {"2024-05", "2024-01"}, {"", "2024-01"}} {
		if _, err := monthWindows(tc[0], tc[1]); err == nil {
			t.Errorf("monthWindows(%q, %q) should fail", tc[0], tc[1])
		}
	}
}
