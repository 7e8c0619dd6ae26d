package handlers

import "testing"

func TestNormalizeRecurrence(t *testing.T) {
	cases := []struct {
		in   string
		days []int
		want string
		ok   bool
	}{
		{"one_time", nil, "one_time", true},
		{"weekly", []int{1}, "weekly", true},
		{"monthly_by_date", nil, "monthly_by_date", true},
		{"monthly_by_weekday", nil, "monthly_by_weekday", true},
		{"yearly", nil, "yearly", true},
		{"monthly", []int{1, 3}, "weekly", true},
		{"monthly", nil, "monthly_by_date", true},
		{"daily", nil, "", false},
		{"", nil, "", false},
	}
	for _, tc := range cases {
		got, ok := normalizeRecurrence(tc.in, tc.days)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("normalizeRecurrence(%q, %v) = %q, %v; want %q, %v", tc.in, tc.days, got, ok, tc.want, tc.ok)
		}
	}
}

func TestValidClock(t *testing.T) {
	for _, good := range []string{"00:00", "09:30", "23:59"} {
		if !validClock(good) {
			t.Fatalf("%q should be a valid clock value", good)
		}
	}
	for _, bad := range []string{"", "9:30", "9:30:00", "24:00", "ab:cd"} {
		if validClock(bad) {
			t.Fatalf("%q should be rejected", bad)
		}
	}
}
