package canonical

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func monthOf(m int) time.Month { return time.Month(m) }

func TestParseDate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{"iso", "2025-06-20", day(2025, 6, 20), true},
		{"iso datetime", "2025-03-21 01:29:10", time.Date(2025, 3, 21, 1, 29, 10, 0, time.UTC), true},
		{"day first slash", "15/06/2025", day(2025, 6, 15), true},
		{"human datetime", "21 Mar 2025 00:39", time.Date(2025, 3, 21, 0, 39, 0, 0, time.UTC), true},
		{"human date", "2 Jan 2024", day(2024, 1, 2), true},
		{"serial", "45292", day(2024, 1, 1), true},
		{"serial float suffix", "45292.0", day(2024, 1, 1), true},
		{"serial below range", "1", time.Time{}, false},
		{"serial above range", "99999", time.Time{}, false},
		{"blank", "", time.Time{}, false},
		{"whitespace", "   ", time.Time{}, false},
		{"nan", "nan", time.Time{}, false},
		{"none", "None", time.Time{}, false},
		{"garbage", "not a date", time.Time{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseDate(tc.in)
			if ok != tc.ok {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			}
			if ok && !got.Equal(tc.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

// Both POS systems must land in the same month regardless of export format.
func TestParseDateMixedFormatsSameMonth(t *testing.T) {
	legacy, ok1 := ParseDate("15/06/2025")
	current, ok2 := ParseDate("2025-06-20")
	if !ok1 || !ok2 {
		t.Fatal("both formats should parse")
	}
	if MonthStart(legacy) != MonthStart(current) {
		t.Errorf("months differ: %v vs %v", MonthStart(legacy), MonthStart(current))
	}
	if MonthStart(legacy) != day(2025, 6, 1) {
		t.Errorf("MonthStart = %v, want 2025-06-01", MonthStart(legacy))
	}
}

func TestParseDateColumn(t *testing.T) {
	col := []any{"2025-01-02", nil, "junk", "", "45292"}
	out, lost := ParseDateColumn(col)
	if lost != 1 {
		t.Errorf("lost = %d, want 1", lost)
	}
	if out[0] != day(2025, 1, 2) {
		t.Errorf("out[0] = %v", out[0])
	}
	if out[1] != nil || out[2] != nil || out[3] != nil {
		t.Errorf("nulls not preserved: %v", out)
	}
	if out[4] != day(2024, 1, 1) {
		t.Errorf("out[4] = %v", out[4])
	}
}

func TestDayDiff(t *testing.T) {
	a := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	b := time.Date(2025, 1, 3, 6, 0, 0, 0, time.UTC)
	if got := DayDiff(a, b); got != 1 {
		t.Errorf("DayDiff = %d, want 1 (floors partial days)", got)
	}
	if got := DayDiff(b, a); got != -2 {
		t.Errorf("DayDiff reversed = %d, want -2", got)
	}
	if got := DayDiff(day(2025, 1, 1), day(2025, 1, 4)); got != 3 {
		t.Errorf("DayDiff whole days = %d, want 3", got)
	}
}
