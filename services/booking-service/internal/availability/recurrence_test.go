package availability

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseClock(t *testing.T) {
	mins, err := ParseClock("09:30")
	if err != nil {
		t.Fatalf("ParseClock failed: %v", err)
	}
	if mins != 570 {
		t.Fatalf("expected 570, got %d", mins)
	}
	if FormatClock(570) != "09:30" {
		t.Fatalf("expected 09:30, got %s", FormatClock(570))
	}
	for _, bad := range []string{"", "9", "24:00", "12:60", "ab:cd", "-1:00"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestAppliesTo_OneTime(t *testing.T) {
	ev := OverrideEvent{
		Kind:       EventBlock,
		Recurrence: RecurOneTime,
		StartDate:  date(2026, 2, 2),
	}
	if !ev.AppliesTo(date(2026, 2, 2)) {
		t.Fatal("one_time event should apply on its start date")
	}
	if ev.AppliesTo(date(2026, 2, 3)) {
		t.Fatal("one_time event should not apply on any other date")
	}
	if ev.AppliesTo(date(2026, 2, 1)) {
		t.Fatal("one_time event should not apply before its start date")
	}
}

func TestAppliesTo_Weekly(t *testing.T) {
	end := date(2026, 3, 1)
	ev := OverrideEvent{
		Kind:       EventBlock,
		Recurrence: RecurWeekly,
		StartDate:  date(2026, 2, 2),
		EndDate:    &end,
		DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday},
	}
	if !ev.AppliesTo(date(2026, 2, 9)) { // Monday
		t.Fatal("weekly event should apply on a listed weekday")
	}
	if !ev.AppliesTo(date(2026, 2, 11)) { // Wednesday
		t.Fatal("weekly event should apply on a listed weekday")
	}
	if ev.AppliesTo(date(2026, 2, 10)) { // Tuesday
		t.Fatal("weekly event should not apply on an unlisted weekday")
	}
	if ev.AppliesTo(date(2026, 3, 2)) { // Monday after end date
		t.Fatal("weekly event should not apply after its end date")
	}
}

func TestAppliesTo_EndDateInclusive(t *testing.T) {
	end := date(2026, 2, 9) // a Monday
	ev := OverrideEvent{
		Kind:       EventBlock,
		Recurrence: RecurWeekly,
		StartDate:  date(2026, 2, 2),
		EndDate:    &end,
		DaysOfWeek: []time.Weekday{time.Monday},
	}
	if !ev.AppliesTo(end) {
		t.Fatal("end date itself should be inside the active range")
	}
}

func TestAppliesTo_WeeklyOpenEnded(t *testing.T) {
	ev := OverrideEvent{
		Kind:       EventBlock,
		Recurrence: RecurWeekly,
		StartDate:  date(2026, 2, 2),
		DaysOfWeek: []time.Weekday{time.Friday},
	}
	if !ev.AppliesTo(date(2030, 5, 3)) { // a Friday years later
		t.Fatal("open-ended weekly event should apply indefinitely")
	}
}

func TestAppliesTo_MonthlyByDate(t *testing.T) {
	ev := OverrideEvent{
		Kind:       EventBlock,
		Recurrence: RecurMonthlyByDate,
		StartDate:  date(2026, 1, 15),
	}
	if !ev.AppliesTo(date(2026, 2, 15)) {
		t.Fatal("monthly_by_date should apply on the same day of month")
	}
	if ev.AppliesTo(date(2026, 2, 16)) {
		t.Fatal("monthly_by_date should not apply on other days")
	}

	explicit := OverrideEvent{
		Kind:       EventBlock,
		Recurrence: RecurMonthlyByDate,
		StartDate:  date(2026, 1, 1),
		DayOfMonth: 20,
	}
	if !explicit.AppliesTo(date(2026, 4, 20)) {
		t.Fatal("explicit DayOfMonth should win over StartDate's day")
	}
}

func TestAppliesTo_MonthlyByWeekday(t *testing.T) {
	// Second Tuesday of every month.
	ev := OverrideEvent{
		Kind:        EventBlock,
		Recurrence:  RecurMonthlyByWeekday,
		StartDate:   date(2026, 1, 1),
		WeekOfMonth: 2,
		Weekday:     time.Tuesday,
	}
	if !ev.AppliesTo(date(2026, 2, 10)) { // second Tuesday of Feb 2026
		t.Fatal("should apply on the second Tuesday")
	}
	if ev.AppliesTo(date(2026, 2, 3)) { // first Tuesday
		t.Fatal("should not apply on the first Tuesday")
	}
	if ev.AppliesTo(date(2026, 2, 11)) { // a Wednesday
		t.Fatal("should not apply on other weekdays")
	}

	last := OverrideEvent{
		Kind:        EventBlock,
		Recurrence:  RecurMonthlyByWeekday,
		StartDate:   date(2026, 1, 1),
		WeekOfMonth: LastWeekOfMonth,
		Weekday:     time.Friday,
	}
	if !last.AppliesTo(date(2026, 2, 27)) { // last Friday of Feb 2026
		t.Fatal("should apply on the last Friday")
	}
	if last.AppliesTo(date(2026, 2, 20)) {
		t.Fatal("should not apply on an earlier Friday")
	}
}

func TestAppliesTo_Yearly(t *testing.T) {
	ev := OverrideEvent{
		Kind:       EventBlock,
		Recurrence: RecurYearly,
		StartDate:  date(2024, 12, 25),
	}
	if !ev.AppliesTo(date(2026, 12, 25)) {
		t.Fatal("yearly event should apply on the same month and day in later years")
	}
	if ev.AppliesTo(date(2026, 12, 24)) {
		t.Fatal("yearly event should not apply on other days")
	}
	if ev.AppliesTo(date(2023, 12, 25)) {
		t.Fatal("yearly event should not apply before its start date")
	}
}

func TestHolidayMatching(t *testing.T) {
	fixed := Holiday{Name: "Independence Day", Date: date(2026, 9, 7), BlocksAppointments: true}
	if !fixed.MatchesDate(date(2026, 9, 7)) {
		t.Fatal("fixed holiday should match its date")
	}
	if fixed.MatchesDate(date(2027, 9, 7)) {
		t.Fatal("fixed holiday should not match other years")
	}

	recurring := Holiday{Name: "New Year", MonthDay: "01-01", IsRecurring: true, BlocksAppointments: true}
	if !recurring.MatchesDate(date(2026, 1, 1)) || !recurring.MatchesDate(date(2031, 1, 1)) {
		t.Fatal("recurring holiday should match every year")
	}
	if recurring.MatchesDate(date(2026, 1, 2)) {
		t.Fatal("recurring holiday should not match other days")
	}

	nonBlocking := Holiday{Name: "Awareness Day", Date: date(2026, 9, 7), BlocksAppointments: false}
	if _, ok := BlockingHoliday([]Holiday{nonBlocking}, date(2026, 9, 7)); ok {
		t.Fatal("non-blocking holiday should not be returned as blocking")
	}
	if hol, ok := BlockingHoliday([]Holiday{nonBlocking, fixed}, date(2026, 9, 7)); !ok || hol.Name != "Independence Day" {
		t.Fatalf("expected blocking holiday, got %+v ok=%v", hol, ok)
	}
}
