package availability

import (
	"reflect"
	"testing"
	"time"
)

func mondayTemplate() []TemplateSlot {
	return []TemplateSlot{
		{ID: "tpl-1", Weekday: time.Monday, StartTime: "09:00", EndTime: "12:00", SessionType: "online", IsAvailable: true},
	}
}

func singleDay(t *testing.T, in Input) DayAvailability {
	t.Helper()
	days := Resolve(in)
	if len(days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(days))
	}
	return days[0]
}

func TestResolve_TemplateOnly(t *testing.T) {
	monday := date(2026, 2, 2)
	day := singleDay(t, Input{
		From:           monday,
		To:             monday,
		Templates:      mondayTemplate(),
		SessionMinutes: 60,
	})

	want := []string{"09:00", "10:00", "11:00"}
	if len(day.Slots) != len(want) {
		t.Fatalf("expected %d slots, got %+v", len(want), day.Slots)
	}
	for i, s := range day.Slots {
		if s.Time != want[i] || !s.Available {
			t.Fatalf("expected %s available, got %+v", want[i], s)
		}
	}
}

func TestResolve_BlockEvent(t *testing.T) {
	monday := date(2026, 2, 2)
	day := singleDay(t, Input{
		From:      monday,
		To:        monday,
		Templates: mondayTemplate(),
		Events: []OverrideEvent{{
			ID:         "ev-1",
			Title:      "Meeting",
			Kind:       EventBlock,
			Recurrence: RecurOneTime,
			StartDate:  monday,
			StartTime:  "10:00",
			EndTime:    "11:00",
		}},
		SessionMinutes: 60,
	})

	if !day.Slots[0].Available || !day.Slots[2].Available {
		t.Fatal("09:00 and 11:00 should stay available")
	}
	if day.Slots[1].Available || day.Slots[1].Reason != "Meeting" {
		t.Fatalf("10:00 should be blocked with reason Meeting, got %+v", day.Slots[1])
	}
}

func TestResolve_BookedAppointment(t *testing.T) {
	monday := date(2026, 2, 2)
	day := singleDay(t, Input{
		From:      monday,
		To:        monday,
		Templates: mondayTemplate(),
		Appointments: []BookedAppointment{
			{Date: monday, StartTime: "09:00", EndTime: "10:00"},
		},
		SessionMinutes: 60,
	})

	if day.Slots[0].Available || day.Slots[0].Reason != "Already booked" {
		t.Fatalf("09:00 should be suppressed by the booking, got %+v", day.Slots[0])
	}
	if !day.Slots[1].Available || !day.Slots[2].Available {
		t.Fatal("10:00 and 11:00 should be unchanged")
	}
}

func TestResolve_HolidayPrecedence(t *testing.T) {
	monday := date(2026, 2, 2)
	day := singleDay(t, Input{
		From:      monday,
		To:        monday,
		Templates: mondayTemplate(),
		Events: []OverrideEvent{{
			ID: "ev-x", Title: "Extra", Kind: EventAvailable, Recurrence: RecurOneTime,
			StartDate: monday, StartTime: "14:00", EndTime: "16:00",
		}},
		Holidays: []Holiday{
			{Name: "Carnival", Date: monday, BlocksAppointments: true},
		},
		Appointments: []BookedAppointment{
			{Date: monday, StartTime: "09:00", EndTime: "10:00"},
		},
		SessionMinutes: 60,
	})

	if len(day.Slots) != 1 {
		t.Fatalf("a blocking holiday should yield exactly one slot, got %+v", day.Slots)
	}
	slot := day.Slots[0]
	if slot.Time != AllDay || slot.Available || slot.Reason != "Carnival" {
		t.Fatalf("expected all-day holiday slot, got %+v", slot)
	}
}

func TestResolve_NonBlockingHolidayIgnored(t *testing.T) {
	monday := date(2026, 2, 2)
	day := singleDay(t, Input{
		From:      monday,
		To:        monday,
		Templates: mondayTemplate(),
		Holidays: []Holiday{
			{Name: "Awareness Day", Date: monday, BlocksAppointments: false},
		},
		SessionMinutes: 60,
	})

	if len(day.Slots) != 3 {
		t.Fatalf("non-blocking holiday should not blank the day, got %+v", day.Slots)
	}
}

func TestResolve_ExtraAvailabilityOnEmptyDay(t *testing.T) {
	saturday := date(2026, 2, 7) // no Saturday template
	day := singleDay(t, Input{
		From:      saturday,
		To:        saturday,
		Templates: mondayTemplate(),
		Events: []OverrideEvent{{
			ID:         "ev-2",
			Title:      "Extra hours",
			Kind:       EventAvailable,
			Recurrence: RecurOneTime,
			StartDate:  saturday,
			StartTime:  "14:00",
			EndTime:    "16:00",
		}},
		SessionMinutes: 60,
	})

	if len(day.Slots) != 2 {
		t.Fatalf("expected 2 extra slots, got %+v", day.Slots)
	}
	for i, want := range []string{"14:00", "15:00"} {
		s := day.Slots[i]
		if s.Time != want || !s.Available || s.Reason != "Extra hours" {
			t.Fatalf("expected %s available via Extra hours, got %+v", want, s)
		}
	}
}

func TestResolve_EmptyDayShortCircuit(t *testing.T) {
	sunday := date(2026, 2, 1)
	day := singleDay(t, Input{
		From:           sunday,
		To:             sunday,
		Templates:      mondayTemplate(),
		SessionMinutes: 60,
	})

	if day.Slots == nil || len(day.Slots) != 0 {
		t.Fatalf("a day with no template and no extra event should be empty, got %+v", day.Slots)
	}
}

func TestResolve_BookingBeatsExtraAvailability(t *testing.T) {
	saturday := date(2026, 2, 7)
	day := singleDay(t, Input{
		From: saturday,
		To:   saturday,
		Events: []OverrideEvent{{
			ID: "ev-3", Title: "Extra", Kind: EventAvailable, Recurrence: RecurOneTime,
			StartDate: saturday, StartTime: "14:00", EndTime: "15:00",
		}},
		Appointments: []BookedAppointment{
			{Date: saturday, StartTime: "14:00", EndTime: "15:00"},
		},
		SessionMinutes: 60,
	})

	if len(day.Slots) != 1 {
		t.Fatalf("expected one slot, got %+v", day.Slots)
	}
	if day.Slots[0].Available || day.Slots[0].Reason != "Already booked" {
		t.Fatalf("a booking must suppress a slot an available event tried to add, got %+v", day.Slots[0])
	}
}

func TestResolve_WeekRange(t *testing.T) {
	from := date(2026, 2, 2) // Monday
	to := date(2026, 2, 8)   // Sunday
	days := Resolve(Input{
		From:           from,
		To:             to,
		Templates:      mondayTemplate(),
		SessionMinutes: 60,
	})

	if len(days) != 7 {
		t.Fatalf("expected 7 days inclusive, got %d", len(days))
	}
	for i, d := range days {
		want := from.AddDate(0, 0, i)
		if !d.Date.Equal(want) {
			t.Fatalf("dates should ascend one day at a time: expected %s, got %s", want, d.Date)
		}
	}
	if len(days[0].Slots) != 3 {
		t.Fatalf("Monday should have 3 slots, got %+v", days[0].Slots)
	}
	for _, d := range days[1:] {
		if len(d.Slots) != 0 {
			t.Fatalf("non-template days should be empty, got %+v on %s", d.Slots, d.Date)
		}
	}
}

func TestResolve_SlotsSorted(t *testing.T) {
	monday := date(2026, 2, 2)
	day := singleDay(t, Input{
		From: monday,
		To:   monday,
		Templates: []TemplateSlot{
			{Weekday: time.Monday, StartTime: "14:00", EndTime: "16:00", IsAvailable: true},
			{Weekday: time.Monday, StartTime: "09:00", EndTime: "10:00", IsAvailable: true},
		},
		Events: []OverrideEvent{{
			ID: "ev-4", Title: "Early", Kind: EventAvailable, Recurrence: RecurOneTime,
			StartDate: monday, StartTime: "07:00", EndTime: "08:00",
		}},
		SessionMinutes: 60,
	})

	for i := 1; i < len(day.Slots); i++ {
		if day.Slots[i-1].Time >= day.Slots[i].Time {
			t.Fatalf("slots out of order: %+v", day.Slots)
		}
	}
}

func TestResolve_OverlappingTemplatesCollapse(t *testing.T) {
	monday := date(2026, 2, 2)
	day := singleDay(t, Input{
		From: monday,
		To:   monday,
		Templates: []TemplateSlot{
			{Weekday: time.Monday, StartTime: "09:00", EndTime: "11:00", SessionType: "online", IsAvailable: true},
			{Weekday: time.Monday, StartTime: "10:00", EndTime: "12:00", SessionType: "in-person", IsAvailable: true},
		},
		SessionMinutes: 60,
	})

	want := []string{"09:00", "10:00", "11:00"}
	if len(day.Slots) != len(want) {
		t.Fatalf("duplicate times should collapse to one slot each, got %+v", day.Slots)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	monday := date(2026, 2, 2)
	in := Input{
		From:      monday,
		To:        monday.AddDate(0, 0, 6),
		Templates: mondayTemplate(),
		Events: []OverrideEvent{{
			ID: "ev-5", Title: "Meeting", Kind: EventBlock, Recurrence: RecurOneTime,
			StartDate: monday, StartTime: "10:00", EndTime: "11:00",
		}},
		Holidays: []Holiday{
			{Name: "New Year", MonthDay: "01-01", IsRecurring: true, BlocksAppointments: true},
		},
		Appointments: []BookedAppointment{
			{Date: monday, StartTime: "09:00", EndTime: "10:00"},
		},
		SessionMinutes: 60,
	}

	first := Resolve(in)
	second := Resolve(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical inputs must produce identical output")
	}
}

func TestResolve_RequiresGranularity(t *testing.T) {
	monday := date(2026, 2, 2)
	if got := Resolve(Input{From: monday, To: monday, Templates: mondayTemplate()}); got != nil {
		t.Fatalf("missing session granularity should resolve to nil, got %+v", got)
	}
}

func TestResolve_InvertedRange(t *testing.T) {
	monday := date(2026, 2, 2)
	if got := Resolve(Input{From: monday, To: monday.AddDate(0, 0, -1), SessionMinutes: 60}); got != nil {
		t.Fatalf("inverted range should resolve to nil, got %+v", got)
	}
}

func TestCalendarMap(t *testing.T) {
	monday := date(2026, 2, 2)
	tuesday := date(2026, 2, 3)
	days := Resolve(Input{
		From:      monday,
		To:        tuesday,
		Templates: mondayTemplate(),
		Holidays: []Holiday{
			{Name: "Holiday", Date: tuesday, BlocksAppointments: true},
		},
		Appointments: []BookedAppointment{
			{Date: monday, StartTime: "11:00", EndTime: "12:00"},
		},
		SessionMinutes: 60,
	})

	cal := CalendarMap(days)
	if len(cal) != 2 {
		t.Fatalf("expected 2 dates, got %v", cal)
	}
	mon := cal["2026-02-02"]
	if len(mon) != 2 || mon[0] != "09:00" || mon[1] != "10:00" {
		t.Fatalf("expected the two bookable Monday times, got %v", mon)
	}
	if len(cal["2026-02-03"]) != 0 {
		t.Fatalf("holiday date should expose no selectable times, got %v", cal["2026-02-03"])
	}
}
