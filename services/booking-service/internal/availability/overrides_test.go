package availability

import (
	"testing"
	"time"
)

func baseMonday() []TimeSlot {
	return []TimeSlot{
		{Time: "09:00", Available: true},
		{Time: "10:00", Available: true},
		{Time: "11:00", Available: true},
	}
}

func TestApplyOverrides_TimedBlock(t *testing.T) {
	monday := date(2026, 2, 2)
	events := []OverrideEvent{{
		ID:         "ev-1",
		Title:      "Meeting",
		Kind:       EventBlock,
		Recurrence: RecurOneTime,
		StartDate:  monday,
		StartTime:  "10:00",
		EndTime:    "11:00",
	}}

	slots := ApplyOverrides(baseMonday(), monday, events, 60)
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if !slots[0].Available || !slots[2].Available {
		t.Fatal("slots outside the block range should be unaffected")
	}
	if slots[1].Available {
		t.Fatal("10:00 should be blocked")
	}
	if slots[1].Reason != "Meeting" || slots[1].EventID != "ev-1" {
		t.Fatalf("blocked slot should carry the event title and id, got %+v", slots[1])
	}
}

func TestApplyOverrides_WholeDayBlock(t *testing.T) {
	monday := date(2026, 2, 2)
	events := []OverrideEvent{{
		ID:         "ev-2",
		Title:      "Vacation",
		Kind:       EventBlock,
		Recurrence: RecurOneTime,
		StartDate:  monday,
	}}

	slots := ApplyOverrides(baseMonday(), monday, events, 60)
	for _, s := range slots {
		if s.Available {
			t.Fatalf("slot %s should be blocked by the whole-day event", s.Time)
		}
		if s.Reason != "Vacation" {
			t.Fatalf("slot %s should carry the block reason, got %q", s.Time, s.Reason)
		}
	}
}

func TestApplyOverrides_LastBlockWins(t *testing.T) {
	monday := date(2026, 2, 2)
	events := []OverrideEvent{
		{ID: "ev-a", Title: "First", Kind: EventBlock, Recurrence: RecurOneTime, StartDate: monday, StartTime: "09:00", EndTime: "12:00"},
		{ID: "ev-b", Title: "Second", Kind: EventBlock, Recurrence: RecurOneTime, StartDate: monday, StartTime: "10:00", EndTime: "11:00"},
	}

	slots := ApplyOverrides(baseMonday(), monday, events, 60)
	if slots[1].Reason != "Second" || slots[1].EventID != "ev-b" {
		t.Fatalf("the last matching block should supply reason/event id, got %+v", slots[1])
	}
	if slots[0].Reason != "First" {
		t.Fatalf("09:00 is covered only by the first block, got %+v", slots[0])
	}
}

func TestApplyOverrides_ExtraAvailabilityAdds(t *testing.T) {
	monday := date(2026, 2, 2)
	events := []OverrideEvent{{
		ID:         "ev-3",
		Title:      "Extra hours",
		Kind:       EventAvailable,
		Recurrence: RecurOneTime,
		StartDate:  monday,
		StartTime:  "10:00",
		EndTime:    "13:00",
	}}

	slots := ApplyOverrides(baseMonday(), monday, events, 60)
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots (one net-new), got %d", len(slots))
	}
	// 10:00 and 11:00 already existed; only 12:00 is new.
	if slots[3].Time != "12:00" || !slots[3].Available || slots[3].Reason != "Extra hours" {
		t.Fatalf("expected net-new 12:00 slot from the event, got %+v", slots[3])
	}
	if slots[1].Reason != "" || slots[2].Reason != "" {
		t.Fatal("extra availability must not rewrite existing slots")
	}
}

func TestApplyOverrides_ExtraNeverResurrectsBlocked(t *testing.T) {
	monday := date(2026, 2, 2)
	events := []OverrideEvent{
		{ID: "ev-4", Title: "Blocked", Kind: EventBlock, Recurrence: RecurOneTime, StartDate: monday, StartTime: "10:00", EndTime: "11:00"},
		{ID: "ev-5", Title: "Extra", Kind: EventAvailable, Recurrence: RecurOneTime, StartDate: monday, StartTime: "10:00", EndTime: "11:00"},
	}

	slots := ApplyOverrides(baseMonday(), monday, events, 60)
	for _, s := range slots {
		if s.Time == "10:00" && s.Available {
			t.Fatal("extra availability must not resurrect a blocked slot")
		}
	}
}

func TestApplyOverrides_MalformedExtraSkipped(t *testing.T) {
	monday := date(2026, 2, 2)
	events := []OverrideEvent{{
		ID:         "ev-6",
		Title:      "No range",
		Kind:       EventAvailable,
		Recurrence: RecurOneTime,
		StartDate:  monday,
	}}

	slots := ApplyOverrides(baseMonday(), monday, events, 60)
	if len(slots) != 3 {
		t.Fatalf("extra-availability event without a time range should add nothing, got %d slots", len(slots))
	}
}

func TestApplyOverrides_Sorted(t *testing.T) {
	saturday := date(2026, 2, 7)
	events := []OverrideEvent{{
		ID:         "ev-7",
		Title:      "Early",
		Kind:       EventAvailable,
		Recurrence: RecurOneTime,
		StartDate:  saturday,
		StartTime:  "07:00",
		EndTime:    "08:00",
	}}

	slots := ApplyOverrides([]TimeSlot{{Time: "09:00", Available: true}}, saturday, events, 60)
	if slots[0].Time != "07:00" || slots[1].Time != "09:00" {
		t.Fatalf("slots should be re-sorted after the passes, got %+v", slots)
	}
}

func TestApplyOverrides_NonMatchingDateIgnored(t *testing.T) {
	monday := date(2026, 2, 2)
	events := []OverrideEvent{{
		ID:         "ev-8",
		Title:      "Elsewhere",
		Kind:       EventBlock,
		Recurrence: RecurOneTime,
		StartDate:  date(2026, 2, 3),
		StartTime:  "09:00",
		EndTime:    "12:00",
	}}

	slots := ApplyOverrides(baseMonday(), monday, events, 60)
	for _, s := range slots {
		if !s.Available {
			t.Fatalf("event for another date should not affect %s", s.Time)
		}
	}
}

func TestMarkBooked_IntervalOverlap(t *testing.T) {
	monday := date(2026, 2, 2)
	appointments := []BookedAppointment{
		{Date: monday, StartTime: "09:30", EndTime: "10:30"},
	}

	// A 09:30-10:30 appointment overlaps both the 09:00 and 10:00 hour slots.
	slots := MarkBooked(baseMonday(), monday, appointments, 60)
	if slots[0].Available || slots[1].Available {
		t.Fatal("slots overlapping the appointment interval should be suppressed")
	}
	if slots[0].Reason != "Already booked" {
		t.Fatalf("expected reason %q, got %q", "Already booked", slots[0].Reason)
	}
	if !slots[2].Available {
		t.Fatal("11:00 does not overlap and should stay available")
	}
}

func TestMarkBooked_AdjacentIntervalsDoNotCollide(t *testing.T) {
	monday := date(2026, 2, 2)
	appointments := []BookedAppointment{
		{Date: monday, StartTime: "08:00", EndTime: "09:00"},
		{Date: monday, StartTime: "12:00", EndTime: "13:00"},
	}

	slots := MarkBooked(baseMonday(), monday, appointments, 60)
	for _, s := range slots {
		if !s.Available {
			t.Fatalf("appointment touching a slot boundary must not suppress %s", s.Time)
		}
	}
}

func TestMarkBooked_OtherDateIgnored(t *testing.T) {
	monday := date(2026, 2, 2)
	appointments := []BookedAppointment{
		{Date: date(2026, 2, 9), StartTime: "09:00", EndTime: "10:00"},
	}

	slots := MarkBooked(baseMonday(), monday, appointments, 60)
	for _, s := range slots {
		if !s.Available {
			t.Fatalf("appointment on another date should not suppress %s", s.Time)
		}
	}
}

func TestBaseSlots(t *testing.T) {
	templates := []TemplateSlot{
		{Weekday: time.Monday, StartTime: "09:00", EndTime: "12:00", IsAvailable: true},
		{Weekday: time.Monday, StartTime: "14:00", EndTime: "15:00", IsAvailable: true},
		{Weekday: time.Monday, StartTime: "16:00", EndTime: "18:00", IsAvailable: false},
		{Weekday: time.Tuesday, StartTime: "09:00", EndTime: "10:00", IsAvailable: true},
	}

	slots := BaseSlots(templates, date(2026, 2, 2), 60)
	want := []string{"09:00", "10:00", "11:00", "14:00"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %v", len(want), slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, slots)
		}
	}
}

func TestBaseSlots_Granularity(t *testing.T) {
	templates := []TemplateSlot{
		{Weekday: time.Monday, StartTime: "09:00", EndTime: "10:30", IsAvailable: true},
	}

	slots := BaseSlots(templates, date(2026, 2, 2), 30)
	want := []string{"09:00", "09:30", "10:00"}
	if len(slots) != len(want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, slots)
		}
	}
	if got := BaseSlots(templates, date(2026, 2, 2), 0); got != nil {
		t.Fatalf("zero granularity should yield nil, got %v", got)
	}
}
