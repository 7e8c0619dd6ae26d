// Package availability resolves a practitioner's bookable slots for a date
// range from four read-only inputs: weekly template slots, override events,
// holidays, and booked appointments. The resolution is a pure function of its
// inputs, with no I/O, clock reads, or shared state, so identical inputs
// always produce identical output and concurrent callers never interfere.
//
// Precedence, highest first: blocking holiday (blanks the whole date), block
// events, the weekly template plus extra-availability events, then booked
// appointments suppressing whatever survived.
package availability

import "time"

// Input bundles the snapshots the resolver consumes. All collections are
// expected to be pre-filtered to active records by the data-access layer.
// SessionMinutes is the slot granularity (the practitioner's default session
// duration) and is required; there is no built-in fallback.
type Input struct {
	From           time.Time
	To             time.Time
	Templates      []TemplateSlot
	Events         []OverrideEvent
	Holidays       []Holiday
	Appointments   []BookedAppointment
	SessionMinutes int
}

// DayAvailability is the per-date output: every candidate time annotated with
// whether it is bookable and, when it is not, why.
type DayAvailability struct {
	Date  time.Time
	Slots []TimeSlot
}

// Resolve computes per-date availability across the inclusive [From, To]
// range, one entry per date in ascending order. It is total over well-formed
// input: malformed events are skipped, empty collections are valid, and an
// inverted range yields nil.
func Resolve(in Input) []DayAvailability {
	if in.SessionMinutes <= 0 {
		return nil
	}
	from := DateOf(in.From)
	to := DateOf(in.To)
	if to.Before(from) {
		return nil
	}

	var days []DayAvailability
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		days = append(days, resolveDay(day, in))
	}
	return days
}

func resolveDay(day time.Time, in Input) DayAvailability {
	if hol, ok := BlockingHoliday(in.Holidays, day); ok {
		return DayAvailability{
			Date:  day,
			Slots: []TimeSlot{{Time: AllDay, Available: false, Reason: hol.Name}},
		}
	}

	base := BaseSlots(in.Templates, day, in.SessionMinutes)
	if len(base) == 0 && !hasExtraAvailability(in.Events, day) {
		// Nothing scheduled and nothing added: report the day as empty
		// without running the override/booking passes.
		return DayAvailability{Date: day, Slots: []TimeSlot{}}
	}

	slots := make([]TimeSlot, 0, len(base))
	seen := make(map[string]struct{}, len(base))
	for _, t := range base {
		// Overlapping templates may repeat a time; it collapses to one slot.
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		slots = append(slots, TimeSlot{Time: t, Available: true})
	}

	slots = ApplyOverrides(slots, day, in.Events, in.SessionMinutes)
	slots = MarkBooked(slots, day, in.Appointments, in.SessionMinutes)
	return DayAvailability{Date: day, Slots: slots}
}

func hasExtraAvailability(events []OverrideEvent, day time.Time) bool {
	for _, ev := range events {
		if ev.Kind == EventAvailable && ev.StartTime != "" && ev.EndTime != "" && ev.AppliesTo(day) {
			return true
		}
	}
	return false
}

// CalendarMap reduces resolved days to the shape calendar pickers consume:
// date string -> the available, non-sentinel times.
func CalendarMap(days []DayAvailability) map[string][]string {
	out := make(map[string][]string, len(days))
	for _, d := range days {
		times := make([]string, 0, len(d.Slots))
		for _, s := range d.Slots {
			if s.Available && s.Time != AllDay {
				times = append(times, s.Time)
			}
		}
		out[d.Date.Format(dateLayout)] = times
	}
	return out
}
