package availability

import (
	"sort"
	"time"
)

// TimeSlot is one annotated candidate time for a date.
type TimeSlot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	EventID   string `json:"event_id,omitempty"`
}

// ApplyOverrides layers override events onto the base slots for one date.
// Blocks run first so a later extra-availability event can never resurrect a
// blocked time; extra availability only appends times absent from the slot
// list and never rewrites an existing slot. When several blocks cover the
// same slot, the last one in input order supplies the reason and event id.
func ApplyOverrides(slots []TimeSlot, date time.Time, events []OverrideEvent, stepMinutes int) []TimeSlot {
	out := make([]TimeSlot, len(slots))
	copy(out, slots)

	for _, ev := range events {
		if ev.Kind != EventBlock || !ev.AppliesTo(date) {
			continue
		}
		if ev.StartTime == "" || ev.EndTime == "" {
			// Whole-day block.
			for i := range out {
				out[i].Available = false
				out[i].Reason = ev.Title
				out[i].EventID = ev.ID
			}
			continue
		}
		from, err := ParseClock(ev.StartTime)
		if err != nil {
			continue
		}
		to, err := ParseClock(ev.EndTime)
		if err != nil {
			continue
		}
		for i := range out {
			t, err := ParseClock(out[i].Time)
			if err != nil {
				continue
			}
			if t >= from && t < to {
				out[i].Available = false
				out[i].Reason = ev.Title
				out[i].EventID = ev.ID
			}
		}
	}

	present := make(map[string]struct{}, len(out))
	for _, s := range out {
		present[s.Time] = struct{}{}
	}
	for _, ev := range events {
		if ev.Kind != EventAvailable || !ev.AppliesTo(date) {
			continue
		}
		if ev.StartTime == "" || ev.EndTime == "" || stepMinutes <= 0 {
			// An extra-availability event without a time range produces no
			// slots; skip rather than error.
			continue
		}
		from, err := ParseClock(ev.StartTime)
		if err != nil {
			continue
		}
		to, err := ParseClock(ev.EndTime)
		if err != nil || to <= from {
			continue
		}
		for t := from; t < to; t += stepMinutes {
			clock := FormatClock(t)
			if _, ok := present[clock]; ok {
				continue
			}
			present[clock] = struct{}{}
			out = append(out, TimeSlot{Time: clock, Available: true, Reason: ev.Title, EventID: ev.ID})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}
