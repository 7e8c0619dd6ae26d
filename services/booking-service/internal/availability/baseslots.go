package availability

import (
	"sort"
	"time"
)

// TemplateSlot is one recurring weekly availability rule. Weekday numbering
// follows time.Weekday (0=Sunday .. 6=Saturday). Templates have no end date;
// they repeat until deleted or toggled off upstream.
type TemplateSlot struct {
	ID          string
	Weekday     time.Weekday
	StartTime   string // HH:mm, StartTime < EndTime
	EndTime     string
	SessionType string // online | in-person | both
	IsAvailable bool
}

// BaseSlots expands the templates matching the date's weekday into candidate
// start times, stepped by stepMinutes. A candidate is kept while its start is
// strictly before the template's end time. Overlapping templates may produce
// duplicate times; callers collapse them when annotating. Result is sorted
// ascending.
func BaseSlots(templates []TemplateSlot, date time.Time, stepMinutes int) []string {
	if stepMinutes <= 0 {
		return nil
	}
	weekday := DateOf(date).Weekday()

	var out []string
	for _, tpl := range templates {
		if !tpl.IsAvailable || tpl.Weekday != weekday {
			continue
		}
		start, err := ParseClock(tpl.StartTime)
		if err != nil {
			continue
		}
		end, err := ParseClock(tpl.EndTime)
		if err != nil || end <= start {
			continue
		}
		for t := start; t < end; t += stepMinutes {
			out = append(out, FormatClock(t))
		}
	}
	sort.Strings(out)
	return out
}
