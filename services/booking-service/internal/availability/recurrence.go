package availability

import "time"

// RecurrenceKind selects how an override event repeats. Each monthly variant
// is explicit; there is no catch-all "monthly" that silently behaves weekly.
type RecurrenceKind string

const (
	RecurOneTime          RecurrenceKind = "one_time"
	RecurWeekly           RecurrenceKind = "weekly"
	RecurMonthlyByDate    RecurrenceKind = "monthly_by_date"
	RecurMonthlyByWeekday RecurrenceKind = "monthly_by_weekday"
	RecurYearly           RecurrenceKind = "yearly"
)

// EventKind is what an override event does to matched times.
type EventKind string

const (
	EventBlock     EventKind = "block"
	EventAvailable EventKind = "available"
)

// LastWeekOfMonth selects the final occurrence of a weekday within a month
// for monthly_by_weekday events.
const LastWeekOfMonth = -1

// OverrideEvent is a named, time-ranged exception layered over the weekly
// template. An empty StartTime/EndTime on a block means the whole matched day
// is blocked; extra-availability events require a time range to mean anything.
type OverrideEvent struct {
	ID          string
	Title       string
	Kind        EventKind
	Recurrence  RecurrenceKind
	StartDate   time.Time
	EndDate     *time.Time     // nil: open-ended for recurring kinds
	StartTime   string         // HH:mm, "" means all day
	EndTime     string
	DaysOfWeek  []time.Weekday // weekly
	DayOfMonth  int            // monthly_by_date; 0 derives from StartDate
	WeekOfMonth int            // monthly_by_weekday: 1..5 or LastWeekOfMonth
	Weekday     time.Weekday   // monthly_by_weekday
}

// AppliesTo reports whether the event is in effect on the given calendar day.
// Comparison is day-granular and inclusive of both range endpoints.
func (e OverrideEvent) AppliesTo(date time.Time) bool {
	day := DateOf(date)
	if day.Before(DateOf(e.StartDate)) {
		return false
	}
	if e.Recurrence == RecurOneTime {
		return sameDay(day, e.StartDate)
	}
	if e.EndDate != nil && day.After(DateOf(*e.EndDate)) {
		return false
	}

	switch e.Recurrence {
	case RecurWeekly:
		for _, wd := range e.DaysOfWeek {
			if wd == day.Weekday() {
				return true
			}
		}
		return false
	case RecurMonthlyByDate:
		dom := e.DayOfMonth
		if dom == 0 {
			dom = e.StartDate.Day()
		}
		return day.Day() == dom
	case RecurMonthlyByWeekday:
		if day.Weekday() != e.Weekday {
			return false
		}
		if e.WeekOfMonth == LastWeekOfMonth {
			return day.AddDate(0, 0, 7).Month() != day.Month()
		}
		return (day.Day()-1)/7+1 == e.WeekOfMonth
	case RecurYearly:
		return day.Month() == e.StartDate.Month() && day.Day() == e.StartDate.Day()
	}
	return false
}

// Holiday is a calendar exclusion. When BlocksAppointments is set and the
// holiday matches a date, that date yields zero bookable slots regardless of
// every other input.
type Holiday struct {
	ID                 string
	Name               string
	Date               time.Time // zero when IsRecurring
	MonthDay           string    // MM-DD, used when IsRecurring
	IsRecurring        bool
	BlocksAppointments bool
}

// MatchesDate reports whether the holiday falls on the given calendar day.
func (h Holiday) MatchesDate(date time.Time) bool {
	day := DateOf(date)
	if h.IsRecurring {
		return day.Format("01-02") == h.MonthDay
	}
	return sameDay(day, h.Date)
}

// BlockingHoliday returns the first holiday that both matches the date and
// blocks appointments.
func BlockingHoliday(holidays []Holiday, date time.Time) (Holiday, bool) {
	for _, h := range holidays {
		if h.BlocksAppointments && h.MatchesDate(date) {
			return h, true
		}
	}
	return Holiday{}, false
}
