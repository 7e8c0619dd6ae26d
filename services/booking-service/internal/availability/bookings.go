package availability

import "time"

// BookedAppointment is the read-only projection of an appointment already
// confirmed for the practitioner.
type BookedAppointment struct {
	Date      time.Time
	StartTime string // HH:mm
	EndTime   string
}

// MarkBooked suppresses slots whose session interval overlaps a booked
// appointment on the same date. Intervals are half-open: a slot at 10:00 with
// a 60-minute session occupies [10:00, 11:00), so an appointment ending at
// exactly 10:00 does not collide. Overlap is checked against the
// appointment's real interval rather than its start time so variable-length
// sessions stay correct.
func MarkBooked(slots []TimeSlot, date time.Time, appointments []BookedAppointment, durationMinutes int) []TimeSlot {
	if durationMinutes <= 0 {
		return slots
	}
	out := make([]TimeSlot, len(slots))
	copy(out, slots)

	for i := range out {
		if !out[i].Available {
			continue
		}
		start, err := ParseClock(out[i].Time)
		if err != nil {
			continue
		}
		end := start + durationMinutes
		for _, appt := range appointments {
			if !sameDay(appt.Date, date) {
				continue
			}
			apptStart, err := ParseClock(appt.StartTime)
			if err != nil {
				continue
			}
			apptEnd, err := ParseClock(appt.EndTime)
			if err != nil || apptEnd <= apptStart {
				apptEnd = apptStart + durationMinutes
			}
			if start < apptEnd && apptStart < end {
				out[i].Available = false
				out[i].Reason = "Already booked"
				out[i].EventID = ""
				break
			}
		}
	}
	return out
}
