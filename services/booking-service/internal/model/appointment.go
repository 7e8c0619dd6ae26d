package model

import "time"

// Appointment stores the session day and wall-clock times separately: the
// availability engine works on local HH:mm strings, so the booking record
// keeps the same shape instead of a timezone-dependent instant.
type Appointment struct {
	ID             string
	PractitionerID string
	ServiceID      string
	ClientID       string
	ClientName     string
	ClientEmail    string
	ClientPhone    string
	SessionDate    time.Time // day granular, UTC midnight
	StartTime      string    // HH:mm
	EndTime        string    // HH:mm
	SessionType    string
	Status         string
	CancelledAt    *time.Time
	CancelReason   string
	CreatedAt      time.Time
}
