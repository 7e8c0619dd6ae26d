package storage

import (
	"context"
	"time"

	"github.com/appsequentia/terapia-conexao-vital-66-sub000/libs/db"
	"github.com/appsequentia/terapia-conexao-vital-66-sub000/services/booking-service/internal/availability"
	"github.com/jackc/pgx/v5"
)

// ScheduleRepository is the read model of the schedule data owned by
// practitioner-service. The schedule-changed consumer replaces whole
// per-practitioner collections from event snapshots; the availability
// handlers read them back as engine input. Only active rows are stored, so
// the engine never sees soft-deleted records.
type ScheduleRepository struct {
	pool *db.Pool
}

type ScheduleSettings struct {
	DefaultSessionMinutes int
	MinNoticeHours        int
	MaxAdvanceDays        int
}

// Snapshot is the engine input minus the date range and bookings.
type Snapshot struct {
	Templates []availability.TemplateSlot
	Events    []availability.OverrideEvent
	Holidays  []availability.Holiday
	Settings  ScheduleSettings
}

const defaultSessionMinutes = 60

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *ScheduleRepository) ReplaceTemplates(ctx context.Context, tx pgx.Tx, practitionerID string, templates []availability.TemplateSlot) error {
	if _, err := tx.Exec(ctx, `
		DELETE FROM schedule_templates WHERE practitioner_id = $1
	`, practitionerID); err != nil {
		return err
	}
	for _, t := range templates {
		if _, err := tx.Exec(ctx, `
			INSERT INTO schedule_templates (id, practitioner_id, weekday, start_time, end_time, session_type, is_available)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, t.ID, practitionerID, int(t.Weekday), t.StartTime, t.EndTime, t.SessionType, t.IsAvailable); err != nil {
			return err
		}
	}
	return nil
}

func (r *ScheduleRepository) ReplaceOverrides(ctx context.Context, tx pgx.Tx, practitionerID string, events []availability.OverrideEvent) error {
	if _, err := tx.Exec(ctx, `
		DELETE FROM schedule_overrides WHERE practitioner_id = $1
	`, practitionerID); err != nil {
		return err
	}
	for _, ev := range events {
		days := make([]int32, 0, len(ev.DaysOfWeek))
		for _, d := range ev.DaysOfWeek {
			days = append(days, int32(d))
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO schedule_overrides
				(id, practitioner_id, title, event_type, recurrence_type, start_date, end_date,
				start_time, end_time, days_of_week, day_of_month, week_of_month, weekday)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12, $13)
		`, ev.ID, practitionerID, ev.Title, string(ev.Kind), string(ev.Recurrence), ev.StartDate, ev.EndDate,
			ev.StartTime, ev.EndTime, days, ev.DayOfMonth, ev.WeekOfMonth, int(ev.Weekday)); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceHolidays replaces the holidays scoped to one practitioner, or the
// global set when practitionerID is empty.
func (r *ScheduleRepository) ReplaceHolidays(ctx context.Context, tx pgx.Tx, practitionerID string, holidays []availability.Holiday) error {
	if _, err := tx.Exec(ctx, `
		DELETE FROM holidays WHERE practitioner_id IS NOT DISTINCT FROM NULLIF($1, '')::uuid
	`, practitionerID); err != nil {
		return err
	}
	for _, h := range holidays {
		var date *time.Time
		if !h.Date.IsZero() {
			d := h.Date
			date = &d
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO holidays (id, practitioner_id, name, holiday_date, month_day, is_recurring, blocks_appointments)
			VALUES ($1, NULLIF($2, '')::uuid, $3, $4, NULLIF($5, ''), $6, $7)
		`, h.ID, practitionerID, h.Name, date, h.MonthDay, h.IsRecurring, h.BlocksAppointments); err != nil {
			return err
		}
	}
	return nil
}

func (r *ScheduleRepository) UpsertSettings(ctx context.Context, tx pgx.Tx, practitionerID string, s ScheduleSettings) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO schedule_settings (practitioner_id, default_session_minutes, min_notice_hours, max_advance_days)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (practitioner_id)
		DO UPDATE SET default_session_minutes = EXCLUDED.default_session_minutes,
		              min_notice_hours = EXCLUDED.min_notice_hours,
		              max_advance_days = EXCLUDED.max_advance_days,
		              updated_at = now()
	`, practitionerID, s.DefaultSessionMinutes, s.MinNoticeHours, s.MaxAdvanceDays)
	return err
}

// Load gathers every engine input for one practitioner. A practitioner with
// no settings row resolves at the default session granularity.
func (r *ScheduleRepository) Load(ctx context.Context, practitionerID string) (Snapshot, error) {
	snap := Snapshot{Settings: ScheduleSettings{DefaultSessionMinutes: defaultSessionMinutes}}

	templates, err := r.loadTemplates(ctx, practitionerID)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Templates = templates

	events, err := r.loadOverrides(ctx, practitionerID)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Events = events

	holidays, err := r.loadHolidays(ctx, practitionerID)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Holidays = holidays

	err = r.pool.QueryRow(ctx, `
		SELECT default_session_minutes, min_notice_hours, max_advance_days
		FROM schedule_settings
		WHERE practitioner_id = $1
	`, practitionerID).Scan(
		&snap.Settings.DefaultSessionMinutes,
		&snap.Settings.MinNoticeHours,
		&snap.Settings.MaxAdvanceDays,
	)
	if err != nil && !IsNotFound(err) {
		return Snapshot{}, err
	}
	if snap.Settings.DefaultSessionMinutes <= 0 {
		snap.Settings.DefaultSessionMinutes = defaultSessionMinutes
	}
	return snap, nil
}

func (r *ScheduleRepository) loadTemplates(ctx context.Context, practitionerID string) ([]availability.TemplateSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, weekday, start_time, end_time, session_type, is_available
		FROM schedule_templates
		WHERE practitioner_id = $1
		ORDER BY weekday, start_time
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []availability.TemplateSlot
	for rows.Next() {
		var t availability.TemplateSlot
		var weekday int
		if err := rows.Scan(&t.ID, &weekday, &t.StartTime, &t.EndTime, &t.SessionType, &t.IsAvailable); err != nil {
			return nil, err
		}
		t.Weekday = time.Weekday(weekday)
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *ScheduleRepository) loadOverrides(ctx context.Context, practitionerID string) ([]availability.OverrideEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, title, event_type, recurrence_type, start_date, end_date,
			COALESCE(start_time, ''), COALESCE(end_time, ''),
			days_of_week, day_of_month, week_of_month, weekday
		FROM schedule_overrides
		WHERE practitioner_id = $1
		ORDER BY start_date, id
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []availability.OverrideEvent
	for rows.Next() {
		var ev availability.OverrideEvent
		var kind, recurrence string
		var days []int32
		var weekday int
		if err := rows.Scan(&ev.ID, &ev.Title, &kind, &recurrence, &ev.StartDate, &ev.EndDate,
			&ev.StartTime, &ev.EndTime, &days, &ev.DayOfMonth, &ev.WeekOfMonth, &weekday); err != nil {
			return nil, err
		}
		ev.Kind = availability.EventKind(kind)
		ev.Recurrence = availability.RecurrenceKind(recurrence)
		ev.Weekday = time.Weekday(weekday)
		for _, d := range days {
			ev.DaysOfWeek = append(ev.DaysOfWeek, time.Weekday(d))
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *ScheduleRepository) loadHolidays(ctx context.Context, practitionerID string) ([]availability.Holiday, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, holiday_date, COALESCE(month_day, ''), is_recurring, blocks_appointments
		FROM holidays
		WHERE practitioner_id IS NULL OR practitioner_id = $1
		ORDER BY id
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []availability.Holiday
	for rows.Next() {
		var h availability.Holiday
		var date *time.Time
		if err := rows.Scan(&h.ID, &h.Name, &date, &h.MonthDay, &h.IsRecurring, &h.BlocksAppointments); err != nil {
			return nil, err
		}
		if date != nil {
			h.Date = date.UTC()
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}
