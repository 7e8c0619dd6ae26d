package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Snapshot row types double as the schedule-changed event payload shape; the
// booking-service read model decodes the same fields.

type TemplateRow struct {
	ID          string `json:"id"`
	Weekday     int    `json:"weekday"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	SessionType string `json:"session_type"`
	IsAvailable bool   `json:"is_available"`
}

type OverrideRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	EventType   string `json:"event_type"`
	Recurrence  string `json:"recurrence_type"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	DaysOfWeek  []int  `json:"days_of_week,omitempty"`
	DayOfMonth  int    `json:"day_of_month,omitempty"`
	WeekOfMonth int    `json:"week_of_month,omitempty"`
	Weekday     int    `json:"weekday,omitempty"`
}

type HolidayRow struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Date               string `json:"holiday_date,omitempty"`
	MonthDay           string `json:"month_day,omitempty"`
	IsRecurring        bool   `json:"is_recurring"`
	BlocksAppointments bool   `json:"blocks_appointments"`
}

type SettingsRow struct {
	DefaultSessionMinutes int `json:"default_session_minutes"`
	MinNoticeHours        int `json:"min_notice_hours"`
	MaxAdvanceDays        int `json:"max_advance_days"`
}

// ReplaceTemplates swaps the whole weekly template set; the API exposes
// templates with PUT-the-set semantics.
func (r *Repository) ReplaceTemplates(ctx context.Context, tx pgx.Tx, practitionerID string, templates []TemplateRow) ([]TemplateRow, error) {
	if _, err := tx.Exec(ctx, `
		DELETE FROM schedule_templates WHERE practitioner_id = $1
	`, practitionerID); err != nil {
		return nil, err
	}
	out := make([]TemplateRow, 0, len(templates))
	for _, t := range templates {
		t.ID = uuid.NewString()
		if _, err := tx.Exec(ctx, `
			INSERT INTO schedule_templates (id, practitioner_id, weekday, start_time, end_time, session_type, is_available)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, t.ID, practitionerID, t.Weekday, t.StartTime, t.EndTime, t.SessionType, t.IsAvailable); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Repository) TemplatesSnapshot(ctx context.Context, tx pgx.Tx, practitionerID string) ([]TemplateRow, error) {
	rows, err := tx.Query(ctx, `
		SELECT id::text, weekday, start_time, end_time, session_type, is_available
		FROM schedule_templates
		WHERE practitioner_id = $1
		ORDER BY weekday, start_time
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TemplateRow{}
	for rows.Next() {
		var t TemplateRow
		if err := rows.Scan(&t.ID, &t.Weekday, &t.StartTime, &t.EndTime, &t.SessionType, &t.IsAvailable); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) CreateOverride(ctx context.Context, tx pgx.Tx, practitionerID string, o OverrideRow) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO schedule_overrides
			(id, practitioner_id, title, event_type, recurrence_type, start_date, end_date,
			start_time, end_time, days_of_week, day_of_month, week_of_month, weekday)
		VALUES ($1, $2, $3, $4, $5, $6::date, NULLIF($7, '')::date,
			NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12, $13)
	`, id, practitionerID, o.Title, o.EventType, o.Recurrence, o.StartDate, o.EndDate,
		o.StartTime, o.EndTime, o.DaysOfWeek, o.DayOfMonth, o.WeekOfMonth, o.Weekday)
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeactivateOverride soft deletes; snapshots only ever carry active rows.
func (r *Repository) DeactivateOverride(ctx context.Context, tx pgx.Tx, practitionerID, overrideID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE schedule_overrides
		SET is_active = false, updated_at = now()
		WHERE id = $1 AND practitioner_id = $2 AND is_active
	`, overrideID, practitionerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) OverridesSnapshot(ctx context.Context, tx pgx.Tx, practitionerID string) ([]OverrideRow, error) {
	rows, err := tx.Query(ctx, `
		SELECT id::text, title, event_type, recurrence_type,
			to_char(start_date, 'YYYY-MM-DD'),
			COALESCE(to_char(end_date, 'YYYY-MM-DD'), ''),
			COALESCE(start_time, ''), COALESCE(end_time, ''),
			days_of_week, day_of_month, week_of_month, weekday
		FROM schedule_overrides
		WHERE practitioner_id = $1 AND is_active
		ORDER BY start_date, id
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []OverrideRow{}
	for rows.Next() {
		var o OverrideRow
		if err := rows.Scan(&o.ID, &o.Title, &o.EventType, &o.Recurrence, &o.StartDate, &o.EndDate,
			&o.StartTime, &o.EndTime, &o.DaysOfWeek, &o.DayOfMonth, &o.WeekOfMonth, &o.Weekday); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CreateHoliday scopes to one practitioner, or globally when practitionerID
// is empty (admin surface).
func (r *Repository) CreateHoliday(ctx context.Context, tx pgx.Tx, practitionerID string, h HolidayRow) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO holidays (id, practitioner_id, name, holiday_date, month_day, is_recurring, blocks_appointments)
		VALUES ($1, NULLIF($2, '')::uuid, $3, NULLIF($4, '')::date, NULLIF($5, ''), $6, $7)
	`, id, practitionerID, h.Name, h.Date, h.MonthDay, h.IsRecurring, h.BlocksAppointments)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) DeactivateHoliday(ctx context.Context, tx pgx.Tx, practitionerID, holidayID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE holidays
		SET is_active = false, updated_at = now()
		WHERE id = $1
		  AND practitioner_id IS NOT DISTINCT FROM NULLIF($2, '')::uuid
		  AND is_active
	`, holidayID, practitionerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) HolidaysSnapshot(ctx context.Context, tx pgx.Tx, practitionerID string) ([]HolidayRow, error) {
	rows, err := tx.Query(ctx, `
		SELECT id::text, name,
			COALESCE(to_char(holiday_date, 'YYYY-MM-DD'), ''),
			COALESCE(month_day, ''), is_recurring, blocks_appointments
		FROM holidays
		WHERE practitioner_id IS NOT DISTINCT FROM NULLIF($1, '')::uuid AND is_active
		ORDER BY id
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []HolidayRow{}
	for rows.Next() {
		var h HolidayRow
		if err := rows.Scan(&h.ID, &h.Name, &h.Date, &h.MonthDay, &h.IsRecurring, &h.BlocksAppointments); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertSettings(ctx context.Context, tx pgx.Tx, practitionerID string, s SettingsRow) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO schedule_settings (practitioner_id, default_session_minutes, min_notice_hours, max_advance_days)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (practitioner_id) DO UPDATE
		SET default_session_minutes = EXCLUDED.default_session_minutes,
			min_notice_hours = EXCLUDED.min_notice_hours,
			max_advance_days = EXCLUDED.max_advance_days,
			updated_at = now()
	`, practitionerID, s.DefaultSessionMinutes, s.MinNoticeHours, s.MaxAdvanceDays)
	return err
}

func (r *Repository) GetSettings(ctx context.Context, practitionerID string) (SettingsRow, bool, error) {
	var s SettingsRow
	err := r.pool.QueryRow(ctx, `
		SELECT default_session_minutes, min_notice_hours, max_advance_days
		FROM schedule_settings
		WHERE practitioner_id = $1
	`, practitionerID).Scan(&s.DefaultSessionMinutes, &s.MinNoticeHours, &s.MaxAdvanceDays)
	if err != nil {
		if err == pgx.ErrNoRows {
			return SettingsRow{DefaultSessionMinutes: 60}, false, nil
		}
		return SettingsRow{}, false, err
	}
	return s, true, nil
}

// ListTemplates serves reads outside a mutation transaction.
func (r *Repository) ListTemplates(ctx context.Context, practitionerID string) ([]TemplateRow, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	return r.TemplatesSnapshot(ctx, tx, practitionerID)
}

func (r *Repository) ListOverrides(ctx context.Context, practitionerID string) ([]OverrideRow, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	return r.OverridesSnapshot(ctx, tx, practitionerID)
}

func (r *Repository) ListHolidays(ctx context.Context, practitionerID string) ([]HolidayRow, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	return r.HolidaysSnapshot(ctx, tx, practitionerID)
}
