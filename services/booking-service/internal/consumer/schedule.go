package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/appsequentia/terapia-conexao-vital-66-sub000/libs/db"
	"github.com/appsequentia/terapia-conexao-vital-66-sub000/services/booking-service/internal/availability"
	"github.com/appsequentia/terapia-conexao-vital-66-sub000/services/booking-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

// practitioner.schedule.changed.v1 carries the full active snapshot of the
// collection that changed. Replacing the whole per-practitioner collection
// keeps the read model idempotent under redelivery and reordering.
type schedulePayload struct {
	PractitionerID string            `json:"practitioner_id"`
	Collection     string            `json:"collection"` // templates | overrides | holidays | settings
	Templates      []templatePayload `json:"templates,omitempty"`
	Overrides      []overridePayload `json:"overrides,omitempty"`
	Holidays       []holidayPayload  `json:"holidays,omitempty"`
	Settings       *settingsPayload  `json:"settings,omitempty"`
}

type templatePayload struct {
	ID          string `json:"id"`
	Weekday     int    `json:"weekday"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	SessionType string `json:"session_type"`
	IsAvailable bool   `json:"is_available"`
}

type overridePayload struct {
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

type holidayPayload struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Date               string `json:"holiday_date,omitempty"`
	MonthDay           string `json:"month_day,omitempty"`
	IsRecurring        bool   `json:"is_recurring"`
	BlocksAppointments bool   `json:"blocks_appointments"`
}

type settingsPayload struct {
	DefaultSessionMinutes int `json:"default_session_minutes"`
	MinNoticeHours        int `json:"min_notice_hours"`
	MaxAdvanceDays        int `json:"max_advance_days"`
}

// NewScheduleHandler returns the consumer handler that mirrors schedule
// snapshots into the local read-model tables.
func NewScheduleHandler(pool *db.Pool, schedule *storage.ScheduleRepository, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var payload schedulePayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid schedule event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		// Global holiday snapshots carry an empty practitioner id.
		if payload.PractitionerID == "" && payload.Collection != "holidays" {
			logger.Error("schedule event missing practitioner_id", "topic", msg.Topic)
			return nil
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		switch payload.Collection {
		case "templates":
			err = schedule.ReplaceTemplates(ctx, tx, payload.PractitionerID, payload.templateSlots())
		case "overrides":
			events, convErr := payload.overrideEvents()
			if convErr != nil {
				logger.Error("malformed override snapshot dropped", "err", convErr, "practitioner_id", payload.PractitionerID)
				return nil
			}
			err = schedule.ReplaceOverrides(ctx, tx, payload.PractitionerID, events)
		case "holidays":
			holidays, convErr := payload.holidayList()
			if convErr != nil {
				logger.Error("malformed holiday snapshot dropped", "err", convErr, "practitioner_id", payload.PractitionerID)
				return nil
			}
			err = schedule.ReplaceHolidays(ctx, tx, payload.PractitionerID, holidays)
		case "settings":
			if payload.Settings == nil {
				logger.Error("settings snapshot missing body", "practitioner_id", payload.PractitionerID)
				return nil
			}
			err = schedule.UpsertSettings(ctx, tx, payload.PractitionerID, storage.ScheduleSettings{
				DefaultSessionMinutes: payload.Settings.DefaultSessionMinutes,
				MinNoticeHours:        payload.Settings.MinNoticeHours,
				MaxAdvanceDays:        payload.Settings.MaxAdvanceDays,
			})
		default:
			logger.Error("unknown schedule collection", "collection", payload.Collection)
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Commit(ctx)
	}
}

func (p schedulePayload) templateSlots() []availability.TemplateSlot {
	out := make([]availability.TemplateSlot, 0, len(p.Templates))
	for _, t := range p.Templates {
		out = append(out, availability.TemplateSlot{
			ID:          t.ID,
			Weekday:     time.Weekday(t.Weekday),
			StartTime:   t.StartTime,
			EndTime:     t.EndTime,
			SessionType: t.SessionType,
			IsAvailable: t.IsAvailable,
		})
	}
	return out
}

func (p schedulePayload) overrideEvents() ([]availability.OverrideEvent, error) {
	out := make([]availability.OverrideEvent, 0, len(p.Overrides))
	for _, o := range p.Overrides {
		start, err := availability.ParseDate(o.StartDate)
		if err != nil {
			return nil, fmt.Errorf("override %s: %w", o.ID, err)
		}
		ev := availability.OverrideEvent{
			ID:          o.ID,
			Title:       o.Title,
			Kind:        availability.EventKind(o.EventType),
			Recurrence:  availability.RecurrenceKind(o.Recurrence),
			StartDate:   start,
			StartTime:   o.StartTime,
			EndTime:     o.EndTime,
			DayOfMonth:  o.DayOfMonth,
			WeekOfMonth: o.WeekOfMonth,
			Weekday:     time.Weekday(o.Weekday),
		}
		if o.EndDate != "" {
			end, err := availability.ParseDate(o.EndDate)
			if err != nil {
				return nil, fmt.Errorf("override %s end_date: %w", o.ID, err)
			}
			ev.EndDate = &end
		}
		for _, d := range o.DaysOfWeek {
			ev.DaysOfWeek = append(ev.DaysOfWeek, time.Weekday(d))
		}
		out = append(out, ev)
	}
	return out, nil
}

func (p schedulePayload) holidayList() ([]availability.Holiday, error) {
	out := make([]availability.Holiday, 0, len(p.Holidays))
	for _, h := range p.Holidays {
		hol := availability.Holiday{
			ID:                 h.ID,
			Name:               h.Name,
			MonthDay:           h.MonthDay,
			IsRecurring:        h.IsRecurring,
			BlocksAppointments: h.BlocksAppointments,
		}
		if h.Date != "" {
			date, err := availability.ParseDate(h.Date)
			if err != nil {
				return nil, fmt.Errorf("holiday %s: %w", h.ID, err)
			}
			hol.Date = date
		}
		out = append(out, hol)
	}
	return out, nil
}
