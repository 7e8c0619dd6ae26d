package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/appsequentia/terapia-conexao-vital-66-sub000/services/practitioner-service/internal/outbox"
	"github.com/appsequentia/terapia-conexao-vital-66-sub000/services/practitioner-service/internal/storage"
	"github.com/jackc/pgx/v5"
)

const scheduleChangedEvent = "practitioner.schedule.changed.v1"

// validClock requires zero-padded HH:mm so lexicographic ordering of stored
// times stays chronological.
func validClock(s string) bool {
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// normalizeRecurrence maps API recurrence values onto the stored variants.
// Legacy "monthly" rows that carry days_of_week behaved weekly in practice,
// so they normalize to the weekly arm; bare "monthly" means by calendar date.
func normalizeRecurrence(rec string, daysOfWeek []int) (string, bool) {
	switch rec {
	case "one_time", "weekly", "monthly_by_date", "monthly_by_weekday", "yearly":
		return rec, true
	case "monthly":
		if len(daysOfWeek) > 0 {
			return "weekly", true
		}
		return "monthly_by_date", true
	}
	return "", false
}

// publishScheduleSnapshot writes the full active collection into the outbox
// inside the mutation transaction, so consumers always converge on the final
// state regardless of delivery order.
func (h *Handler) publishScheduleSnapshot(ctx context.Context, tx pgx.Tx, practitionerID, collection string, body map[string]any) error {
	payload := map[string]any{
		"practitioner_id": practitionerID,
		"collection":      collection,
	}
	for k, v := range body {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	aggregateID := practitionerID
	if aggregateID == "" {
		aggregateID = "global"
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "schedule",
		AggregateID:   aggregateID,
		EventType:     scheduleChangedEvent,
		Payload:       raw,
	})
}

// PutTemplates replaces the whole weekly template set.
func (h *Handler) PutTemplates(w http.ResponseWriter, r *http.Request) {
	practitionerID := practitionerIDFromHeader(r)
	if practitionerID == "" {
		http.Error(w, "missing X-Practitioner-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		Templates []storage.TemplateRow `json:"templates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	for i := range req.Templates {
		t := &req.Templates[i]
		if t.Weekday < 0 || t.Weekday > 6 {
			http.Error(w, "weekday must be between 0 and 6", http.StatusBadRequest)
			return
		}
		if !validClock(t.StartTime) || !validClock(t.EndTime) || t.EndTime <= t.StartTime {
			http.Error(w, "invalid start_time/end_time", http.StatusBadRequest)
			return
		}
		switch t.SessionType {
		case "":
			t.SessionType = "both"
		case "online", "in-person", "both":
		default:
			http.Error(w, "invalid session_type", http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	saved, err := h.repo.ReplaceTemplates(ctx, tx, practitionerID, req.Templates)
	if err != nil {
		http.Error(w, "failed to save templates", http.StatusInternalServerError)
		return
	}
	if err := h.publishScheduleSnapshot(ctx, tx, practitionerID, "templates", map[string]any{"templates": saved}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"templates": saved})
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	practitionerID := practitionerIDFromHeader(r)
	if practitionerID == "" {
		http.Error(w, "missing X-Practitioner-Id", http.StatusBadRequest)
		return
	}
	templates, err := h.repo.ListTemplates(r.Context(), practitionerID)
	if err != nil {
		http.Error(w, "failed to list templates", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"templates": templates})
}

func (h *Handler) CreateOverride(w http.ResponseWriter, r *http.Request) {
	practitionerID := practitionerIDFromHeader(r)
	if practitionerID == "" {
		http.Error(w, "missing X-Practitioner-Id", http.StatusBadRequest)
		return
	}

	var req storage.OverrideRow
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	if req.EventType != "block" && req.EventType != "available" {
		http.Error(w, "event_type must be block or available", http.StatusBadRequest)
		return
	}
	recurrence, ok := normalizeRecurrence(req.Recurrence, req.DaysOfWeek)
	if !ok {
		http.Error(w, "invalid recurrence_type", http.StatusBadRequest)
		return
	}
	req.Recurrence = recurrence
	if !validDate(req.StartDate) {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}
	if req.EndDate != "" && (!validDate(req.EndDate) || req.EndDate < req.StartDate) {
		http.Error(w, "invalid end_date", http.StatusBadRequest)
		return
	}
	// A time range is optional on blocks (empty = whole day) but required on
	// extra availability.
	if (req.StartTime == "") != (req.EndTime == "") {
		http.Error(w, "start_time and end_time must be set together", http.StatusBadRequest)
		return
	}
	if req.StartTime != "" && (!validClock(req.StartTime) || !validClock(req.EndTime) || req.EndTime <= req.StartTime) {
		http.Error(w, "invalid start_time/end_time", http.StatusBadRequest)
		return
	}
	if req.EventType == "available" && req.StartTime == "" {
		http.Error(w, "available events require a time range", http.StatusBadRequest)
		return
	}
	switch req.Recurrence {
	case "weekly":
		if len(req.DaysOfWeek) == 0 {
			http.Error(w, "weekly recurrence requires days_of_week", http.StatusBadRequest)
			return
		}
		for _, d := range req.DaysOfWeek {
			if d < 0 || d > 6 {
				http.Error(w, "days_of_week values must be between 0 and 6", http.StatusBadRequest)
				return
			}
		}
	case "monthly_by_date":
		// 0 derives the day from start_date.
		if req.DayOfMonth != 0 && (req.DayOfMonth < 1 || req.DayOfMonth > 31) {
			http.Error(w, "day_of_month must be between 1 and 31", http.StatusBadRequest)
			return
		}
	case "monthly_by_weekday":
		if req.WeekOfMonth != -1 && (req.WeekOfMonth < 1 || req.WeekOfMonth > 5) {
			http.Error(w, "week_of_month must be 1..5 or -1 for the last week", http.StatusBadRequest)
			return
		}
		if req.Weekday < 0 || req.Weekday > 6 {
			http.Error(w, "weekday must be between 0 and 6", http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.CreateOverride(ctx, tx, practitionerID, req)
	if err != nil {
		http.Error(w, "failed to create override", http.StatusInternalServerError)
		return
	}
	snapshot, err := h.repo.OverridesSnapshot(ctx, tx, practitionerID)
	if err != nil {
		http.Error(w, "failed to snapshot overrides", http.StatusInternalServerError)
		return
	}
	if err := h.publishScheduleSnapshot(ctx, tx, practitionerID, "overrides", map[string]any{"overrides": snapshot}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	practitionerID := practitionerIDFromHeader(r)
	if practitionerID == "" {
		http.Error(w, "missing X-Practitioner-Id", http.StatusBadRequest)
		return
	}
	overrides, err := h.repo.ListOverrides(r.Context(), practitionerID)
	if err != nil {
		http.Error(w, "failed to list overrides", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"overrides": overrides})
}

func (h *Handler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	practitionerID := practitionerIDFromHeader(r)
	if practitionerID == "" {
		http.Error(w, "missing X-Practitioner-Id", http.StatusBadRequest)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.DeactivateOverride(ctx, tx, practitionerID, id); err != nil {
		if err == pgx.ErrNoRows {
			http.Error(w, "override not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete override", http.StatusInternalServerError)
		return
	}
	snapshot, err := h.repo.OverridesSnapshot(ctx, tx, practitionerID)
	if err != nil {
		http.Error(w, "failed to snapshot overrides", http.StatusInternalServerError)
		return
	}
	if err := h.publishScheduleSnapshot(ctx, tx, practitionerID, "overrides", map[string]any{"overrides": snapshot}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	// Empty practitioner id scopes the holiday globally (admin surface; the
	// gateway only routes admins here without the header).
	practitionerID := practitionerIDFromHeader(r)

	var req storage.HolidayRow
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.IsRecurring {
		if len(req.MonthDay) != 5 || req.MonthDay[2] != '-' || !validDate("2024-"+req.MonthDay) {
			http.Error(w, "recurring holidays require month_day as MM-DD", http.StatusBadRequest)
			return
		}
		req.Date = ""
	} else {
		if !validDate(req.Date) {
			http.Error(w, "holiday_date is required as YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		req.MonthDay = ""
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.CreateHoliday(ctx, tx, practitionerID, req)
	if err != nil {
		http.Error(w, "failed to create holiday", http.StatusInternalServerError)
		return
	}
	snapshot, err := h.repo.HolidaysSnapshot(ctx, tx, practitionerID)
	if err != nil {
		http.Error(w, "failed to snapshot holidays", http.StatusInternalServerError)
		return
	}
	if err := h.publishScheduleSnapshot(ctx, tx, practitionerID, "holidays", map[string]any{"holidays": snapshot}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	practitionerID := practitionerIDFromHeader(r)
	holidays, err := h.repo.ListHolidays(r.Context(), practitionerID)
	if err != nil {
		http.Error(w, "failed to list holidays", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"holidays": holidays})
}

func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	practitionerID := practitionerIDFromHeader(r)
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.DeactivateHoliday(ctx, tx, practitionerID, id); err != nil {
		if err == pgx.ErrNoRows {
			http.Error(w, "holiday not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete holiday", http.StatusInternalServerError)
		return
	}
	snapshot, err := h.repo.HolidaysSnapshot(ctx, tx, practitionerID)
	if err != nil {
		http.Error(w, "failed to snapshot holidays", http.StatusInternalServerError)
		return
	}
	if err := h.publishScheduleSnapshot(ctx, tx, practitionerID, "holidays", map[string]any{"holidays": snapshot}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	practitionerID := practitionerIDFromHeader(r)
	if practitionerID == "" {
		http.Error(w, "missing X-Practitioner-Id", http.StatusBadRequest)
		return
	}
	settings, _, err := h.repo.GetSettings(r.Context(), practitionerID)
	if err != nil {
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(settings)
}

func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	practitionerID := practitionerIDFromHeader(r)
	if practitionerID == "" {
		http.Error(w, "missing X-Practitioner-Id", http.StatusBadRequest)
		return
	}

	var req storage.SettingsRow
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.DefaultSessionMinutes <= 0 || req.DefaultSessionMinutes > 8*60 {
		http.Error(w, "invalid default_session_minutes", http.StatusBadRequest)
		return
	}
	if req.MinNoticeHours < 0 || req.MaxAdvanceDays < 0 {
		http.Error(w, "invalid notice/advance values", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.UpsertSettings(ctx, tx, practitionerID, req); err != nil {
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	if err := h.publishScheduleSnapshot(ctx, tx, practitionerID, "settings", map[string]any{"settings": req}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
