package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/appsequentia/terapia-conexao-vital-66-sub000/services/booking-service/internal/availability"
	"github.com/appsequentia/terapia-conexao-vital-66-sub000/services/booking-service/internal/model"
	"github.com/appsequentia/terapia-conexao-vital-66-sub000/services/booking-service/internal/outbox"
	"github.com/appsequentia/terapia-conexao-vital-66-sub000/services/booking-service/internal/storage"
	"github.com/jackc/pgx/v5"
)

// maxRangeDays caps public availability queries; a month view is the widest
// range the frontend asks for.
const maxRangeDays = 31

const dateLayout = "2006-01-02"

type BookingHandler struct {
	repo       *storage.BookingRepository
	schedule   *storage.ScheduleRepository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
	offsets    []time.Duration
}

func NewBookingHandler(repo *storage.BookingRepository, schedule *storage.ScheduleRepository, outboxRepo *outbox.Repository, logger *slog.Logger, reminderOffsets []time.Duration) *BookingHandler {
	return &BookingHandler{
		repo:       repo,
		schedule:   schedule,
		outboxRepo: outboxRepo,
		logger:     logger,
		offsets:    reminderOffsets,
	}
}

type createBookingRequest struct {
	PractitionerID string `json:"practitioner_id"`
	ServiceID      string `json:"service_id"`
	ClientID       string `json:"client_id"`
	ClientName     string `json:"client_name"`
	ClientEmail    string `json:"client_email"`
	ClientPhone    string `json:"client_phone"`
	SessionDate    string `json:"session_date"` // YYYY-MM-DD
	StartTime      string `json:"start_time"`   // HH:mm
	SessionType    string `json:"session_type"`
}

type createBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	SessionDate   string `json:"session_date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

type cancelBookingRequest struct {
	PractitionerID string `json:"practitioner_id"`
	AppointmentID  string `json:"appointment_id"`
	Reason         string `json:"reason"`
}

type cancelBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at"`
}

type listAppointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	ServiceID     string `json:"service_id"`
	ClientName    string `json:"client_name"`
	SessionDate   string `json:"session_date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	SessionType   string `json:"session_type"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type dayAvailabilityItem struct {
	Date  string                  `json:"date"`
	Slots []availability.TimeSlot `json:"slots"`
}

// Availability resolves per-date slot availability across an inclusive date
// range. The whole computation runs through the availability package; no
// other code path derives slots.
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	practitionerID, from, to, ok := h.availabilityQuery(w, r)
	if !ok {
		return
	}

	days, ok := h.resolveRange(w, r.Context(), practitionerID, from, to)
	if !ok {
		return
	}

	items := make([]dayAvailabilityItem, 0, len(days))
	for _, d := range days {
		items = append(items, dayAvailabilityItem{Date: d.Date.Format(dateLayout), Slots: d.Slots})
	}
	writeJSON(w, http.StatusOK, items)
}

// Calendar returns the date -> available-times map consumed by calendar
// pickers.
func (h *BookingHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	practitionerID, from, to, ok := h.availabilityQuery(w, r)
	if !ok {
		return
	}

	days, ok := h.resolveRange(w, r.Context(), practitionerID, from, to)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, availability.CalendarMap(days))
}

func (h *BookingHandler) availabilityQuery(w http.ResponseWriter, r *http.Request) (string, time.Time, time.Time, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return "", time.Time{}, time.Time{}, false
	}

	practitionerID := strings.TrimSpace(r.URL.Query().Get("practitioner_id"))
	fromStr := strings.TrimSpace(r.URL.Query().Get("from"))
	toStr := strings.TrimSpace(r.URL.Query().Get("to"))
	if practitionerID == "" || fromStr == "" || toStr == "" {
		http.Error(w, "practitioner_id, from, and to are required", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}

	from, err := availability.ParseDate(fromStr)
	if err != nil {
		http.Error(w, "invalid from date", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	to, err := availability.ParseDate(toStr)
	if err != nil {
		http.Error(w, "invalid to date", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	if to.Before(from) {
		http.Error(w, "to must not precede from", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	if int(to.Sub(from).Hours()/24)+1 > maxRangeDays {
		http.Error(w, "date range too wide", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	return practitionerID, from, to, true
}

func (h *BookingHandler) resolveRange(w http.ResponseWriter, ctx context.Context, practitionerID string, from, to time.Time) ([]availability.DayAvailability, bool) {
	snap, err := h.schedule.Load(ctx, practitionerID)
	if err != nil {
		h.logger.Error("schedule snapshot load failed", "err", err, "practitioner_id", practitionerID)
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return nil, false
	}
	booked, err := h.repo.ListBookedInRange(ctx, practitionerID, from, to)
	if err != nil {
		h.logger.Error("booked appointments load failed", "err", err, "practitioner_id", practitionerID)
		http.Error(w, "failed to load appointments", http.StatusInternalServerError)
		return nil, false
	}
	return availability.Resolve(engineInput(snap, booked, from, to)), true
}

func engineInput(snap storage.Snapshot, appts []model.Appointment, from, to time.Time) availability.Input {
	booked := make([]availability.BookedAppointment, 0, len(appts))
	for _, a := range appts {
		booked = append(booked, availability.BookedAppointment{
			Date:      a.SessionDate,
			StartTime: a.StartTime,
			EndTime:   a.EndTime,
		})
	}
	return availability.Input{
		From:           from,
		To:             to,
		Templates:      snap.Templates,
		Events:         snap.Events,
		Holidays:       snap.Holidays,
		Appointments:   booked,
		SessionMinutes: snap.Settings.DefaultSessionMinutes,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.PractitionerID = strings.TrimSpace(req.PractitionerID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.StartTime = strings.TrimSpace(req.StartTime)

	if req.PractitionerID == "" || req.ServiceID == "" || req.ClientName == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}

	sessionDate, err := availability.ParseDate(strings.TrimSpace(req.SessionDate))
	if err != nil {
		http.Error(w, "invalid session_date", http.StatusBadRequest)
		return
	}
	startMins, err := availability.ParseClock(req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.repo.LockIdempotencyKey(ctx, tx, req.PractitionerID, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.StatusCode > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			if len(rec.ResponsePayload) > 0 {
				_, _ = w.Write(rec.ResponsePayload)
				return
			}
			_ = json.NewEncoder(w).Encode(createBookingResponse{AppointmentID: rec.AppointmentID})
			return
		}
	}

	// The requested slot must come out of the same resolver the public
	// availability endpoints use: a one-day resolution with the requested time
	// present and available.
	snap, err := h.schedule.Load(ctx, req.PractitionerID)
	if err != nil {
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	booked, err := h.repo.ListBookedInRange(ctx, req.PractitionerID, sessionDate, sessionDate)
	if err != nil {
		http.Error(w, "failed to load appointments", http.StatusInternalServerError)
		return
	}
	if !slotBookable(engineInput(snap, booked, sessionDate, sessionDate), req.StartTime) {
		if idempotencyKey != "" && h.finalizeIdempotencyError(ctx, tx, req.PractitionerID, idempotencyKey, http.StatusUnprocessableEntity, "requested time is not available") {
			_ = tx.Commit(ctx)
			return
		}
		http.Error(w, "requested time is not available", http.StatusUnprocessableEntity)
		return
	}

	// Billing entitlements cap monthly booked appointments per practitioner.
	// A practitioner without a cached entitlement row gets free-tier limits.
	if err := h.enforceMonthlyAppointmentLimit(ctx, tx, req.PractitionerID, sessionDate); err != nil {
		if errors.Is(err, errPaymentRequired) {
			if idempotencyKey != "" && h.finalizeIdempotencyError(ctx, tx, req.PractitionerID, idempotencyKey, http.StatusPaymentRequired, err.Error()) {
				_ = tx.Commit(ctx)
				return
			}
			http.Error(w, err.Error(), http.StatusPaymentRequired)
			return
		}
		http.Error(w, "entitlements check failed", http.StatusInternalServerError)
		return
	}

	appt := &model.Appointment{
		PractitionerID: req.PractitionerID,
		ServiceID:      req.ServiceID,
		ClientID:       strings.TrimSpace(req.ClientID),
		ClientName:     req.ClientName,
		ClientEmail:    strings.TrimSpace(req.ClientEmail),
		ClientPhone:    strings.TrimSpace(req.ClientPhone),
		SessionDate:    sessionDate,
		StartTime:      req.StartTime,
		EndTime:        availability.FormatClock(startMins + snap.Settings.DefaultSessionMinutes),
		SessionType:    strings.TrimSpace(req.SessionType),
		Status:         "booked",
	}

	id, err := h.repo.Create(ctx, tx, appt)
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}

	evtPayload, err := json.Marshal(map[string]any{
		"appointment_id":  id,
		"practitioner_id": appt.PractitionerID,
		"service_id":      appt.ServiceID,
		"client_name":     appt.ClientName,
		"client_email":    appt.ClientEmail,
		"client_phone":    appt.ClientPhone,
		"session_date":    appt.SessionDate.Format(dateLayout),
		"start_time":      appt.StartTime,
		"end_time":        appt.EndTime,
		"session_type":    appt.SessionType,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}

	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   id,
		EventType:     "booking.appointment.booked.v1",
		Payload:       evtPayload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	h.enqueueReminders(ctx, tx, id, appt, startMins)

	respBody, err := json.Marshal(createBookingResponse{
		AppointmentID: id,
		SessionDate:   appt.SessionDate.Format(dateLayout),
		StartTime:     appt.StartTime,
		EndTime:       appt.EndTime,
	})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.repo.FinalizeIdempotency(ctx, tx, req.PractitionerID, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

// slotBookable reports whether the requested start time is an available slot
// of the one-day resolution.
func slotBookable(in availability.Input, startTime string) bool {
	for _, day := range availability.Resolve(in) {
		for _, slot := range day.Slots {
			if slot.Time == startTime && slot.Available {
				return true
			}
		}
	}
	return false
}

var errPaymentRequired = errors.New("monthly appointment limit reached (upgrade required)")

func (h *BookingHandler) enforceMonthlyAppointmentLimit(ctx context.Context, tx pgx.Tx, practitionerID string, sessionDate time.Time) error {
	const defaultFreeMax = 200

	ent, ok, err := h.repo.GetPractitionerEntitlements(ctx, tx, practitionerID)
	if err != nil {
		return err
	}
	max := defaultFreeMax
	if ok && ent.MaxMonthlyAppointments > 0 {
		max = ent.MaxMonthlyAppointments
	}
	if max <= 0 {
		return nil
	}

	monthStart := time.Date(sessionDate.Year(), sessionDate.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	cnt, err := h.repo.CountBookedInRange(ctx, tx, practitionerID, monthStart, monthEnd)
	if err != nil {
		return err
	}
	if cnt >= max {
		return errPaymentRequired
	}
	return nil
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.PractitionerID = strings.TrimSpace(req.PractitionerID)
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.PractitionerID == "" || req.AppointmentID == "" {
		http.Error(w, "practitioner_id and appointment_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetAppointmentForUpdate(ctx, tx, req.PractitionerID, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	if appt.Status == "cancelled" && appt.CancelledAt != nil {
		h.writeCancelResponse(w, appt.ID, appt.CancelledAt.UTC())
		return
	}
	if appt.Status != "booked" {
		http.Error(w, "appointment cannot be cancelled", http.StatusConflict)
		return
	}

	cancelledAt, err := h.repo.CancelAppointment(ctx, tx, req.PractitionerID, appt.ID, req.Reason)
	if err != nil {
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}

	cancelPayload, err := json.Marshal(map[string]any{
		"appointment_id":  appt.ID,
		"practitioner_id": appt.PractitionerID,
		"service_id":      appt.ServiceID,
		"session_date":    appt.SessionDate.Format(dateLayout),
		"start_time":      appt.StartTime,
		"end_time":        appt.EndTime,
		"cancelled_at":    cancelledAt.UTC().Format(time.RFC3339),
		"reason":          req.Reason,
	})
	if err != nil {
		http.Error(w, "failed to build cancellation event", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     "booking.appointment.cancelled.v1",
		Payload:       cancelPayload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.writeCancelResponse(w, appt.ID, cancelledAt.UTC())
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	practitionerID := strings.TrimSpace(r.Header.Get("X-Practitioner-Id"))
	if practitionerID == "" {
		practitionerID = strings.TrimSpace(r.URL.Query().Get("practitioner_id"))
	}
	if practitionerID == "" {
		http.Error(w, "practitioner_id required", http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	appts, err := h.repo.ListByPractitioner(r.Context(), practitionerID, limit)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]listAppointmentItem, 0, len(appts))
	for _, appt := range appts {
		item := listAppointmentItem{
			AppointmentID: appt.ID,
			ServiceID:     appt.ServiceID,
			ClientName:    appt.ClientName,
			SessionDate:   appt.SessionDate.Format(dateLayout),
			StartTime:     appt.StartTime,
			EndTime:       appt.EndTime,
			SessionType:   appt.SessionType,
			Status:        appt.Status,
			CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
		}
		if appt.CancelledAt != nil {
			item.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) enqueueReminders(ctx context.Context, tx pgx.Tx, appointmentID string, appt *model.Appointment, startMins int) {
	// Wall-clock session start treated as UTC; timezone conversion is out of
	// scope for reminder timing too.
	sessionStart := appt.SessionDate.Add(time.Duration(startMins) * time.Minute)
	now := time.Now().UTC()
	for _, offset := range h.offsets {
		remindAt := sessionStart.Add(-offset)
		if remindAt.Before(now) {
			continue
		}
		h.enqueueReminder(ctx, tx, appointmentID, appt, remindAt, "email", appt.ClientEmail)
		h.enqueueReminder(ctx, tx, appointmentID, appt, remindAt, "sms", appt.ClientPhone)
	}
}

func (h *BookingHandler) enqueueReminder(ctx context.Context, tx pgx.Tx, appointmentID string, appt *model.Appointment, remindAt time.Time, channel string, recipient string) {
	if strings.TrimSpace(recipient) == "" {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"appointment_id":  appointmentID,
		"practitioner_id": appt.PractitionerID,
		"channel":         channel,
		"recipient":       recipient,
		"remind_at":       remindAt.UTC().Format(time.RFC3339),
		"template_data": map[string]any{
			"client_name":  appt.ClientName,
			"service_id":   appt.ServiceID,
			"session_date": appt.SessionDate.Format(dateLayout),
			"start_time":   appt.StartTime,
		},
	})
	if err != nil {
		h.logger.Error("failed to build reminder payload", "err", err)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appointmentID,
		EventType:     "booking.reminder.requested.v1",
		Payload:       payload,
	}); err != nil {
		h.logger.Error("failed to enqueue reminder", "err", err)
	}
}

func (h *BookingHandler) writeCancelResponse(w http.ResponseWriter, appointmentID string, cancelledAt time.Time) {
	writeJSON(w, http.StatusOK, cancelBookingResponse{
		AppointmentID: appointmentID,
		Status:        "cancelled",
		CancelledAt:   cancelledAt.Format(time.RFC3339),
	})
}

func (h *BookingHandler) finalizeIdempotencyError(ctx context.Context, tx pgx.Tx, practitionerID, key string, statusCode int, msg string) bool {
	body, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return false
	}
	if err := h.repo.FinalizeIdempotency(ctx, tx, practitionerID, key, "", statusCode, body); err != nil {
		h.logger.Error("failed to finalize idempotency (error)", "err", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
