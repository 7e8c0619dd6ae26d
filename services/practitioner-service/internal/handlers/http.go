package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/appsequentia/terapia-conexao-vital-66-sub000/services/practitioner-service/internal/outbox"
	"github.com/appsequentia/terapia-conexao-vital-66-sub000/services/practitioner-service/internal/storage"
)

type Handler struct {
	repo       *storage.Repository
	outboxRepo *outbox.Repository
}

func New(repo *storage.Repository, outboxRepo *outbox.Repository) *Handler {
	return &Handler{repo: repo, outboxRepo: outboxRepo}
}

func practitionerIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Practitioner-Id"))
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	practitionerID := practitionerIDFromHeader(r)
	if practitionerID == "" {
		http.Error(w, "missing X-Practitioner-Id", http.StatusBadRequest)
		return
	}

	p, err := h.repo.GetOrCreateProfile(r.Context(), practitionerID)
	if err != nil {
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"practitioner_id": p.PractitionerID,
		"name":            p.Name,
		"bio":             p.Bio,
		"specialty":       p.Specialty,
		"timezone":        p.Timezone,
	})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	practitionerID := practitionerIDFromHeader(r)
	if practitionerID == "" {
		http.Error(w, "missing X-Practitioner-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name      string `json:"name"`
		Bio       string `json:"bio"`
		Specialty string `json:"specialty"`
		Timezone  string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}

	if err := h.repo.UpdateProfile(r.Context(), practitionerID, storage.PractitionerProfile{
		Name:      req.Name,
		Bio:       strings.TrimSpace(req.Bio),
		Specialty: strings.TrimSpace(req.Specialty),
		Timezone:  req.Timezone,
	}); err != nil {
		http.Error(w, "failed to update profile", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	practitionerID := practitionerIDFromHeader(r)
	if practitionerID == "" {
		http.Error(w, "missing X-Practitioner-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name         string  `json:"name"`
		DurationMins int     `json:"duration_minutes"`
		Price        float64 `json:"price"`
		Description  string  `json:"description"`
		Modality     string  `json:"modality"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Modality = strings.TrimSpace(req.Modality)
	if req.Name == "" || req.DurationMins <= 0 {
		http.Error(w, "name and duration_minutes required", http.StatusBadRequest)
		return
	}
	switch req.Modality {
	case "":
		req.Modality = "both"
	case "online", "in-person", "both":
	default:
		http.Error(w, "invalid modality", http.StatusBadRequest)
		return
	}

	id, err := h.repo.CreateTherapyService(r.Context(), practitionerID, storage.TherapyService{
		Name:         req.Name,
		DurationMins: req.DurationMins,
		Price:        strconv.FormatFloat(req.Price, 'f', 2, 64),
		Description:  strings.TrimSpace(req.Description),
		Modality:     req.Modality,
	})
	if err != nil {
		http.Error(w, "failed to create service", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	practitionerID := practitionerIDFromHeader(r)
	if practitionerID == "" {
		http.Error(w, "missing X-Practitioner-Id", http.StatusBadRequest)
		return
	}

	services, err := h.repo.ListTherapyServices(r.Context(), practitionerID, 100)
	if err != nil {
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(services)
}
