package storage

import (
	"context"
	"time"

	"github.com/appsequentia/terapia-conexao-vital-66-sub000/libs/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

type PractitionerProfile struct {
	PractitionerID string
	Name           string
	Bio            string
	Specialty      string
	Timezone       string
}

func (r *Repository) GetOrCreateProfile(ctx context.Context, practitionerID string) (PractitionerProfile, error) {
	// Create a default profile if missing (keeps dev UX smooth while other services mature).
	_, err := r.pool.Exec(ctx, `
		INSERT INTO practitioner_profiles (practitioner_id)
		VALUES ($1)
		ON CONFLICT (practitioner_id) DO NOTHING
	`, practitionerID)
	if err != nil {
		return PractitionerProfile{}, err
	}

	var p PractitionerProfile
	err = r.pool.QueryRow(ctx, `
		SELECT practitioner_id::text, name, bio, specialty, timezone
		FROM practitioner_profiles
		WHERE practitioner_id = $1
	`, practitionerID).Scan(&p.PractitionerID, &p.Name, &p.Bio, &p.Specialty, &p.Timezone)
	return p, err
}

func (r *Repository) UpdateProfile(ctx context.Context, practitionerID string, p PractitionerProfile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO practitioner_profiles (practitioner_id, name, bio, specialty, timezone)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (practitioner_id) DO UPDATE
		SET name = EXCLUDED.name,
			bio = EXCLUDED.bio,
			specialty = EXCLUDED.specialty,
			timezone = EXCLUDED.timezone,
			updated_at = now()
	`, practitionerID, p.Name, p.Bio, p.Specialty, p.Timezone)
	return err
}

type TherapyService struct {
	ID             string
	PractitionerID string
	Name           string
	DurationMins   int
	Price          string
	Description    string
	Modality       string // online | in-person | both
	CreatedAt      time.Time
}

func (r *Repository) CreateTherapyService(ctx context.Context, practitionerID string, s TherapyService) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO therapy_services (id, practitioner_id, name, duration_minutes, price, description, modality)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, practitionerID, s.Name, s.DurationMins, s.Price, s.Description, s.Modality)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListTherapyServices(ctx context.Context, practitionerID string, limit int) ([]TherapyService, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, practitioner_id::text, name, duration_minutes, price::text, description, modality, created_at
		FROM therapy_services
		WHERE practitioner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, practitionerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TherapyService
	for rows.Next() {
		var s TherapyService
		if err := rows.Scan(&s.ID, &s.PractitionerID, &s.Name, &s.DurationMins, &s.Price, &s.Description, &s.Modality, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
