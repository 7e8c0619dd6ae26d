package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// PractitionerEntitlements is the local cache of the billing-service tier
// limits, kept fresh by the subscription event consumer.
type PractitionerEntitlements struct {
	PractitionerID         string
	Tier                   string
	MaxMonthlyAppointments int
	UpdatedAt              time.Time
}

func (r *BookingRepository) UpsertPractitionerEntitlements(ctx context.Context, tx pgx.Tx, ent PractitionerEntitlements) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO practitioner_entitlements (practitioner_id, tier, max_monthly_appointments)
		VALUES ($1, $2, $3)
		ON CONFLICT (practitioner_id)
		DO UPDATE SET tier = EXCLUDED.tier,
		              max_monthly_appointments = EXCLUDED.max_monthly_appointments,
		              updated_at = now()
	`, ent.PractitionerID, ent.Tier, ent.MaxMonthlyAppointments)
	return err
}

func (r *BookingRepository) GetPractitionerEntitlements(ctx context.Context, tx pgx.Tx, practitionerID string) (PractitionerEntitlements, bool, error) {
	var ent PractitionerEntitlements
	err := tx.QueryRow(ctx, `
		SELECT practitioner_id::text, tier, max_monthly_appointments, updated_at
		FROM practitioner_entitlements
		WHERE practitioner_id = $1
	`, practitionerID).Scan(&ent.PractitionerID, &ent.Tier, &ent.MaxMonthlyAppointments, &ent.UpdatedAt)
	if err != nil {
		if IsNotFound(err) {
			return PractitionerEntitlements{}, false, nil
		}
		return PractitionerEntitlements{}, false, err
	}
	return ent, true, nil
}

func (r *BookingRepository) CountBookedInRange(ctx context.Context, tx pgx.Tx, practitionerID string, startInclusive, endExclusive time.Time) (int, error) {
	var cnt int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE practitioner_id = $1
		  AND status = 'booked'
		  AND session_date >= $2
		  AND session_date < $3
	`, practitionerID, startInclusive, endExclusive).Scan(&cnt)
	return cnt, err
}
