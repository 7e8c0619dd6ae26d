package storage

import (
	"context"

	"github.com/appsequentia/terapia-conexao-vital-66-sub000/libs/db"
	"github.com/jackc/pgx/v5"
)

type User struct {
	ID             string
	PractitionerID string
	Email          string
	Name           string
	PasswordHash   string
	Role           string
}

type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, practitioner_id, email, name, password_hash, role)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6)
	`, user.ID, user.PractitionerID, user.Email, user.Name, user.PasswordHash, user.Role)
	return err
}

func (r *UserRepository) CreateTx(ctx context.Context, tx pgx.Tx, user User) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO users (id, practitioner_id, email, name, password_hash, role)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6)
	`, user.ID, user.PractitionerID, user.Email, user.Name, user.PasswordHash, user.Role)
	return err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
		SELECT id, COALESCE(practitioner_id::text, ''), email, name, password_hash, role
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.PractitionerID, &user.Email, &user.Name, &user.PasswordHash, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
		SELECT id, COALESCE(practitioner_id::text, ''), email, name, password_hash, role
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.PractitionerID, &user.Email, &user.Name, &user.PasswordHash, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func IsNotFound(err error) bool {
	return err == pgx.ErrNoRows
}
