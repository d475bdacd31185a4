package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"touris/api/internal/models"
)

const partnerColumns = `
	id, email, name, description, password_hash, status, refresh_token_hash, created_at, updated_at
`

type PartnerRepository struct {
	pool *pgxpool.Pool
}

var _ PartnerStore = (*PartnerRepository)(nil)

func NewPartnerRepository(pool *pgxpool.Pool) *PartnerRepository {
	return &PartnerRepository{pool: pool}
}

func (r *PartnerRepository) Create(ctx context.Context, partner models.Partner) error {
	const query = `
		INSERT INTO partners (
			id, email, name, description, password_hash, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		partner.ID,
		partner.Email,
		partner.Name,
		partner.Description,
		partner.PasswordHash,
		partner.Status,
	)
	return mapUniqueViolation(err)
}

func (r *PartnerRepository) GetByID(ctx context.Context, id string) (models.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE id = $1`
	return scanPartner(r.pool.QueryRow(ctx, query, id))
}

func (r *PartnerRepository) FindByEmail(ctx context.Context, email string) (models.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE email = $1`
	return scanPartner(r.pool.QueryRow(ctx, query, email))
}

// List returns partners ordered newest first; an empty status lists all.
func (r *PartnerRepository) List(ctx context.Context, status models.PartnerStatus) ([]models.Partner, error) {
	query := `
		SELECT ` + partnerColumns + `
		FROM partners
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var partners []models.Partner
	for rows.Next() {
		partner, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		partners = append(partners, partner)
	}
	return partners, rows.Err()
}

func (r *PartnerRepository) UpdateStatus(ctx context.Context, id string, status models.PartnerStatus) error {
	const query = `UPDATE partners SET status = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id, status)
}

func (r *PartnerRepository) UpdatePasswordByEmail(ctx context.Context, email string, passwordHash string) error {
	const query = `UPDATE partners SET password_hash = $2, updated_at = NOW() WHERE email = $1`
	return r.execOne(ctx, query, email, passwordHash)
}

func (r *PartnerRepository) SetRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	const query = `UPDATE partners SET refresh_token_hash = $2 WHERE id = $1`
	return r.execOne(ctx, query, id, hash)
}

func (r *PartnerRepository) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPartnerNotFound
	}
	return nil
}

func scanPartner(row pgx.Row) (models.Partner, error) {
	var partner models.Partner
	if err := row.Scan(
		&partner.ID,
		&partner.Email,
		&partner.Name,
		&partner.Description,
		&partner.PasswordHash,
		&partner.Status,
		&partner.RefreshTokenHash,
		&partner.CreatedAt,
		&partner.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Partner{}, ErrPartnerNotFound
		}
		return models.Partner{}, err
	}
	return partner, nil
}
