package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"touris/api/internal/models"
)

const uniqueViolation = "23505"

const userColumns = `
	id, email, password_hash, first_name, last_name, country, role, google_id, provider,
	profile_picture, refresh_token_hash, reset_token, reset_token_expires, created_at, updated_at
`

type UserRepository struct {
	pool *pgxpool.Pool
}

var _ UserStore = (*UserRepository)(nil)

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, country, role, google_id, provider,
			profile_picture, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Country,
		user.Role,
		user.GoogleID,
		user.Provider,
		user.ProfilePicture,
	)
	return mapUniqueViolation(err)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) List(ctx context.Context, role models.UserRole) ([]models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) FindByGoogleIDOrEmail(ctx context.Context, googleID, email string) (models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE google_id = $1 OR email = $2
		ORDER BY (google_id = $1) DESC NULLS LAST
		LIMIT 1
	`
	return scanUser(r.pool.QueryRow(ctx, query, googleID, email))
}

func (r *UserRepository) UpdateProfile(ctx context.Context, user models.User) error {
	const query = `
		UPDATE users
		SET first_name = $2, last_name = $3, country = $4, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, user.ID, user.FirstName, user.LastName, user.Country)
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role models.UserRole) error {
	const query = `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id, role)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id, passwordHash)
}

func (r *UserRepository) SetGoogleLink(ctx context.Context, id string, googleID *string, provider models.AuthProvider, picture *string) error {
	const query = `
		UPDATE users
		SET google_id = $2,
		    provider = $3,
		    profile_picture = COALESCE($4, profile_picture),
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, googleID, provider, picture)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrGoogleIDExists
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetProfilePicture(ctx context.Context, id string, url string) error {
	const query = `UPDATE users SET profile_picture = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id, url)
}

func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	const query = `UPDATE users SET refresh_token_hash = $2 WHERE id = $1`
	return r.execOne(ctx, query, id, hash)
}

func (r *UserRepository) SetResetToken(ctx context.Context, id string, tokenHash string, expires time.Time) error {
	const query = `
		UPDATE users
		SET reset_token = $2, reset_token_expires = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, tokenHash, expires)
}

func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (string, error) {
	const query = `
		UPDATE users
		SET password_hash = $3,
		    reset_token = NULL,
		    reset_token_expires = NULL,
		    updated_at = NOW()
		WHERE reset_token = $1 AND reset_token_expires > $2
		RETURNING id
	`
	var id string
	if err := r.pool.QueryRow(ctx, query, tokenHash, now, passwordHash).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return id, nil
}

func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE users
		SET reset_token = NULL, reset_token_expires = NULL
		WHERE reset_token IS NOT NULL AND reset_token_expires <= $1
	`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Country,
		&user.Role,
		&user.GoogleID,
		&user.Provider,
		&user.ProfilePicture,
		&user.RefreshTokenHash,
		&user.ResetToken,
		&user.ResetTokenExpires,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailExists
	}
	return err
}
