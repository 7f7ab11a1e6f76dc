package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"clinic-booking-api/internal/model"
)

// bootstrapLock serializes registrations so the first-user check and the
// insert it depends on happen as one decision.
const bootstrapLock int64 = 0x61646d696e // "admin"

const userCols = `id::text, email, name, role, created_at`

func scanUser(row pgx.Row, u *model.User) error {
	return row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
}

func (s *Store) RegisterUser(ctx context.Context, u *model.User) (created, promoted bool, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLock); err != nil {
		return false, false, err
	}

	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = model.RoleNone
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO users (id, email, name, role) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING created_at`,
		u.ID, u.Email, u.Name, u.Role,
	).Scan(&u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// already registered; bootstrap never re-runs
		if err := scanUser(tx.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, u.Email), u); err != nil {
			return false, false, err
		}
		return false, false, tx.Commit(ctx)
	}
	if err != nil {
		return false, false, mapErr(err)
	}

	var n int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return false, false, err
	}
	if n == 1 {
		if _, err := tx.Exec(ctx, `UPDATE users SET role = 'admin' WHERE email = $1`, u.Email); err != nil {
			return false, false, err
		}
		u.Role = model.RoleAdmin
		promoted = true
	}
	return true, promoted, tx.Commit(ctx)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	if err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email), u); err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) PromoteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET role = 'admin' WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
