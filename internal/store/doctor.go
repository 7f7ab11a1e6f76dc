package store

import (
	"context"

	"github.com/google/uuid"

	"clinic-booking-api/internal/model"
)

func (s *Store) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, name, email, specialty, image, attributes, created_at FROM doctors ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Doctor
	for rows.Next() {
		var d model.Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Email, &d.Specialty, &d.Image, &d.Attributes, &d.CreatedAt); err != nil {
			return nil, err
		}
		if len(d.Attributes) == 0 {
			d.Attributes = nil
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) CreateDoctor(ctx context.Context, d *model.Doctor) error {
	d.ID = uuid.New().String()
	attrs := d.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO doctors (id, name, email, specialty, image, attributes) VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING created_at`,
		d.ID, d.Name, d.Email, d.Specialty, d.Image, attrs,
	).Scan(&d.CreatedAt)
}

func (s *Store) DeleteDoctor(ctx context.Context, id string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		if mapErr(err) == model.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return tag.RowsAffected(), nil
}
