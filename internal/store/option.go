package store

import (
	"context"

	"github.com/google/uuid"

	"clinic-booking-api/internal/model"
)

func (s *Store) ListOptions(ctx context.Context) ([]model.AppointmentOption, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, name, slots, price FROM appointment_options ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AppointmentOption
	for rows.Next() {
		var o model.AppointmentOption
		if err := rows.Scan(&o.ID, &o.Name, &o.Slots, &o.Price); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) OptionByName(ctx context.Context, name string) (*model.AppointmentOption, error) {
	o := &model.AppointmentOption{}
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, name, slots, price FROM appointment_options WHERE name = $1`, name,
	).Scan(&o.ID, &o.Name, &o.Slots, &o.Price)
	if err != nil {
		return nil, mapErr(err)
	}
	return o, nil
}

func (s *Store) TreatmentNames(ctx context.Context) ([]model.Treatment, error) {
	rows, err := s.pool.Query(ctx, `SELECT id::text, name FROM appointment_options ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Treatment
	for rows.Next() {
		var t model.Treatment
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RemainingSlots joins each option with the day's bookings and subtracts the
// booked slot labels, keeping the catalog's own order via WITH ORDINALITY.
func (s *Store) RemainingSlots(ctx context.Context, date string) ([]model.Availability, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT o.id::text, o.name, o.price,
		        ARRAY(
		          SELECT c.slot
		          FROM unnest(o.slots) WITH ORDINALITY AS c(slot, ord)
		          WHERE NOT EXISTS (
		            SELECT 1 FROM bookings b
		            WHERE b.treatment = o.name
		              AND b.appoint_date = $1
		              AND b.slot = c.slot)
		          ORDER BY c.ord
		        ) AS remaining
		 FROM appointment_options o
		 ORDER BY o.name`, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Availability
	for rows.Next() {
		var a model.Availability
		if err := rows.Scan(&a.ID, &a.Name, &a.Price, &a.Slots); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertOption is used by catalog seeding; it replaces slots and price by name.
func (s *Store) UpsertOption(ctx context.Context, o *model.AppointmentOption) error {
	if o.Slots == nil {
		o.Slots = []string{}
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO appointment_options (id, name, slots, price) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (name) DO UPDATE SET slots = EXCLUDED.slots, price = EXCLUDED.price
		 RETURNING id::text`,
		uuid.New().String(), o.Name, o.Slots, o.Price,
	).Scan(&o.ID)
}
