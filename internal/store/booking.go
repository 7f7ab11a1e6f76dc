package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"clinic-booking-api/internal/model"
)

const bookingCols = `id::text, email, patient, phone, treatment, appoint_date, slot,
	price, paid, transaction_id, created_at`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.Email, &b.Patient, &b.Phone, &b.Treatment, &b.AppointDate, &b.Slot,
		&b.Price, &b.Paid, &b.TransactionID, &b.CreatedAt)
	return b, err
}

func (s *Store) listBookings(ctx context.Context, q string, args ...any) ([]model.Booking, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// InsertBooking relies on bookings_once_per_day: of two concurrent inserts
// for the same key exactly one gets a row back.
func (s *Store) InsertBooking(ctx context.Context, b *model.Booking) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO bookings (id, email, patient, phone, treatment, appoint_date, slot, price)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT ON CONSTRAINT bookings_once_per_day DO NOTHING
		 RETURNING paid, created_at`,
		b.ID, b.Email, b.Patient, b.Phone, b.Treatment, b.AppointDate, b.Slot, b.Price,
	).Scan(&b.Paid, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrDuplicate
	}
	return mapErr(err)
}

func (s *Store) BookingsOnDate(ctx context.Context, date string) ([]model.Booking, error) {
	return s.listBookings(ctx,
		`SELECT `+bookingCols+` FROM bookings WHERE appoint_date = $1 ORDER BY created_at`, date)
}

func (s *Store) BookingByID(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(s.pool.QueryRow(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

func (s *Store) BookingsByEmail(ctx context.Context, email string) ([]model.Booking, error) {
	return s.listBookings(ctx,
		`SELECT `+bookingCols+` FROM bookings WHERE email = $1 ORDER BY created_at`, email)
}
