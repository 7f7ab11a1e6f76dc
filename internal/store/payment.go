package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"clinic-booking-api/internal/model"
)

// SettlePayment records p and marks its booking paid in one transaction.
// A retry with an already recorded transaction id re-applies the paid flag
// and reloads p from the ledger instead of appending twice.
func (s *Store) SettlePayment(ctx context.Context, p *model.Payment) (replayed bool, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	// lock the booking so a concurrent settlement waits for us
	var (
		bookingID string
		paid      bool
		paidTx    *string
	)
	err = tx.QueryRow(ctx,
		`SELECT id::text, paid, transaction_id FROM bookings WHERE id = $1 FOR UPDATE`, p.BookingID,
	).Scan(&bookingID, &paid, &paidTx)
	if err != nil {
		return false, mapErr(err)
	}
	if paid && (paidTx == nil || *paidTx != p.TransactionID) {
		return false, fmt.Errorf("%w: booking %s is already paid", model.ErrDuplicate, bookingID)
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO payments (id, booking_id, transaction_id, amount, email)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (transaction_id) DO NOTHING
		 RETURNING created_at`,
		p.ID, bookingID, p.TransactionID, p.Amount, p.Email,
	).Scan(&p.CreatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		var prev model.Payment
		err = tx.QueryRow(ctx,
			`SELECT id::text, booking_id::text, transaction_id, amount, email, created_at
			 FROM payments WHERE transaction_id = $1`, p.TransactionID,
		).Scan(&prev.ID, &prev.BookingID, &prev.TransactionID, &prev.Amount, &prev.Email, &prev.CreatedAt)
		if err != nil {
			return false, err
		}
		if prev.BookingID != bookingID {
			return false, fmt.Errorf("%w: transaction %s belongs to another booking", model.ErrInvalid, p.TransactionID)
		}
		*p = prev
		replayed = true
	case err != nil:
		return false, mapErr(err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE bookings SET paid = true, transaction_id = $2 WHERE id = $1`,
		bookingID, p.TransactionID,
	); err != nil {
		return false, err
	}
	return replayed, tx.Commit(ctx)
}
