package clinic

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"clinic-booking-api/internal/model"
)

type PaymentRequest struct {
	BookingID     string          `json:"bookingId"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Email         string          `json:"email"`
}

// RecordPayment appends the payment and flips the booking to paid as one
// transaction. Unknown bookings fail with model.ErrNotFound.
func (s *Service) RecordPayment(ctx context.Context, req PaymentRequest) (model.PaymentReceipt, error) {
	req.BookingID = strings.TrimSpace(req.BookingID)
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	switch {
	case req.BookingID == "":
		return model.PaymentReceipt{}, fmt.Errorf("%w: bookingId required", model.ErrInvalid)
	case req.TransactionID == "":
		return model.PaymentReceipt{}, fmt.Errorf("%w: transactionId required", model.ErrInvalid)
	case req.Amount.IsNegative():
		return model.PaymentReceipt{}, fmt.Errorf("%w: amount must not be negative", model.ErrInvalid)
	}

	ctx, span := s.tracer.Start(ctx, "clinic.RecordPayment")
	defer span.End()
	span.SetAttributes(attribute.String("booking_id", req.BookingID))

	p := &model.Payment{
		BookingID:     req.BookingID,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Email:         strings.TrimSpace(req.Email),
	}
	replayed, err := s.gw.SettlePayment(ctx, p)
	if err != nil {
		span.RecordError(err)
		return model.PaymentReceipt{}, err
	}

	r := model.PaymentReceipt{
		PaymentID:     p.ID,
		BookingID:     p.BookingID,
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		Replayed:      replayed,
	}
	if !replayed {
		s.log.Info().Str("booking_id", r.BookingID).Str("payment_id", r.PaymentID).Msg("payment settled")
		s.notify.PaymentSettled(context.WithoutCancel(ctx), r, p.Email)
	}
	return r, nil
}
