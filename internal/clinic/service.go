// Package clinic holds the booking rules: slot availability, booking
// admission, the admin role gate and payment settlement. It keeps no state
// between calls; every decision re-reads the Gateway, and every race is
// settled by the Gateway's atomic writes.
package clinic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"clinic-booking-api/internal/model"
)

type Service struct {
	gw     Gateway
	notify Notifier
	log    zerolog.Logger
	tracer trace.Tracer
}

func NewService(gw Gateway, n Notifier, logger zerolog.Logger) *Service {
	if n == nil {
		n = nopNotifier{}
	}
	return &Service{
		gw:     gw,
		notify: n,
		log:    logger.With().Str("component", "clinic").Logger(),
		tracer: otel.Tracer("clinic-booking-api/clinic"),
	}
}

func (s *Service) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	return s.gw.BookingByID(ctx, id)
}

func (s *Service) BookingsByEmail(ctx context.Context, email string) ([]model.Booking, error) {
	return s.gw.BookingsByEmail(ctx, strings.TrimSpace(email))
}

func (s *Service) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	return s.gw.ListDoctors(ctx)
}

func (s *Service) AddDoctor(ctx context.Context, d *model.Doctor) error {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)
	if d.Name == "" {
		return fmt.Errorf("%w: doctor name required", model.ErrInvalid)
	}
	return s.gw.CreateDoctor(ctx, d)
}

func (s *Service) DeleteDoctor(ctx context.Context, id string) (int64, error) {
	return s.gw.DeleteDoctor(ctx, id)
}

// IsNotFound reports lookups that matched nothing.
func IsNotFound(err error) bool { return errors.Is(err, model.ErrNotFound) }
