package clinic

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"clinic-booking-api/internal/model"
)

type BookingRequest struct {
	Email       string `json:"email"`
	Patient     string `json:"patient"`
	Phone       string `json:"phone"`
	Treatment   string `json:"treatment"`
	AppointDate string `json:"appointDate"`
	Slot        string `json:"slot"`
}

// AdmissionResult is the admission decision. A rejection is a normal
// outcome carrying a message for the client, not an error.
type AdmissionResult struct {
	Acknowledged bool           `json:"acknowledged"`
	InsertedID   string         `json:"insertedId,omitempty"`
	Message      string         `json:"message,omitempty"`
	Booking      *model.Booking `json:"booking,omitempty"`
}

func duplicateMessage(date string) string {
	return fmt.Sprintf("You already have a booking on %s", date)
}

func (r BookingRequest) normalize() BookingRequest {
	r.Email = strings.TrimSpace(r.Email)
	r.Patient = strings.TrimSpace(r.Patient)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Treatment = strings.TrimSpace(r.Treatment)
	r.AppointDate = NormalizeDate(r.AppointDate)
	r.Slot = strings.TrimSpace(r.Slot)
	return r
}

func (r BookingRequest) validate() error {
	switch {
	case r.Email == "":
		return fmt.Errorf("%w: email required", model.ErrInvalid)
	case r.Treatment == "":
		return fmt.Errorf("%w: treatment required", model.ErrInvalid)
	case r.AppointDate == "":
		return fmt.Errorf("%w: appointDate required", model.ErrInvalid)
	case r.Slot == "":
		return fmt.Errorf("%w: slot required", model.ErrInvalid)
	}
	return nil
}

// CreateBooking admits a booking unless one already exists for the same
// (email, treatment, appointDate). The store's unique key makes the decision,
// so concurrent identical requests admit exactly one.
func (s *Service) CreateBooking(ctx context.Context, req BookingRequest) (AdmissionResult, error) {
	req = req.normalize()
	if err := req.validate(); err != nil {
		return AdmissionResult{}, err
	}

	ctx, span := s.tracer.Start(ctx, "clinic.CreateBooking")
	defer span.End()
	span.SetAttributes(attribute.String("treatment", req.Treatment), attribute.String("date", req.AppointDate))

	opt, err := s.gw.OptionByName(ctx, req.Treatment)
	if errors.Is(err, model.ErrNotFound) {
		return AdmissionResult{}, fmt.Errorf("%w: unknown treatment %q", model.ErrInvalid, req.Treatment)
	}
	if err != nil {
		span.RecordError(err)
		return AdmissionResult{}, err
	}
	if !slices.Contains(opt.Slots, req.Slot) {
		return AdmissionResult{}, fmt.Errorf("%w: slot %q is not offered for %s", model.ErrInvalid, req.Slot, opt.Name)
	}

	b := &model.Booking{
		Email:       req.Email,
		Patient:     req.Patient,
		Phone:       req.Phone,
		Treatment:   opt.Name,
		AppointDate: req.AppointDate,
		Slot:        req.Slot,
		Price:       opt.Price,
	}
	if err := s.gw.InsertBooking(ctx, b); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			span.SetAttributes(attribute.Bool("accepted", false))
			return AdmissionResult{Acknowledged: false, Message: duplicateMessage(req.AppointDate)}, nil
		}
		span.RecordError(err)
		return AdmissionResult{}, err
	}
	span.SetAttributes(attribute.Bool("accepted", true))

	s.log.Info().Str("booking_id", b.ID).Str("treatment", b.Treatment).Str("date", b.AppointDate).Msg("booking admitted")
	s.notify.BookingConfirmed(context.WithoutCancel(ctx), *b)

	return AdmissionResult{Acknowledged: true, InsertedID: b.ID, Booking: b}, nil
}
