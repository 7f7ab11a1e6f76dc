package clinic

import (
	"context"

	"clinic-booking-api/internal/model"
)

type OptionStore interface {
	ListOptions(ctx context.Context) ([]model.AppointmentOption, error)
	OptionByName(ctx context.Context, name string) (*model.AppointmentOption, error)
	TreatmentNames(ctx context.Context) ([]model.Treatment, error)
	// RemainingSlots pushes the join and set difference into the query engine.
	RemainingSlots(ctx context.Context, date string) ([]model.Availability, error)
}

type BookingStore interface {
	BookingsOnDate(ctx context.Context, date string) ([]model.Booking, error)
	// InsertBooking must fail with model.ErrDuplicate when the
	// (email, treatment, appointDate) key already exists.
	InsertBooking(ctx context.Context, b *model.Booking) error
	BookingByID(ctx context.Context, id string) (*model.Booking, error)
	BookingsByEmail(ctx context.Context, email string) ([]model.Booking, error)
}

type UserStore interface {
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	// RegisterUser inserts u if its email is new and, in the same atomic step,
	// promotes it to admin when it is the only user.
	RegisterUser(ctx context.Context, u *model.User) (created, promoted bool, err error)
	PromoteUser(ctx context.Context, id string) error
}

type PaymentStore interface {
	// SettlePayment records p and marks its booking paid in one transaction.
	SettlePayment(ctx context.Context, p *model.Payment) (replayed bool, err error)
}

type DoctorStore interface {
	ListDoctors(ctx context.Context) ([]model.Doctor, error)
	CreateDoctor(ctx context.Context, d *model.Doctor) error
	DeleteDoctor(ctx context.Context, id string) (int64, error)
}

// Gateway is the persistence collaborator the core runs on.
type Gateway interface {
	OptionStore
	BookingStore
	UserStore
	PaymentStore
	DoctorStore
}

// Notifier hands outbound messages to an independent channel. Implementations
// must not block the caller on delivery.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b model.Booking)
	PaymentSettled(ctx context.Context, r model.PaymentReceipt, email string)
}

type nopNotifier struct{}

func (nopNotifier) BookingConfirmed(context.Context, model.Booking) {}
func (nopNotifier) PaymentSettled(context.Context, model.PaymentReceipt, string) {}
