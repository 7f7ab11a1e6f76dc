// Package notify delivers booking and payment events off the request path.
// Events are queued on a bounded buffer and sent by a single worker; a full
// buffer drops the event with a warning instead of blocking the caller.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clinic-booking-api/internal/model"
)

const (
	KeyBookingConfirmed = "booking.confirmed"
	KeyPaymentSettled   = "payment.settled"
)

// Sender publishes one event under a routing key.
type Sender interface {
	Send(ctx context.Context, key string, v any) error
}

type BookingEvent struct {
	BookingID   string `json:"bookingId"`
	Email       string `json:"email"`
	Patient     string `json:"patient,omitempty"`
	Treatment   string `json:"treatment"`
	AppointDate string `json:"appointDate"`
	Slot        string `json:"slot"`
	Price       string `json:"price"`
}

type PaymentEvent struct {
	PaymentID     string `json:"paymentId"`
	BookingID     string `json:"bookingId"`
	TransactionID string `json:"transactionId"`
	Amount        string `json:"amount"`
	Email         string `json:"email,omitempty"`
}

type envelope struct {
	key string
	v   any
}

type Dispatcher struct {
	sender  Sender
	log     zerolog.Logger
	queue   chan envelope
	timeout time.Duration

	once sync.Once
	mu   sync.RWMutex
	shut bool
	done chan struct{}
}

func NewDispatcher(s Sender, buffer int, logger zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Dispatcher{
		sender:  s,
		log:     logger.With().Str("component", "notify").Logger(),
		queue:   make(chan envelope, buffer),
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
}

// Start launches the delivery worker. Call once.
func (d *Dispatcher) Start() {
	go d.run()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.sender.Send(ctx, e.key, e.v); err != nil {
			d.log.Error().Err(err).Str("key", e.key).Msg("notification failed")
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to drain or ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.once.Do(func() {
		d.mu.Lock()
		d.shut = true
		close(d.queue)
		d.mu.Unlock()
	})
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) enqueue(key string, v any) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.shut {
		d.log.Warn().Str("key", key).Msg("dispatcher closed, dropping notification")
		return
	}
	select {
	case d.queue <- envelope{key: key, v: v}:
	default:
		d.log.Warn().Str("key", key).Msg("notification buffer full, dropping")
	}
}

func (d *Dispatcher) BookingConfirmed(_ context.Context, b model.Booking) {
	d.enqueue(KeyBookingConfirmed, BookingEvent{
		BookingID:   b.ID,
		Email:       b.Email,
		Patient:     b.Patient,
		Treatment:   b.Treatment,
		AppointDate: b.AppointDate,
		Slot:        b.Slot,
		Price:       b.Price.StringFixed(2),
	})
}

func (d *Dispatcher) PaymentSettled(_ context.Context, r model.PaymentReceipt, email string) {
	d.enqueue(KeyPaymentSettled, PaymentEvent{
		PaymentID:     r.PaymentID,
		BookingID:     r.BookingID,
		TransactionID: r.TransactionID,
		Amount:        r.Amount.StringFixed(2),
		Email:         email,
	})
}

// LogSender writes events to the log; used when no broker is configured.
type LogSender struct {
	Log zerolog.Logger
}

func (s LogSender) Send(_ context.Context, key string, v any) error {
	s.Log.Info().Str("key", key).Interface("event", v).Msg("notification")
	return nil
}
