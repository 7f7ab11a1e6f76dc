package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"clinic-booking-api/internal/model"
)

type captureSender struct {
	mu   sync.Mutex
	keys []string
	evs  []any
	err  error
	gate chan struct{}
}

func (c *captureSender) Send(_ context.Context, key string, v any) error {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
	c.evs = append(c.evs, v)
	return c.err
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

func TestDispatcherDelivers(t *testing.T) {
	s := &captureSender{}
	d := NewDispatcher(s, 8, zerolog.Nop())
	d.Start()

	d.BookingConfirmed(context.Background(), model.Booking{ID: "b1", Email: "a@x.com", Price: decimal.NewFromInt(40)})
	d.PaymentSettled(context.Background(), model.PaymentReceipt{PaymentID: "p1", BookingID: "b1", Amount: decimal.NewFromInt(40)}, "a@x.com")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(s.keys) != 2 || s.keys[0] != KeyBookingConfirmed || s.keys[1] != KeyPaymentSettled {
		t.Fatalf("keys = %v", s.keys)
	}
	ev := s.evs[0].(BookingEvent)
	if ev.BookingID != "b1" || ev.Price != "40.00" {
		t.Errorf("unexpected booking event: %+v", ev)
	}
}

func TestDispatcherNeverBlocks(t *testing.T) {
	s := &captureSender{gate: make(chan struct{})}
	d := NewDispatcher(s, 1, zerolog.Nop())
	d.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			d.BookingConfirmed(context.Background(), model.Booking{ID: "b"})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked on a stalled sender")
	}

	close(s.gate)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = d.Close(ctx)
	if n := s.count(); n == 0 || n > 2 {
		t.Errorf("delivered %d events, want at most buffer+in-flight", n)
	}
}

func TestDispatcherSwallowsSendErrors(t *testing.T) {
	s := &captureSender{err: errors.New("broker down")}
	d := NewDispatcher(s, 4, zerolog.Nop())
	d.Start()
	d.BookingConfirmed(context.Background(), model.Booking{ID: "b"})
	d.BookingConfirmed(context.Background(), model.Booking{ID: "c"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if s.count() != 2 {
		t.Errorf("a failed send stopped the worker: %d sent", s.count())
	}
}

func TestDispatcherAfterClose(t *testing.T) {
	s := &captureSender{}
	d := NewDispatcher(s, 4, zerolog.Nop())
	d.Start()
	_ = d.Close(context.Background())
	_ = d.Close(context.Background())

	d.BookingConfirmed(context.Background(), model.Booking{ID: "late"})
	if s.count() != 0 {
		t.Error("event accepted after close")
	}
}
