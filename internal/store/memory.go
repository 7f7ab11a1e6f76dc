package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinic-booking-api/internal/model"
)

type bookingKey struct{ email, treatment, date string }

// Memory is an in-process gateway for local runs (DATABASE_URL=memory://)
// and tests. One mutex gives it the same atomicity the SQL store gets from
// unique keys and transactions.
type Memory struct {
	mu       sync.Mutex
	options  map[string]model.AppointmentOption
	bookings []model.Booking
	keys     map[bookingKey]struct{}
	users    []model.User
	payments map[string]model.Payment // by transaction id
	doctors  []model.Doctor
}

func NewMemory() *Memory {
	return &Memory{
		options:  make(map[string]model.AppointmentOption),
		keys:     make(map[bookingKey]struct{}),
		payments: make(map[string]model.Payment),
	}
}

func (m *Memory) Close() {}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) UpsertOption(_ context.Context, o *model.AppointmentOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.options[o.Name]; ok {
		o.ID = prev.ID
	} else if o.ID == "" {
		o.ID = uuid.New().String()
	}
	cp := *o
	cp.Slots = append([]string(nil), o.Slots...)
	m.options[o.Name] = cp
	return nil
}

func (m *Memory) sortedOptions() []model.AppointmentOption {
	out := make([]model.AppointmentOption, 0, len(m.options))
	for _, o := range m.options {
		o.Slots = append([]string(nil), o.Slots...)
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Memory) ListOptions(context.Context) ([]model.AppointmentOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedOptions(), nil
}

func (m *Memory) OptionByName(_ context.Context, name string) (*model.AppointmentOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.options[name]
	if !ok {
		return nil, model.ErrNotFound
	}
	o.Slots = append([]string(nil), o.Slots...)
	return &o, nil
}

func (m *Memory) TreatmentNames(context.Context) ([]model.Treatment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Treatment
	for _, o := range m.sortedOptions() {
		out = append(out, model.Treatment{ID: o.ID, Name: o.Name})
	}
	return out, nil
}

// RemainingSlots mirrors the SQL anti-join: for each catalog slot, keep it
// unless a booking on date holds the same treatment and slot.
func (m *Memory) RemainingSlots(_ context.Context, date string) ([]model.Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Availability
	for _, o := range m.sortedOptions() {
		remaining := []string{}
		for _, sl := range o.Slots {
			booked := false
			for _, b := range m.bookings {
				if b.Treatment == o.Name && b.AppointDate == date && b.Slot == sl {
					booked = true
					break
				}
			}
			if !booked {
				remaining = append(remaining, sl)
			}
		}
		out = append(out, model.Availability{ID: o.ID, Name: o.Name, Price: o.Price, Slots: remaining})
	}
	return out, nil
}

func (m *Memory) BookingsOnDate(_ context.Context, date string) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.AppointDate == date {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Memory) InsertBooking(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.options[b.Treatment]; !ok {
		return fmt.Errorf("%w: unknown treatment", model.ErrInvalid)
	}
	k := bookingKey{b.Email, b.Treatment, b.AppointDate}
	if _, ok := m.keys[k]; ok {
		return model.ErrDuplicate
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.Paid = false
	b.TransactionID = nil
	b.CreatedAt = time.Now()
	m.keys[k] = struct{}{}
	m.bookings = append(m.bookings, *b)
	return nil
}

func (m *Memory) BookingByID(_ context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, model.ErrNotFound
}

func (m *Memory) BookingsByEmail(_ context.Context, email string) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.Email == email {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Memory) RegisterUser(_ context.Context, u *model.User) (created, promoted bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			*u = existing
			return false, false, nil
		}
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = model.RoleNone
	}
	u.CreatedAt = time.Now()
	m.users = append(m.users, *u)
	if len(m.users) == 1 {
		m.users[0].Role = model.RoleAdmin
		u.Role = model.RoleAdmin
		promoted = true
	}
	return true, promoted, nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, model.ErrNotFound
}

func (m *Memory) ListUsers(context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.User(nil), m.users...), nil
}

func (m *Memory) PromoteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == id {
			m.users[i].Role = model.RoleAdmin
			return nil
		}
	}
	return model.ErrNotFound
}

func (m *Memory) SettlePayment(_ context.Context, p *model.Payment) (replayed bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	for i := range m.bookings {
		if m.bookings[i].ID == p.BookingID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, model.ErrNotFound
	}
	if b := m.bookings[idx]; b.Paid && (b.TransactionID == nil || *b.TransactionID != p.TransactionID) {
		return false, fmt.Errorf("%w: booking %s is already paid", model.ErrDuplicate, b.ID)
	}
	if prev, ok := m.payments[p.TransactionID]; ok {
		if prev.BookingID != p.BookingID {
			return false, fmt.Errorf("%w: transaction %s belongs to another booking", model.ErrInvalid, p.TransactionID)
		}
		*p = prev
		replayed = true
	} else {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.CreatedAt = time.Now()
		m.payments[p.TransactionID] = *p
	}
	tx := p.TransactionID
	m.bookings[idx].Paid = true
	m.bookings[idx].TransactionID = &tx
	return replayed, nil
}

// Payments returns the ledger; used by tests to check settlement atomicity.
func (m *Memory) Payments() []model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, p)
	}
	return out
}

func (m *Memory) ListDoctors(context.Context) ([]model.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Doctor, len(m.doctors))
	for i, d := range m.doctors {
		d.Attributes = cloneAttrs(d.Attributes)
		out[i] = d
	}
	return out, nil
}

func (m *Memory) CreateDoctor(_ context.Context, d *model.Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.New().String()
	d.CreatedAt = time.Now()
	cp := *d
	cp.Attributes = cloneAttrs(d.Attributes)
	m.doctors = append(m.doctors, cp)
	return nil
}

func cloneAttrs(a map[string]any) map[string]any {
	if len(a) == 0 {
		return nil
	}
	out := make(map[string]any, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func (m *Memory) DeleteDoctor(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.doctors {
		if d.ID == id {
			m.doctors = append(m.doctors[:i], m.doctors[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}
