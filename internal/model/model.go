package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
	ErrInvalid   = errors.New("invalid")
)

// Prices and amounts go over the wire as JSON numbers.
func init() { decimal.MarshalJSONWithoutQuotes = true }

type Role string

const (
	RoleNone  Role = "none"
	RoleAdmin Role = "admin"
)

// AppointmentOption is a treatment with its authoritative slot catalog.
type AppointmentOption struct {
	ID    string          `json:"id" yaml:"-"`
	Name  string          `json:"name" yaml:"name"`
	Slots []string        `json:"slots" yaml:"slots"`
	Price decimal.Decimal `json:"price" yaml:"price"`
}

// Availability is one option with only the slots still open on a date.
type Availability struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Slots []string        `json:"slots"`
}

type Treatment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Booking struct {
	ID            string          `json:"id"`
	Email         string          `json:"email"`
	Patient       string          `json:"patient,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Treatment     string          `json:"treatment"`
	AppointDate   string          `json:"appointDate"`
	Slot          string          `json:"slot"`
	Price         decimal.Decimal `json:"price"`
	Paid          bool            `json:"paid"`
	TransactionID *string         `json:"transactionId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

type Payment struct {
	ID            string          `json:"id"`
	BookingID     string          `json:"bookingId"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Email         string          `json:"email,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// PaymentReceipt is returned once a payment and its booking's paid flag are committed.
type PaymentReceipt struct {
	PaymentID     string          `json:"paymentId"`
	BookingID     string          `json:"bookingId"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Replayed      bool            `json:"replayed"`
}

// Doctor keeps the fields the dashboard queries. Anything else a client
// posts rides along in Attributes and is echoed back at the top level.
type Doctor struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	Specialty  string         `json:"specialty"`
	Image      string         `json:"image,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	Attributes map[string]any `json:"-"`
}

type doctorFields Doctor

var doctorKeys = []string{"id", "name", "email", "specialty", "image", "createdAt"}

func (d Doctor) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(doctorFields(d))
	if err != nil || len(d.Attributes) == 0 {
		return known, err
	}
	out := make(map[string]json.RawMessage, len(d.Attributes)+len(doctorKeys))
	for k, v := range d.Attributes {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = raw
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

func (d *Doctor) UnmarshalJSON(b []byte) error {
	var f doctorFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for _, k := range doctorKeys {
		delete(all, k)
	}
	*d = Doctor(f)
	if len(all) > 0 {
		d.Attributes = all
	}
	return nil
}
