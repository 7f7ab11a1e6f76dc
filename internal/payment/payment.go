// Package payment creates charge intents with the external card processor.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"github.com/shopspring/decimal"
)

var ErrNotConfigured = errors.New("payment gateway not configured")

// Gateway opens a charge intent for an amount and returns the secret the
// client uses to complete it.
type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal) (clientSecret string, err error)
}

type Omise struct {
	client     *omise.Client
	currency   string
	sourceType string
}

func NewOmise(publicKey, secretKey, currency, sourceType string) (*Omise, error) {
	if publicKey == "" || secretKey == "" {
		return nil, ErrNotConfigured
	}
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("omise client: %w", err)
	}
	if currency == "" {
		currency = "thb"
	}
	if sourceType == "" {
		sourceType = "promptpay"
	}
	return &Omise{client: c, currency: strings.ToLower(currency), sourceType: sourceType}, nil
}

func (o *Omise) CreateIntent(_ context.Context, amount decimal.Decimal) (string, error) {
	minor, err := MinorUnits(amount)
	if err != nil {
		return "", err
	}
	src := &omise.Source{}
	req := &operations.CreateSource{
		Type:     o.sourceType,
		Amount:   minor,
		Currency: o.currency,
	}
	if err := o.client.Do(src, req); err != nil {
		return "", fmt.Errorf("create source: %w", err)
	}
	return src.ID, nil
}

// MinorUnits converts a price to the processor's smallest currency unit.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("amount must be positive, got %s", amount)
	}
	return amount.Shift(2).Round(0).IntPart(), nil
}
