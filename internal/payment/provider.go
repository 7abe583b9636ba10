package payment

import "context"

// Intent is the provider-side payment intent for one checkout attempt. Its ID
// doubles as the stock reservation id for the whole attempt.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"` // cents
	Status       string `json:"status"`
}

// Provider abstracts the external payment processor. Confirmation does not
// come back through this interface; it arrives asynchronously via webhook
// and the payment events topic.
type Provider interface {
	CreateIntent(ctx context.Context, amount int64) (*Intent, error)
	UpdateIntent(ctx context.Context, intentID string, amount int64) (*Intent, error)
	Refund(ctx context.Context, intentID string) (string, error)
}
