package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stefans1510/fitness-shop/pkg/utils"
	"go.uber.org/zap"
)

// stripeClient talks to the Stripe-compatible HTTP API (form-encoded requests,
// Bearer auth). Calls go through a circuit breaker so a struggling provider
// fails fast instead of tying up checkout requests.
type stripeClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewStripeClient(baseURL, secretKey string, logger *zap.Logger) Provider {
	settings := gobreaker.Settings{
		Name:        "StripeAPI",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn(
				"Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &stripeClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

func (c *stripeClient) CreateIntent(ctx context.Context, amount int64) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", "usd")
	form.Set("payment_method_types[]", "card")

	return utils.ExecuteWithBreaker(c.cb, func() (*Intent, error) {
		return c.postIntent(ctx, "/payment_intents", form)
	})
}

func (c *stripeClient) UpdateIntent(ctx context.Context, intentID string, amount int64) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))

	return utils.ExecuteWithBreaker(c.cb, func() (*Intent, error) {
		return c.postIntent(ctx, "/payment_intents/"+intentID, form)
	})
}

func (c *stripeClient) Refund(ctx context.Context, intentID string) (string, error) {
	form := url.Values{}
	form.Set("payment_intent", intentID)

	type refundResponse struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}

	return utils.ExecuteWithBreaker(c.cb, func() (string, error) {
		body, err := c.post(ctx, "/refunds", form)
		if err != nil {
			return "", err
		}

		var refund refundResponse
		if err := json.Unmarshal(body, &refund); err != nil {
			return "", fmt.Errorf("failed to decode refund response: %w", err)
		}

		return refund.Status, nil
	})
}

func (c *stripeClient) postIntent(ctx context.Context, path string, form url.Values) (*Intent, error) {
	body, err := c.post(ctx, path, form)
	if err != nil {
		return nil, err
	}

	var intent Intent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("failed to decode intent response: %w", err)
	}

	return &intent, nil
}

func (c *stripeClient) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+path,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("payment provider returned %d: %s", resp.StatusCode, body)
	}

	return body, nil
}
