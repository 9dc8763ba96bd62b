package razorpay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	rzp "github.com/razorpay/razorpay-go"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	defaultBaseURL = "https://api.razorpay.com"
	defaultTimeout = 10 * time.Second
)

var (
	errKeyIDRequired     = errors.New("razorpay key id is required")
	errKeySecretRequired = errors.New("razorpay key secret is required")
)

// orderCreator is the slice of the SDK's order resource the client uses.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Client creates provider-side orders through the Razorpay SDK.
type Client struct {
	orders orderCreator
	keyID  string
}

type clientOptions struct {
	baseURL string
	timeout time.Duration
}

// Option configures optional client behavior.
type Option func(*clientOptions)

// WithBaseURL overrides the API host. A trailing /v1 is dropped since the SDK
// adds the version to every path.
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		trimmed = strings.TrimSuffix(trimmed, "/v1")
		if trimmed != "" {
			o.baseURL = trimmed
		}
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// NewClient builds the gateway client from API credentials.
func NewClient(keyID, keySecret string, opts ...Option) (*Client, error) {
	id := strings.TrimSpace(keyID)
	if id == "" {
		return nil, errKeyIDRequired
	}
	secret := strings.TrimSpace(keySecret)
	if secret == "" {
		return nil, errKeySecretRequired
	}

	o := clientOptions{baseURL: defaultBaseURL, timeout: defaultTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	sdk := rzp.NewClient(id, secret)
	rzp.Request.HTTPClient = &http.Client{Timeout: o.timeout}
	rzp.Request.BaseURL = o.baseURL

	return &Client{orders: sdk.Order, keyID: id}, nil
}

// KeyID is the public key handed to checkout clients.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// CreateOrderRequest is the provider order payload. Amount is in minor units.
type CreateOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Order is the provider order returned on creation.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// CreateOrder creates a provider-side order. Any SDK failure, timeout or
// malformed response is a dependency error.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if c == nil || c.orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}
	if req.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway order request cancelled")
	}

	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		data["notes"] = req.Notes
	}

	body, err := c.orders.Create(data, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway order request failed")
	}
	return decodeOrder(body)
}

func decodeOrder(body map[string]interface{}) (*Order, error) {
	id, _ := body["id"].(string)
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway order response missing id")
	}
	order := &Order{ID: id}
	order.Currency, _ = body["currency"].(string)
	order.Receipt, _ = body["receipt"].(string)
	order.Status, _ = body["status"].(string)

	switch amount := body["amount"].(type) {
	case float64:
		order.Amount = int64(math.Round(amount))
	case int64:
		order.Amount = amount
	case int:
		order.Amount = int64(amount)
	case nil:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("gateway order amount has unexpected type %T", amount))
	}
	return order, nil
}
