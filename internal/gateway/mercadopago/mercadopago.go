// Package mercadopago adapts the MercadoPago SDK to the checkout and payments calls the service makes.
package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/mperror"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/mercadopago/sdk-go/pkg/requester"
	"github.com/shopspring/decimal"
)

const defaultTimeout = 5 * time.Second

// Item is a preference line. The API takes unit prices as JSON numbers.
type Item struct {
	Title      string  `json:"title"`
	UnitPrice  float64 `json:"unit_price"`
	Quantity   int     `json:"quantity"`
	CurrencyID string  `json:"currency_id"`
}

// Payer identifies the buyer.
type Payer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// BackURLs are the browser redirect targets after checkout.
type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// PreferenceRequest is the body of POST /checkout/preferences.
type PreferenceRequest struct {
	Items               []Item   `json:"items"`
	Payer               Payer    `json:"payer"`
	BackURLs            BackURLs `json:"back_urls"`
	NotificationURL     string   `json:"notification_url,omitempty"`
	ExternalReference   string   `json:"external_reference"`
	StatementDescriptor string   `json:"statement_descriptor,omitempty"`
}

// Preference is a created checkout intent.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// Payment is the subset of GET /v1/payments/{id} the service reconciles.
type Payment struct {
	ID                json.Number     `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	PaymentMethodID   string          `json:"payment_method_id"`
	PaymentTypeID     string          `json:"payment_type_id"`
	Installments      int             `json:"installments"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
}

// Cause is one entry of the gateway error cause list.
type Cause struct {
	Code        json.RawMessage `json:"code"`
	Description string          `json:"description"`
}

// Error is a failed gateway call. StatusCode is 0 for transport failures.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Code       string
	Causes     []Cause
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("mercadopago %s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("mercadopago %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("mercadopago %s: status %d", e.Op, e.StatusCode)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsClientError reports whether the gateway rejected the request itself.
func (e *Error) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// CauseText returns the first cause description, falling back to the message.
func (e *Error) CauseText() string {
	for _, c := range e.Causes {
		if c.Description != "" {
			return c.Description
		}
	}

	return e.Message
}

type errorBody struct {
	Message string  `json:"message"`
	Error   string  `json:"error"`
	Cause   []Cause `json:"cause"`
}

// Client calls MercadoPago through the SDK preference and payment clients.
type Client struct {
	accessToken string
	baseURL     *url.URL
	httpClient  *http.Client

	preferences preference.Client
	payments    payment.Client
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		u, err := url.Parse(strings.TrimRight(baseURL, "/"))
		if err == nil {
			c.baseURL = u
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a new MercadoPago client.
func NewClient(accessToken string, opts ...Option) (*Client, error) {
	c := &Client{
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	var r requester.Requester = c.httpClient
	if c.baseURL != nil {
		r = &rebaseRequester{base: c.baseURL, next: c.httpClient}
	}

	cfg, err := config.New(accessToken, config.WithHTTPClient(r))
	if err != nil {
		return nil, fmt.Errorf("failed to configure mercadopago sdk: %w", err)
	}

	c.preferences = preference.NewClient(cfg)
	c.payments = payment.NewClient(cfg)

	return c, nil
}

// CreatePreference creates a checkout intent.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	sdkReq := preference.Request{
		Items: make([]preference.ItemRequest, 0, len(req.Items)),
		Payer: &preference.PayerRequest{
			Email: req.Payer.Email,
			Name:  req.Payer.Name,
		},
		BackURLs: &preference.BackURLsRequest{
			Success: req.BackURLs.Success,
			Failure: req.BackURLs.Failure,
			Pending: req.BackURLs.Pending,
		},
		NotificationURL:     req.NotificationURL,
		ExternalReference:   req.ExternalReference,
		StatementDescriptor: req.StatementDescriptor,
	}
	for _, it := range req.Items {
		sdkReq.Items = append(sdkReq.Items, preference.ItemRequest{
			Title:      it.Title,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
			CurrencyID: it.CurrencyID,
		})
	}

	resp, err := c.preferences.Create(ctx, sdkReq)
	if err != nil {
		return nil, wrapError("create preference", err)
	}

	return &Preference{
		ID:               resp.ID,
		InitPoint:        resp.InitPoint,
		SandboxInitPoint: resp.SandboxInitPoint,
	}, nil
}

// GetPayment fetches the current state of a payment.
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	paymentID, err := strconv.Atoi(id)
	if err != nil {
		return nil, &Error{Op: "get payment", Err: fmt.Errorf("invalid payment id %q: %w", id, err)}
	}

	resp, err := c.payments.Get(ctx, paymentID)
	if err != nil {
		return nil, wrapError("get payment", err)
	}

	return &Payment{
		ID:                json.Number(strconv.Itoa(resp.ID)),
		Status:            resp.Status,
		StatusDetail:      resp.StatusDetail,
		ExternalReference: resp.ExternalReference,
		PaymentMethodID:   resp.PaymentMethodID,
		PaymentTypeID:     resp.PaymentTypeID,
		Installments:      resp.Installments,
		TransactionAmount: decimal.NewFromFloat(resp.TransactionAmount),
	}, nil
}

// wrapError turns an SDK failure into *Error. API responses carry the raw body in the message.
func wrapError(op string, err error) error {
	var respErr *mperror.ResponseError
	if !errors.As(err, &respErr) {
		return &Error{Op: op, Err: err}
	}

	gwErr := &Error{Op: op, StatusCode: respErr.StatusCode}
	var eb errorBody
	if json.Unmarshal([]byte(respErr.Message), &eb) == nil {
		gwErr.Message = eb.Message
		gwErr.Code = eb.Error
		gwErr.Causes = eb.Cause
	} else {
		gwErr.Message = strings.TrimSpace(respErr.Message)
	}

	return gwErr
}

// rebaseRequester sends SDK requests to base instead of the public API host.
type rebaseRequester struct {
	base *url.URL
	next requester.Requester
}

func (r *rebaseRequester) Do(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = r.base.Scheme
	req.URL.Host = r.base.Host
	req.URL.Path = r.base.Path + req.URL.Path
	req.Host = ""

	return r.next.Do(req)
}
