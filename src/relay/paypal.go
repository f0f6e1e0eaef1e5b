package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	app "silkyroad/src/app"
	cfg "silkyroad/src/configuration"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const CaptureCompleted = "COMPLETED"

// Capture is the part of a payment capture the marketplace records.
type Capture struct {
	ID         string
	Status     string
	Amount     decimal.Decimal
	Currency   string
	PayerEmail string
}

// ParseCapture reads the order details the checkout widget hands back after
// capture.
func ParseCapture(details []byte) (*Capture, error) {
	if !gjson.ValidBytes(details) {
		return nil, &app.ValidationError{Field: "details", Message: "invalid capture payload"}
	}
	doc := gjson.ParseBytes(details)
	capture := doc.Get("purchase_units.0.payments.captures.0")
	id := capture.Get("id").String()
	if id == "" {
		return nil, &app.ValidationError{Field: "details", Message: "capture id missing"}
	}

	value := capture.Get("amount.value")
	currency := capture.Get("amount.currency_code")
	if !value.Exists() {
		value = doc.Get("purchase_units.0.amount.value")
		currency = doc.Get("purchase_units.0.amount.currency_code")
	}
	amount, err := decimal.NewFromString(value.String())
	if err != nil {
		return nil, &app.ValidationError{Field: "details", Message: "capture amount missing or invalid"}
	}

	status := capture.Get("status").String()
	if status == "" {
		status = doc.Get("status").String()
	}
	return &Capture{
		ID:         id,
		Status:     status,
		Amount:     amount,
		Currency:   currency.String(),
		PayerEmail: doc.Get("payer.email_address").String(),
	}, nil
}

// PayoutRequest releases funds held for an order to its seller.
type PayoutRequest struct {
	OrderID  string
	Receiver string
	Amount   decimal.Decimal
}

// PayPal talks to the provider REST API with a client-credentials token.
type PayPal struct {
	baseURL    string
	currency   string
	httpClient *http.Client
	log        logrus.FieldLogger
}

func NewPayPal(props cfg.PayPalProperties, log logrus.FieldLogger) (*PayPal, error) {
	if !props.Configured() {
		return nil, &app.ConfigurationError{Missing: []string{"PAYPAL_CLIENT_ID", "PAYPAL_SECRET"}}
	}
	base := strings.TrimRight(props.PayPalBaseURL(), "/")
	timeout := props.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	credentials := clientcredentials.Config{
		ClientID:     props.ClientID,
		ClientSecret: props.Secret,
		TokenURL:     base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	client := credentials.Client(tokenCtx)
	client.Timeout = timeout

	return &PayPal{
		baseURL:    base,
		currency:   props.Currency,
		httpClient: client,
		log:        log,
	}, nil
}

type payoutBatch struct {
	Header payoutHeader `json:"sender_batch_header"`
	Items  []payoutItem `json:"items"`
}

type payoutHeader struct {
	RecipientType string `json:"recipient_type"`
	EmailMessage  string `json:"email_message"`
	Note          string `json:"note"`
	SenderBatchID string `json:"sender_batch_id"`
}

type payoutItem struct {
	RecipientType string       `json:"recipient_type"`
	Amount        payoutAmount `json:"amount"`
	Receiver      string       `json:"receiver"`
	Note          string       `json:"note"`
	SenderItemID  string       `json:"sender_item_id,omitempty"`
}

type payoutAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Payout submits a single-item payout batch and returns the provider's response.
func (p *PayPal) Payout(ctx context.Context, req PayoutRequest) (json.RawMessage, error) {
	batch := payoutBatch{
		Header: payoutHeader{
			RecipientType: "EMAIL",
			EmailMessage:  "Payout from Silky Road",
			Note:          "Thanks for selling",
			SenderBatchID: fmt.Sprintf("batch_%d", time.Now().UnixMilli()),
		},
		Items: []payoutItem{{
			RecipientType: "EMAIL",
			Amount:        payoutAmount{Value: req.Amount.StringFixed(2), Currency: p.currency},
			Receiver:      req.Receiver,
			Note:          "Seller payout",
			SenderItemID:  req.OrderID,
		}},
	}
	raw, err := p.call(ctx, http.MethodPost, "/v1/payments/payouts", batch)
	if err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{
		"order_id": req.OrderID,
		"batch_id": gjson.GetBytes(raw, "batch_header.payout_batch_id").String(),
	}).Info("payout submitted")
	return raw, nil
}

// GetCapture fetches a capture by id from the provider.
func (p *PayPal) GetCapture(ctx context.Context, id string) (*Capture, error) {
	raw, err := p.call(ctx, http.MethodGet, "/v2/payments/captures/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	doc := gjson.ParseBytes(raw)
	amount, err := decimal.NewFromString(doc.Get("amount.value").String())
	if err != nil {
		return nil, &app.RelayError{Relay: "paypal", Details: json.RawMessage(raw), Err: fmt.Errorf("capture %s has no amount", id)}
	}
	return &Capture{
		ID:       doc.Get("id").String(),
		Status:   doc.Get("status").String(),
		Amount:   amount,
		Currency: doc.Get("amount.currency_code").String(),
	}, nil
}

func (p *PayPal) call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal paypal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create paypal request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &app.RelayError{Relay: "paypal", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &app.RelayError{Relay: "paypal", Err: fmt.Errorf("read paypal response: %w", err)}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		message := gjson.GetBytes(raw, "message").String()
		if message == "" {
			message = resp.Status
		}
		var details any = json.RawMessage(raw)
		if !gjson.ValidBytes(raw) {
			details = string(raw)
		}
		return nil, &app.RelayError{Relay: "paypal", Details: details, Err: errors.New(message)}
	}
	return raw, nil
}
