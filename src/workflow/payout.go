package workflow

import (
	"context"
	"encoding/json"
	"strings"

	app "silkyroad/src/app"
	"silkyroad/src/relay"

	"github.com/shopspring/decimal"
)

// PayoutRelease is the body accepted by the payout process.
type PayoutRelease struct {
	OrderID           string          `json:"orderId"`
	SellerPaypalEmail string          `json:"sellerPaypalEmail"`
	Amount            decimal.Decimal `json:"amount"`
}

// ReleasePayout pays a seller for one order in a single-item payout batch.
func ReleasePayout(ctx context.Context, sender PayoutSender, req PayoutRelease) (json.RawMessage, error) {
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.SellerPaypalEmail) == "" || req.Amount.IsZero() {
		return nil, &app.ValidationError{Message: "missing fields"}
	}
	if req.Amount.IsNegative() {
		return nil, &app.ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	return sender.Payout(ctx, relay.PayoutRequest{
		OrderID:  req.OrderID,
		Receiver: strings.TrimSpace(req.SellerPaypalEmail),
		Amount:   req.Amount,
	})
}
