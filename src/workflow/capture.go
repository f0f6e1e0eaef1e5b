package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	app "silkyroad/src/app"
	"silkyroad/src/relay"

	"github.com/sirupsen/logrus"
)

// CaptureRecorder turns a completed payment capture into exactly one paid order.
type CaptureRecorder struct {
	listings ListingStore
	orders   OrderStore
	// verifier is nil when provider credentials are not configured.
	verifier CaptureVerifier
	now      func() time.Time
	log      logrus.FieldLogger
}

func NewCaptureRecorder(listings ListingStore, orders OrderStore, verifier CaptureVerifier, log logrus.FieldLogger) *CaptureRecorder {
	return &CaptureRecorder{
		listings: listings,
		orders:   orders,
		verifier: verifier,
		now:      time.Now,
		log:      log,
	}
}

type CaptureInput struct {
	ProductID string
	Buyer     *app.Identity
	Details   json.RawMessage
}

type CaptureResult struct {
	Order *app.Order
	// Duplicate is set when the capture had already been recorded.
	Duplicate bool
}

func (r *CaptureRecorder) Record(ctx context.Context, in CaptureInput) (*CaptureResult, error) {
	if in.Buyer == nil || in.Buyer.ID == "" {
		return nil, app.ErrUnauthenticated
	}
	if in.ProductID == "" {
		return nil, &app.ValidationError{Field: "product_id", Message: "Missing product_id"}
	}
	capture, err := relay.ParseCapture(in.Details)
	if err != nil {
		return nil, err
	}

	if r.verifier != nil {
		verified, err := r.verifier.GetCapture(ctx, capture.ID)
		if err != nil {
			return nil, err
		}
		capture.Status = verified.Status
		capture.Amount = verified.Amount
		if verified.Currency != "" {
			capture.Currency = verified.Currency
		}
	}
	if capture.Status != "" && capture.Status != relay.CaptureCompleted {
		return nil, &app.ValidationError{Field: "details", Message: "capture is not completed: " + capture.Status}
	}

	log := r.log.WithFields(logrus.Fields{"capture_id": capture.ID, "product_id": in.ProductID, "user_id": in.Buyer.ID})

	existing, err := r.orders.GetByCapture(ctx, capture.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Info("capture already recorded")
		return &CaptureResult{Order: existing, Duplicate: true}, nil
	}

	listing, err := r.listings.Get(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	cents, err := app.ToMinorUnits(capture.Amount.String())
	if err != nil {
		return nil, err
	}
	buyerEmail := capture.PayerEmail
	if buyerEmail == "" {
		buyerEmail = in.Buyer.Email
	}
	paidAt := r.now().UTC()

	order, err := r.orders.Create(ctx, app.Order{
		ProductID:   listing.ID,
		BuyerID:     in.Buyer.ID,
		SellerID:    listing.SellerID,
		BuyerEmail:  buyerEmail,
		AmountCents: cents,
		Currency:    capture.Currency,
		Status:      app.OrderStatusPaid,
		PaidAt:      &paidAt,
		CaptureID:   capture.ID,
	})
	var backendErr *app.BackendError
	if errors.As(err, &backendErr) && backendErr.Conflict() {
		existing, lookupErr := r.orders.GetByCapture(ctx, capture.ID)
		if lookupErr != nil || existing == nil {
			return nil, err
		}
		log.Info("capture recorded concurrently")
		return &CaptureResult{Order: existing, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}
	log.WithField("amount_cents", cents).Info("order recorded")
	return &CaptureResult{Order: order}, nil
}
