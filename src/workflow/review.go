package workflow

import (
	"context"
	"errors"
	"strings"

	app "silkyroad/src/app"

	"github.com/sirupsen/logrus"
)

// ReviewGate decides who may review a listing and records reviews.
type ReviewGate struct {
	orders  OrderStore
	reviews ReviewStore
	log     logrus.FieldLogger
}

func NewReviewGate(orders OrderStore, reviews ReviewStore, log logrus.FieldLogger) *ReviewGate {
	return &ReviewGate{orders: orders, reviews: reviews, log: log}
}

// Check returns app.ReviewAllowed or the reason the viewer may not review.
// An empty userID means the viewer is not signed in.
func (g *ReviewGate) Check(ctx context.Context, userID, productID string) (app.ReviewReason, error) {
	if userID == "" {
		return app.ReviewLoginRequired, nil
	}
	paid, err := g.orders.HasPaidOrder(ctx, userID, productID)
	if err != nil {
		return "", err
	}
	if !paid {
		return app.ReviewPurchaseRequired, nil
	}
	exists, err := g.reviews.Exists(ctx, userID, productID)
	if err != nil {
		return "", err
	}
	if exists {
		return app.ReviewAlreadyReviewed, nil
	}
	return app.ReviewAllowed, nil
}

// Submit re-runs the gate and inserts the review. Constraint violations from
// a concurrent submission are reported as the matching rejection.
func (g *ReviewGate) Submit(ctx context.Context, userID, productID string, rating int, text string) (*app.Review, error) {
	if productID == "" {
		return nil, &app.ValidationError{Field: "product_id", Message: "Missing product_id"}
	}
	if !app.ValidRating(rating) {
		return nil, &app.ValidationError{Field: "rating", Message: app.MsgSelectRating}
	}

	reason, err := g.Check(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	if reason != app.ReviewAllowed {
		return nil, &app.ReviewRejection{Reason: reason}
	}

	review, err := g.reviews.Create(ctx, app.Review{
		ProductID:  productID,
		UserID:     userID,
		Rating:     rating,
		ReviewText: strings.TrimSpace(text),
	})
	var backendErr *app.BackendError
	switch {
	case errors.As(err, &backendErr) && backendErr.Conflict():
		return nil, &app.ReviewRejection{Reason: app.ReviewAlreadyReviewed}
	case errors.As(err, &backendErr) && backendErr.CheckFailed():
		return nil, &app.ReviewRejection{Reason: app.ReviewPurchaseRequired}
	case err != nil:
		return nil, err
	}
	g.log.WithFields(logrus.Fields{"product_id": productID, "user_id": userID, "rating": rating}).Info("review submitted")
	return review, nil
}
