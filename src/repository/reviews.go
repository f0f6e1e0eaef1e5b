package repository

import (
	"context"

	app "silkyroad/src/app"
)

const reviewsTable = "reviews"

type ReviewRepository struct {
	base *Client
}

func NewReviewRepository(base *Client) *ReviewRepository {
	return &ReviewRepository{base: base}
}

// Exists reports whether userID already reviewed productID.
func (r *ReviewRepository) Exists(ctx context.Context, userID, productID string) (bool, error) {
	var rows []app.Review
	q := NewQuery().Select("id").Eq("user_id", userID).Eq("product_id", productID).Limit(1)
	if err := r.base.selectRows(ctx, reviewsTable, q, &rows); err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// Create inserts a review. A duplicate (user, product) pair comes back as a
// BackendError whose Conflict() is true.
func (r *ReviewRepository) Create(ctx context.Context, review app.Review) (*app.Review, error) {
	var rows []app.Review
	if err := r.base.insertRows(ctx, reviewsTable, review, "", &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &review, nil
	}
	return &rows[0], nil
}

// ListByProduct returns reviews with their author's display name, newest first.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string) ([]app.Review, error) {
	rows := []app.Review{}
	q := NewQuery().
		Select("id,product_id,rating,review_text,created_at,user_id,profiles(display_name)").
		Eq("product_id", productID).
		Order("created_at", false)
	if err := r.base.selectRows(ctx, reviewsTable, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
