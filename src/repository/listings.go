package repository

import (
	"context"

	app "silkyroad/src/app"
)

const (
	productsTable  = "products"
	listingColumns = "id,seller_id,title,description,price_cents,category,sub_category,download_url,main_image_url,image2_url,image3_url,external_url,created_at"
)

// ListingRepository reads and writes the products table.
type ListingRepository struct {
	base *Client
}

func NewListingRepository(base *Client) *ListingRepository {
	return &ListingRepository{base: base}
}

func (r *ListingRepository) Get(ctx context.Context, id string) (*app.Listing, error) {
	var rows []app.Listing
	q := NewQuery().Select(listingColumns).Eq("id", id).Limit(1)
	if err := r.base.selectRows(ctx, productsTable, q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &app.NotFoundError{Resource: "product", ID: id}
	}
	return &rows[0], nil
}

// GetOwned fetches a listing only when it belongs to sellerID.
func (r *ListingRepository) GetOwned(ctx context.Context, id, sellerID string) (*app.Listing, error) {
	var rows []app.Listing
	q := NewQuery().Select(listingColumns).Eq("id", id).Eq("seller_id", sellerID).Limit(1)
	if err := r.base.selectRows(ctx, productsTable, q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &app.NotFoundError{Resource: "product", ID: id, Message: app.MsgProductNotOwned}
	}
	return &rows[0], nil
}

// ListBySeller returns a seller's listings, newest first.
func (r *ListingRepository) ListBySeller(ctx context.Context, sellerID string) ([]app.Listing, error) {
	rows := []app.Listing{}
	q := NewQuery().Select(listingColumns).Eq("seller_id", sellerID).Order("created_at", false)
	if err := r.base.selectRows(ctx, productsTable, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ListingRepository) Create(ctx context.Context, listing app.Listing) (*app.Listing, error) {
	var rows []app.Listing
	if err := r.base.insertRows(ctx, productsTable, listing, "", &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &listing, nil
	}
	return &rows[0], nil
}

// Delete removes one listing filtered by id and owner.
func (r *ListingRepository) Delete(ctx context.Context, id, sellerID string) error {
	return r.base.deleteRows(ctx, productsTable, NewQuery().Eq("id", id).Eq("seller_id", sellerID))
}

func (r *ListingRepository) DeleteBySeller(ctx context.Context, sellerID string) error {
	return r.base.deleteRows(ctx, productsTable, NewQuery().Eq("seller_id", sellerID))
}
