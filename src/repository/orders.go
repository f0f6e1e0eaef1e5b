package repository

import (
	"context"

	app "silkyroad/src/app"
)

const ordersTable = "orders"

type OrderRepository struct {
	base *Client
}

func NewOrderRepository(base *Client) *OrderRepository {
	return &OrderRepository{base: base}
}

// HasPaidOrder reports whether buyerID holds a paid order on productID.
func (r *OrderRepository) HasPaidOrder(ctx context.Context, buyerID, productID string) (bool, error) {
	var rows []app.Order
	q := NewQuery().Select("id").
		Eq("buyer_id", buyerID).
		Eq("product_id", productID).
		Eq("status", app.OrderStatusPaid).
		Limit(1)
	if err := r.base.selectRows(ctx, ordersTable, q, &rows); err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// GetByCapture returns the order recorded for a provider capture id, or nil.
func (r *OrderRepository) GetByCapture(ctx context.Context, captureID string) (*app.Order, error) {
	var rows []app.Order
	q := NewQuery().Select("*").Eq("capture_id", captureID).Limit(1)
	if err := r.base.selectRows(ctx, ordersTable, q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *OrderRepository) Create(ctx context.Context, order app.Order) (*app.Order, error) {
	var rows []app.Order
	if err := r.base.insertRows(ctx, ordersTable, order, "", &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &order, nil
	}
	return &rows[0], nil
}

// ListPaidBySeller returns paid orders where sellerID is the seller, newest first.
func (r *OrderRepository) ListPaidBySeller(ctx context.Context, sellerID string) ([]app.Order, error) {
	rows := []app.Order{}
	q := NewQuery().Select("*").
		Eq("seller_id", sellerID).
		Eq("status", app.OrderStatusPaid).
		Order("paid_at", false)
	if err := r.base.selectRows(ctx, ordersTable, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *OrderRepository) DeleteBySeller(ctx context.Context, sellerID string) error {
	return r.base.deleteRows(ctx, ordersTable, NewQuery().Eq("seller_id", sellerID))
}
