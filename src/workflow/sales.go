package workflow

import (
	"context"

	app "silkyroad/src/app"
)

const recentOrders = 5

type PaidOrderLister interface {
	ListPaidBySeller(ctx context.Context, sellerID string) ([]app.Order, error)
}

// Sales summarises the paid orders of a seller.
func Sales(ctx context.Context, orders PaidOrderLister, sellerID string) (*app.SalesSummary, error) {
	if sellerID == "" {
		return nil, app.ErrUnauthenticated
	}
	paid, err := orders.ListPaidBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, o := range paid {
		total += o.AmountCents
	}
	recent := paid
	if len(recent) > recentOrders {
		recent = recent[:recentOrders]
	}
	return &app.SalesSummary{
		TotalOrders:  len(paid),
		TotalRevenue: app.FormatAmount(total),
		Recent:       recent,
	}, nil
}
