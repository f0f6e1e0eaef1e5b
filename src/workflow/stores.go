// Package workflow holds the multi-step operations that span the data store,
// object storage, the auth store and the payment provider.
package workflow

import (
	"context"
	"encoding/json"
	"io"

	app "silkyroad/src/app"
	"silkyroad/src/relay"
)

type (
	ListingStore interface {
		Get(ctx context.Context, id string) (*app.Listing, error)
		GetOwned(ctx context.Context, id, sellerID string) (*app.Listing, error)
		Create(ctx context.Context, listing app.Listing) (*app.Listing, error)
		Delete(ctx context.Context, id, sellerID string) error
		DeleteBySeller(ctx context.Context, sellerID string) error
	}

	OrderStore interface {
		HasPaidOrder(ctx context.Context, buyerID, productID string) (bool, error)
		GetByCapture(ctx context.Context, captureID string) (*app.Order, error)
		Create(ctx context.Context, order app.Order) (*app.Order, error)
		ListPaidBySeller(ctx context.Context, sellerID string) ([]app.Order, error)
		DeleteBySeller(ctx context.Context, sellerID string) error
	}

	ReviewStore interface {
		Exists(ctx context.Context, userID, productID string) (bool, error)
		Create(ctx context.Context, review app.Review) (*app.Review, error)
	}

	// ObjectStore is the slice of the S3 client the workflows need.
	ObjectStore interface {
		Bucket() string
		ListKeys(ctx context.Context, prefix string) ([]string, error)
		UploadFile(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
		DeleteFile(ctx context.Context, key string) error
		DeleteFiles(ctx context.Context, keys []string) error
	}

	IdentityStore interface {
		DeleteUser(ctx context.Context, userID string) error
	}

	CaptureVerifier interface {
		GetCapture(ctx context.Context, id string) (*relay.Capture, error)
	}

	PayoutSender interface {
		Payout(ctx context.Context, req relay.PayoutRequest) (json.RawMessage, error)
	}
)
