package workflow

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	app "silkyroad/src/app"

	"github.com/sirupsen/logrus"
)

// Listings deletes and publishes seller listings together with their stored
// assets.
type Listings struct {
	listings   ListingStore
	objects    ObjectStore
	backendURL string
	maxUpload  int64
	now        func() time.Time
	log        logrus.FieldLogger
}

func NewListings(listings ListingStore, objects ObjectStore, backendURL string, maxUpload int64, log logrus.FieldLogger) *Listings {
	return &Listings{
		listings:   listings,
		objects:    objects,
		backendURL: backendURL,
		maxUpload:  maxUpload,
		now:        time.Now,
		log:        log,
	}
}

// Delete removes a listing owned by sellerID and its in-bucket assets. Asset
// removal is best effort; the row delete is not.
func (l *Listings) Delete(ctx context.Context, productID, sellerID string) error {
	if productID == "" || sellerID == "" {
		return &app.ValidationError{Message: "Missing product_id or seller_id"}
	}
	log := l.log.WithFields(logrus.Fields{"product_id": productID, "seller_id": sellerID})

	listing, err := l.listings.GetOwned(ctx, productID, sellerID)
	var notFound *app.NotFoundError
	if err != nil && !errors.As(err, &notFound) {
		// A rejected lookup (malformed id, RLS) is reported like a missing row.
		log.WithError(err).Warn("listing lookup failed")
		return &app.NotFoundError{Resource: "product", ID: productID, Message: app.MsgProductNotOwned}
	}
	if err != nil {
		return err
	}

	keys := app.StorageKeys(*listing, l.objects.Bucket())
	if len(keys) > 0 {
		if err := l.objects.DeleteFiles(ctx, keys); err != nil {
			log.WithError(err).Warn("storage delete error")
		}
	}

	if err := l.listings.Delete(ctx, productID, sellerID); err != nil {
		return err
	}
	log.WithField("assets", len(keys)).Info("listing deleted")
	return nil
}

// Upload is a file received from the seller dashboard.
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

type NewListing struct {
	SellerID    string
	Title       string
	Description string
	Price       string
	Category    string
	SubCategory string
	ExternalURL string
	Thumbnail   *Upload
	File        *Upload
}

// Publish uploads the listing's files and inserts the listing. Uploaded
// objects are removed again when the insert fails.
func (l *Listings) Publish(ctx context.Context, in NewListing) (*app.Listing, error) {
	if in.SellerID == "" {
		return nil, app.ErrUnauthenticated
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, &app.ValidationError{Field: "title", Message: "Title is required."}
	}
	price, err := app.ParsePrice(strings.TrimSpace(in.Price))
	if err != nil {
		return nil, err
	}
	if in.File != nil && l.maxUpload > 0 && in.File.Size > l.maxUpload {
		return nil, &app.ValidationError{Field: "file", Message: "File is too large (max 10MB)."}
	}
	if in.Thumbnail != nil && !app.AllowedImage(in.Thumbnail.Name) {
		return nil, &app.ValidationError{Field: "thumbnail", Message: "Thumbnail must be an image."}
	}

	listing := app.Listing{
		SellerID:    in.SellerID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		PriceCents:  price,
		Category:    strings.TrimSpace(in.Category),
		SubCategory: strings.TrimSpace(in.SubCategory),
		ExternalURL: strings.TrimSpace(in.ExternalURL),
	}

	var uploaded []string
	at := l.now()
	if in.Thumbnail != nil {
		key := app.ThumbnailPath(in.SellerID, at)
		if err := l.objects.UploadFile(ctx, key, in.Thumbnail.Body, in.Thumbnail.Size, in.Thumbnail.ContentType); err != nil {
			return nil, err
		}
		uploaded = append(uploaded, key)
		listing.MainImageURL = app.PublicURL(l.backendURL, l.objects.Bucket(), key)
	}
	if in.File != nil {
		key := app.AssetPath(in.SellerID, in.File.Name, at)
		if err := l.objects.UploadFile(ctx, key, in.File.Body, in.File.Size, in.File.ContentType); err != nil {
			return nil, errors.Join(err, l.discard(ctx, uploaded))
		}
		uploaded = append(uploaded, key)
		listing.DownloadURL = app.PublicURL(l.backendURL, l.objects.Bucket(), key)
	}

	created, err := l.listings.Create(ctx, listing)
	if err != nil {
		return nil, errors.Join(err, l.discard(ctx, uploaded))
	}
	l.log.WithFields(logrus.Fields{"product_id": created.ID, "seller_id": in.SellerID}).Info("listing published")
	return created, nil
}

func (l *Listings) discard(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	err := l.objects.DeleteFiles(ctx, keys)
	if err != nil {
		l.log.WithError(err).Warn("could not remove uploads of failed listing")
	}
	return err
}
