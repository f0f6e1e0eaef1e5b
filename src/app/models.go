package app

import "time"

const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
)

// Identity is the authentication record owned by the backend auth store.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// Profile holds the seller-facing details kept in the profiles table.
type Profile struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DisplayName string `json:"display_name,omitempty"`
	PaypalEmail string `json:"paypal_email"`
}

// Listing represents a product offered by a seller.
type Listing struct {
	ID          string `json:"id,omitempty"`
	SellerID    string `json:"seller_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Category    string `json:"category,omitempty"`
	SubCategory string `json:"sub_category,omitempty"`

	// At most one downloadable asset and three images.
	DownloadURL  string `json:"download_url,omitempty"`
	MainImageURL string `json:"main_image_url,omitempty"`
	Image2URL    string `json:"image2_url,omitempty"`
	Image3URL    string `json:"image3_url,omitempty"`
	ExternalURL  string `json:"external_url,omitempty"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// AssetURLs returns the non-empty asset references of the listing.
func (l Listing) AssetURLs() []string {
	urls := make([]string, 0, 4)
	for _, u := range []string{l.DownloadURL, l.MainImageURL, l.Image2URL, l.Image3URL} {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Order is created once a payment capture succeeds.
type Order struct {
	ID          string     `json:"id,omitempty"`
	ProductID   string     `json:"product_id"`
	BuyerID     string     `json:"buyer_id"`
	SellerID    string     `json:"seller_id"`
	BuyerEmail  string     `json:"buyer_email,omitempty"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency,omitempty"`
	Status      string     `json:"status"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CaptureID   string     `json:"capture_id,omitempty"`
}

// Review is a buyer's rating of a listing.
type Review struct {
	ID         string     `json:"id,omitempty"`
	ProductID  string     `json:"product_id"`
	UserID     string     `json:"user_id"`
	Rating     int        `json:"rating"`
	ReviewText string     `json:"review_text"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`

	Author *ReviewAuthor `json:"profiles,omitempty"`
}

type ReviewAuthor struct {
	DisplayName string `json:"display_name"`
}

// AuthorName is the display name shown next to a review.
func (r Review) AuthorName() string {
	if r.Author == nil || r.Author.DisplayName == "" {
		return "Anonymous"
	}
	return r.Author.DisplayName
}

// SalesSummary aggregates paid orders for a seller.
type SalesSummary struct {
	TotalOrders  int     `json:"total_orders"`
	TotalRevenue string  `json:"total_revenue"`
	Recent       []Order `json:"recent_orders"`
}
