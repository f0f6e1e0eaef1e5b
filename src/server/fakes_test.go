package server

import (
	"context"
	"encoding/json"
	"sync"

	app "silkyroad/src/app"
	cfg "silkyroad/src/configuration"
	"silkyroad/src/relay"
	db "silkyroad/src/repository"
	"silkyroad/src/workflow"

	"github.com/stretchr/testify/mock"
)

const (
	sellerToken = "seller-token"
	buyerToken  = "buyer-token"
)

type fakeIdentities struct {
	mu     sync.Mutex
	tokens map[string]*app.Identity
	calls  int
}

func newFakeIdentities() *fakeIdentities {
	return &fakeIdentities{tokens: map[string]*app.Identity{
		sellerToken: {ID: "seller-1", Email: "seller@example.com"},
		buyerToken:  {ID: "buyer-1", Email: "buyer@example.com"},
	}}
}

func (f *fakeIdentities) VerifyUser(_ context.Context, token string) (*app.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	identity, ok := f.tokens[token]
	if !ok {
		return nil, app.ErrUnauthenticated
	}
	return identity, nil
}

func (f *fakeIdentities) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) Run(ctx context.Context, userID string) (*workflow.CascadeReport, error) {
	args := m.Called(ctx, userID)
	report, _ := args.Get(0).(*workflow.CascadeReport)
	return report, args.Error(1)
}

type mockListings struct{ mock.Mock }

func (m *mockListings) Delete(ctx context.Context, productID, sellerID string) error {
	return m.Called(ctx, productID, sellerID).Error(0)
}

func (m *mockListings) Publish(ctx context.Context, in workflow.NewListing) (*app.Listing, error) {
	args := m.Called(ctx, in)
	listing, _ := args.Get(0).(*app.Listing)
	return listing, args.Error(1)
}

type fakeCatalog struct {
	listings map[string]app.Listing
}

func (f *fakeCatalog) Get(_ context.Context, id string) (*app.Listing, error) {
	listing, ok := f.listings[id]
	if !ok {
		return nil, &app.NotFoundError{Resource: "product", ID: id}
	}
	return &listing, nil
}

func (f *fakeCatalog) ListBySeller(_ context.Context, sellerID string) ([]app.Listing, error) {
	var out []app.Listing
	for _, l := range f.listings {
		if l.SellerID == sellerID {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeReviews struct {
	reason    app.ReviewReason
	checkErr  error
	submitErr error
	submitted []app.Review
}

func (f *fakeReviews) Check(_ context.Context, userID, _ string) (app.ReviewReason, error) {
	if userID == "" {
		return app.ReviewLoginRequired, nil
	}
	if f.checkErr != nil {
		return app.ReviewAllowed, f.checkErr
	}
	return f.reason, nil
}

func (f *fakeReviews) Submit(_ context.Context, userID, productID string, rating int, text string) (*app.Review, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	review := app.Review{ID: "r1", ProductID: productID, UserID: userID, Rating: rating, ReviewText: text}
	f.submitted = append(f.submitted, review)
	return &review, nil
}

type fakeReviewList struct {
	reviews []app.Review
}

func (f *fakeReviewList) ListByProduct(context.Context, string) ([]app.Review, error) {
	return f.reviews, nil
}

type fakeCaptures struct {
	calls []workflow.CaptureInput
}

func (f *fakeCaptures) Record(_ context.Context, in workflow.CaptureInput) (*workflow.CaptureResult, error) {
	f.calls = append(f.calls, in)
	return &workflow.CaptureResult{Order: &app.Order{ID: "o1", ProductID: in.ProductID, BuyerID: in.Buyer.ID, Status: app.OrderStatusPaid}}, nil
}

type fakeProfiles struct {
	profiles map[string]app.Profile
}

func (f *fakeProfiles) Get(_ context.Context, id string) (*app.Profile, error) {
	profile, ok := f.profiles[id]
	if !ok {
		return nil, &app.NotFoundError{Resource: "profile", ID: id}
	}
	return &profile, nil
}

func (f *fakeProfiles) Upsert(_ context.Context, profile app.Profile) (*app.Profile, error) {
	f.profiles[profile.ID] = profile
	return &profile, nil
}

type fakeOrders struct {
	orders []app.Order
}

func (f *fakeOrders) ListPaidBySeller(_ context.Context, sellerID string) ([]app.Order, error) {
	var out []app.Order
	for _, o := range f.orders {
		if o.SellerID == sellerID {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeContact struct {
	err      error
	notReady error
	sent     []relay.ContactMessage
}

func (f *fakeContact) Ready() error {
	return f.notReady
}

func (f *fakeContact) SendContact(_ context.Context, msg relay.ContactMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeMail struct {
	err error
}

func (f *fakeMail) Send(_ context.Context, msg relay.Message) (*relay.SendInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &relay.SendInfo{MessageID: "<m1@smtp.example.com>", Accepted: []string{msg.To}}, nil
}

type fakeSessions struct {
	signInErr error
	signedOut []string
}

func (f *fakeSessions) SignUp(_ context.Context, req db.SignUpRequest) (*app.Identity, error) {
	return &app.Identity{ID: "new-user", Email: req.Email}, nil
}

func (f *fakeSessions) SignInWithPassword(_ context.Context, email, _ string) (*db.Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return &db.Session{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 3600, User: &app.Identity{ID: "u1", Email: email}}, nil
}

func (f *fakeSessions) SignInWithIDToken(context.Context, string, string, string) (*db.Session, error) {
	return &db.Session{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (f *fakeSessions) SignOut(_ context.Context, token string) error {
	f.signedOut = append(f.signedOut, token)
	return nil
}

func (f *fakeSessions) ResetPasswordForEmail(context.Context, string, string) error {
	return nil
}

type stubPayout struct {
	err      error
	requests []relay.PayoutRequest
}

func (s *stubPayout) Payout(_ context.Context, req relay.PayoutRequest) (json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.requests = append(s.requests, req)
	return json.RawMessage(`{"batch_header":{"payout_batch_id":"B1","batch_status":"PENDING"}}`), nil
}

type testServices struct {
	*Services
	identities *fakeIdentities
	accounts   *mockAccounts
	listings   *mockListings
	catalog    *fakeCatalog
	reviews    *fakeReviews
	captures   *fakeCaptures
	contact    *fakeContact
	sessions   *fakeSessions
}

func newTestServices() *testServices {
	ts := &testServices{
		identities: newFakeIdentities(),
		accounts:   &mockAccounts{},
		listings:   &mockListings{},
		catalog: &fakeCatalog{listings: map[string]app.Listing{
			"p1": {ID: "p1", SellerID: "seller-1", Title: "Silk Scarf", Description: "Hand dyed", PriceCents: 1250},
		}},
		reviews:  &fakeReviews{},
		captures: &fakeCaptures{},
		contact:  &fakeContact{},
		sessions: &fakeSessions{},
	}
	ts.Services = &Services{
		Identities: ts.identities,
		Sessions:   ts.sessions,
		Accounts:   ts.accounts,
		Listings:   ts.listings,
		Catalog:    ts.catalog,
		Reviews:    ts.reviews,
		ReviewList: &fakeReviewList{reviews: []app.Review{
			{ID: "r0", ProductID: "p1", Rating: 4, ReviewText: "Lovely"},
		}},
		Captures: ts.captures,
		Profiles: &fakeProfiles{profiles: map[string]app.Profile{}},
		Orders: &fakeOrders{orders: []app.Order{
			{ID: "o1", SellerID: "seller-1", AmountCents: 1250, Status: app.OrderStatusPaid},
			{ID: "o2", SellerID: "seller-1", AmountCents: 799, Status: app.OrderStatusPaid},
		}},
		Contact: ts.contact,
		Mail:    &fakeMail{},
	}
	return ts
}

func testProperties() *cfg.Properties {
	config := &cfg.Properties{SiteURL: "https://site.example"}
	config.Server.AllowOrigins = []string{"http://localhost:3000"}
	config.S3.MaxUploadBytes = 10 << 20
	config.Auth.AccessTokenCookieName = "sr_access_token"
	config.Auth.RefreshTokenCookieName = "sr_refresh_token"
	config.Auth.StateCookieName = "sr_oauth_state"
	config.Rate.MailPerMinute = 1
	config.Rate.MailBurst = 1
	return config
}
