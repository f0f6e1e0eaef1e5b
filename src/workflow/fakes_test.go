package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	app "silkyroad/src/app"
	"silkyroad/src/relay"
)

// memoryBackend keeps listings, orders, reviews, objects and identities in
// maps. failOn makes the named operation return an error.
type memoryBackend struct {
	mu         sync.Mutex
	listings   map[string]app.Listing
	orders     []app.Order
	reviews    []app.Review
	objects    map[string][]byte
	identities map[string]bool
	failOn     map[string]error
	calls      []string
	nextID     int
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		listings:   map[string]app.Listing{},
		objects:    map[string][]byte{},
		identities: map[string]bool{},
		failOn:     map[string]error{},
	}
}

func (m *memoryBackend) enter(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op)
	return m.failOn[op]
}

func (m *memoryBackend) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s%d", prefix, m.nextID)
}

// ListingStore

func (m *memoryBackend) Get(ctx context.Context, id string) (*app.Listing, error) {
	if err := m.enter("listings.get"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, &app.NotFoundError{Resource: "product", ID: id}
	}
	return &l, nil
}

func (m *memoryBackend) GetOwned(ctx context.Context, id, sellerID string) (*app.Listing, error) {
	if err := m.enter("listings.get_owned"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok || l.SellerID != sellerID {
		return nil, &app.NotFoundError{Resource: "product", ID: id, Message: app.MsgProductNotOwned}
	}
	return &l, nil
}

func (m *memoryBackend) Create(ctx context.Context, listing app.Listing) (*app.Listing, error) {
	if err := m.enter("listings.create"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	listing.ID = m.id("p")
	m.listings[listing.ID] = listing
	return &listing, nil
}

func (m *memoryBackend) Delete(ctx context.Context, id, sellerID string) error {
	if err := m.enter("listings.delete"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.listings[id]; ok && l.SellerID == sellerID {
		delete(m.listings, id)
	}
	return nil
}

func (m *memoryBackend) DeleteBySeller(ctx context.Context, sellerID string) error {
	if err := m.enter("listings.delete_by_seller"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range m.listings {
		if l.SellerID == sellerID {
			delete(m.listings, id)
		}
	}
	return nil
}

func (m *memoryBackend) listingsOf(sellerID string) []app.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []app.Listing
	for _, l := range m.listings {
		if l.SellerID == sellerID {
			out = append(out, l)
		}
	}
	return out
}

// orderStore and reviewStore share the backend but expose distinct method sets.
type orderStore struct{ *memoryBackend }

func (o orderStore) HasPaidOrder(ctx context.Context, buyerID, productID string) (bool, error) {
	if err := o.enter("orders.has_paid"); err != nil {
		return false, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, order := range o.orders {
		if order.BuyerID == buyerID && order.ProductID == productID && order.Status == app.OrderStatusPaid {
			return true, nil
		}
	}
	return false, nil
}

func (o orderStore) GetByCapture(ctx context.Context, captureID string) (*app.Order, error) {
	if err := o.enter("orders.get_by_capture"); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, order := range o.orders {
		if order.CaptureID == captureID {
			found := order
			return &found, nil
		}
	}
	return nil, nil
}

func (o orderStore) Create(ctx context.Context, order app.Order) (*app.Order, error) {
	if err := o.enter("orders.create"); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, existing := range o.orders {
		if order.CaptureID != "" && existing.CaptureID == order.CaptureID {
			return nil, &app.BackendError{Op: "insert orders", Status: http.StatusConflict, Code: "23505", Err: errors.New("duplicate capture")}
		}
	}
	order.ID = o.id("o")
	o.orders = append(o.orders, order)
	return &order, nil
}

func (o orderStore) ListPaidBySeller(ctx context.Context, sellerID string) ([]app.Order, error) {
	if err := o.enter("orders.list_paid"); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	out := []app.Order{}
	for _, order := range o.orders {
		if order.SellerID == sellerID && order.Status == app.OrderStatusPaid {
			out = append(out, order)
		}
	}
	return out, nil
}

func (o orderStore) DeleteBySeller(ctx context.Context, sellerID string) error {
	if err := o.enter("orders.delete_by_seller"); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.orders[:0]
	for _, order := range o.orders {
		if order.SellerID != sellerID {
			kept = append(kept, order)
		}
	}
	o.orders = kept
	return nil
}

func (o orderStore) ordersOf(sellerID string) []app.Order {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []app.Order
	for _, order := range o.orders {
		if order.SellerID == sellerID {
			out = append(out, order)
		}
	}
	return out
}

type reviewStore struct{ *memoryBackend }

func (r reviewStore) Exists(ctx context.Context, userID, productID string) (bool, error) {
	if err := r.enter("reviews.exists"); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, review := range r.reviews {
		if review.UserID == userID && review.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

// Create enforces the same unique (user_id, product_id) index the database has.
func (r reviewStore) Create(ctx context.Context, review app.Review) (*app.Review, error) {
	if err := r.enter("reviews.create"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reviews {
		if existing.UserID == review.UserID && existing.ProductID == review.ProductID {
			return nil, &app.BackendError{Op: "insert reviews", Status: http.StatusConflict, Code: "23505", Err: errors.New("duplicate review")}
		}
	}
	review.ID = r.id("r")
	r.reviews = append(r.reviews, review)
	return &review, nil
}

type objectStore struct{ *memoryBackend }

func (s objectStore) Bucket() string { return app.UploadsBucket }

func (s objectStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if err := s.enter("objects.list"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s objectStore) UploadFile(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if err := s.enter("objects.upload"); err != nil {
		return err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = raw
	return nil
}

func (s objectStore) DeleteFile(ctx context.Context, key string) error {
	if err := s.enter("objects.delete"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s objectStore) DeleteFiles(ctx context.Context, keys []string) error {
	if err := s.enter("objects.delete_batch"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.objects, k)
	}
	return nil
}

func (s objectStore) keysUnder(prefix string) []string {
	keys, _ := s.ListKeys(context.Background(), prefix)
	return keys
}

type identityStore struct{ *memoryBackend }

func (i identityStore) DeleteUser(ctx context.Context, userID string) error {
	if err := i.enter("identities.delete"); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.identities, userID)
	return nil
}

func (i identityStore) exists(userID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.identities[userID]
}

type stubVerifier struct {
	capture *relay.Capture
	err     error
}

func (s stubVerifier) GetCapture(ctx context.Context, id string) (*relay.Capture, error) {
	return s.capture, s.err
}

type stubPayout struct {
	got *relay.PayoutRequest
	err error
}

func (s *stubPayout) Payout(ctx context.Context, req relay.PayoutRequest) (json.RawMessage, error) {
	s.got = &req
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(`{"batch_header":{"payout_batch_id":"B1"}}`), nil
}
