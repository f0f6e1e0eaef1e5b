package repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	app "silkyroad/src/app"
	cfg "silkyroad/src/configuration"
	"silkyroad/src/logging"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  map[string][]string
	header http.Header
	body   string
}

type recorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *recorder) add(c recorded) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) at(i int) recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[i]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// backendStub answers every request with the given status and body and records it.
func backendStub(t *testing.T, status int, body string) (*Client, *recorder) {
	t.Helper()
	calls := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		calls.add(recorded{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.Query(),
			header: r.Header.Clone(),
			body:   string(raw),
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(cfg.BackendProperties{
		URL:        srv.URL + "/",
		AnonKey:    "anon",
		ServiceKey: "service",
		Timeout:    time.Second,
	}, logging.Discard())
	require.NoError(t, err)
	return client, calls
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(cfg.BackendProperties{ServiceKey: "k"}, logging.Discard())
	var cfgErr *app.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	_, err = NewClient(cfg.BackendProperties{URL: "https://p.supabase.co"}, logging.Discard())
	assert.ErrorAs(t, err, &cfgErr)

	_, err = NewClient(cfg.BackendProperties{URL: "not a url", ServiceKey: "k"}, logging.Discard())
	assert.Error(t, err)
}

func TestListingRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("GetOwnedFilters", func(t *testing.T) {
		client, calls := backendStub(t, 200, `[{"id":"p1","seller_id":"s1","title":"Book","price_cents":999}]`)
		listing, err := NewListingRepository(client).GetOwned(ctx, "p1", "s1")
		require.NoError(t, err)
		assert.Equal(t, int64(999), listing.PriceCents)

		call := calls.at(0)
		assert.Equal(t, http.MethodGet, call.method)
		assert.Equal(t, "/rest/v1/products", call.path)
		assert.Equal(t, []string{"eq.p1"}, call.query["id"])
		assert.Equal(t, []string{"eq.s1"}, call.query["seller_id"])
		assert.Equal(t, "service", call.header.Get("apikey"))
		assert.Equal(t, "Bearer service", call.header.Get("Authorization"))
	})

	t.Run("GetOwnedNotFound", func(t *testing.T) {
		client, _ := backendStub(t, 200, `[]`)
		_, err := NewListingRepository(client).GetOwned(ctx, "p1", "other")
		var notFound *app.NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "Product not found or not owned by this seller.", notFound.Error())
	})

	t.Run("DeleteBySeller", func(t *testing.T) {
		client, calls := backendStub(t, 204, ``)
		require.NoError(t, NewListingRepository(client).DeleteBySeller(ctx, "s1"))
		call := calls.at(0)
		assert.Equal(t, http.MethodDelete, call.method)
		assert.Equal(t, []string{"eq.s1"}, call.query["seller_id"])
		assert.Equal(t, "return=minimal", call.header.Get("Prefer"))
	})

	t.Run("DeleteError", func(t *testing.T) {
		client, _ := backendStub(t, 400, `{"code":"42501","message":"permission denied"}`)
		err := NewListingRepository(client).Delete(ctx, "p1", "s1")
		var backendErr *app.BackendError
		require.ErrorAs(t, err, &backendErr)
		assert.Equal(t, 400, backendErr.Status)
		assert.Contains(t, backendErr.Error(), "permission denied")
	})

	t.Run("RefusesUnfilteredDelete", func(t *testing.T) {
		client, calls := backendStub(t, 204, ``)
		err := client.deleteRows(ctx, productsTable, NewQuery())
		var validation *app.ValidationError
		assert.ErrorAs(t, err, &validation)
		assert.Zero(t, calls.count())
	})
}

func TestReviewRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateConflict", func(t *testing.T) {
		client, _ := backendStub(t, 409, `{"code":"23505","message":"duplicate key value violates unique constraint"}`)
		_, err := NewReviewRepository(client).Create(ctx, app.Review{ProductID: "p1", UserID: "u1", Rating: 5})
		var backendErr *app.BackendError
		require.ErrorAs(t, err, &backendErr)
		assert.True(t, backendErr.Conflict())
	})

	t.Run("ListByProductJoinsAuthor", func(t *testing.T) {
		client, calls := backendStub(t, 200, `[{"rating":4,"review_text":"ok","user_id":"u1","profiles":{"display_name":"Ann"}},{"rating":2,"review_text":"meh","user_id":"u2","profiles":null}]`)
		reviews, err := NewReviewRepository(client).ListByProduct(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, reviews, 2)
		assert.Equal(t, "Ann", reviews[0].AuthorName())
		assert.Equal(t, "Anonymous", reviews[1].AuthorName())
		assert.Equal(t, []string{"created_at.desc"}, calls.at(0).query["order"])
	})
}

func TestOrderRepository(t *testing.T) {
	ctx := context.Background()

	client, calls := backendStub(t, 200, `[{"id":"o1"}]`)
	paid, err := NewOrderRepository(client).HasPaidOrder(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.True(t, paid)
	assert.Equal(t, []string{"eq.paid"}, calls.at(0).query["status"])

	empty, _ := backendStub(t, 200, `[]`)
	order, err := NewOrderRepository(empty).GetByCapture(ctx, "CAP-1")
	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestProfileRepositoryUpsert(t *testing.T) {
	client, calls := backendStub(t, 201, `[{"id":"u1","first_name":"Ann","paypal_email":"ann@example.com"}]`)
	profile, err := NewProfileRepository(client).Upsert(context.Background(), app.Profile{ID: "u1", FirstName: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", profile.PaypalEmail)
	assert.Equal(t, "resolution=merge-duplicates,return=representation", calls.at(0).header.Get("Prefer"))
}

func TestAuthClient(t *testing.T) {
	ctx := context.Background()

	t.Run("DeleteUserUsesServiceKey", func(t *testing.T) {
		client, calls := backendStub(t, 200, `{}`)
		require.NoError(t, NewAuthClient(client).DeleteUser(ctx, "u1"))
		call := calls.at(0)
		assert.Equal(t, http.MethodDelete, call.method)
		assert.Equal(t, "/auth/v1/admin/users/u1", call.path)
		assert.Equal(t, "Bearer service", call.header.Get("Authorization"))
	})

	t.Run("SignUpSendsMetadata", func(t *testing.T) {
		client, calls := backendStub(t, 200, `{"id":"u1","email":"a@example.com"}`)
		identity, err := NewAuthClient(client).SignUp(ctx, SignUpRequest{
			Email: "a@example.com", Password: "pw", FirstName: "A", LastName: "B",
			RedirectTo: "https://silkyroad.vercel.app/verified.html",
		})
		require.NoError(t, err)
		assert.Equal(t, "u1", identity.ID)

		call := calls.at(0)
		assert.Equal(t, "anon", call.header.Get("apikey"))
		assert.Equal(t, []string{"https://silkyroad.vercel.app/verified.html"}, call.query["redirect_to"])
		var body map[string]any
		require.NoError(t, json.Unmarshal([]byte(call.body), &body))
		assert.Equal(t, map[string]any{"first_name": "A", "last_name": "B"}, body["data"])
	})

	t.Run("SignInError", func(t *testing.T) {
		client, _ := backendStub(t, 400, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
		_, err := NewAuthClient(client).SignInWithPassword(ctx, "a@example.com", "bad")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid login credentials")
	})
}

func signed(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestTokenVerifier(t *testing.T) {
	ctx := context.Background()
	verifier := NewTokenVerifier("secret", nil)

	valid := signed(t, "secret", accessClaims{
		Email: "a@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	t.Run("Valid", func(t *testing.T) {
		identity, err := verifier.VerifyUser(ctx, valid)
		require.NoError(t, err)
		assert.Equal(t, &app.Identity{ID: "u1", Email: "a@example.com", Role: "authenticated"}, identity)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		_, err := NewTokenVerifier("other", nil).VerifyUser(ctx, valid)
		assert.True(t, IsUnauthenticated(err))
	})

	t.Run("Expired", func(t *testing.T) {
		expired := signed(t, "secret", accessClaims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}})
		_, err := verifier.VerifyUser(ctx, expired)
		assert.True(t, IsUnauthenticated(err))
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := verifier.VerifyUser(ctx, "")
		assert.ErrorIs(t, err, app.ErrUnauthenticated)
	})

	t.Run("RemoteFallback", func(t *testing.T) {
		client, calls := backendStub(t, 200, `{"id":"u9","email":"r@example.com"}`)
		identity, err := NewTokenVerifier("", NewAuthClient(client)).VerifyUser(ctx, "opaque")
		require.NoError(t, err)
		assert.Equal(t, "u9", identity.ID)
		assert.Equal(t, "Bearer opaque", calls.at(0).header.Get("Authorization"))
		assert.Equal(t, "anon", calls.at(0).header.Get("apikey"))
	})
}

func TestMigrationFilesEmbedded(t *testing.T) {
	script, err := migrationFiles.ReadFile("migrations/constraints.sql")
	require.NoError(t, err)
	assert.Contains(t, string(script), "reviews_user_product_key")
	assert.Contains(t, string(script), "orders_capture_id_key")
}

func TestMigrationAddsOrderColumns(t *testing.T) {
	script, err := migrationFiles.ReadFile("migrations/constraints.sql")
	require.NoError(t, err)

	paidAt := time.Now()
	raw, err := json.Marshal(app.Order{
		ID: "o1", ProductID: "p1", BuyerID: "b1", SellerID: "s1", BuyerEmail: "b@example.com",
		AmountCents: 100, Currency: "USD", Status: app.OrderStatusPaid, PaidAt: &paidAt, CaptureID: "c1",
	})
	require.NoError(t, err)
	var row map[string]any
	require.NoError(t, json.Unmarshal(raw, &row))

	base := map[string]bool{"id": true, "product_id": true, "buyer_id": true, "seller_id": true, "amount_cents": true, "status": true, "paid_at": true}
	for column := range row {
		if base[column] {
			continue
		}
		assert.Contains(t, string(script), "ALTER TABLE orders ADD COLUMN IF NOT EXISTS "+column+" ", column)
	}
}
