package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Antone-2/supplies-core/internal/cart"
	"github.com/Antone-2/supplies-core/internal/catalog"
	"github.com/Antone-2/supplies-core/internal/identity"
)

type cartServiceMock struct {
	view *cart.View
	err  error

	lastOwner identity.Identity
	lastGuest identity.Identity
}

func (c *cartServiceMock) Get(_ context.Context, owner identity.Identity) (*cart.View, error) {
	c.lastOwner = owner
	return c.view, c.err
}

func (c *cartServiceMock) AddItem(_ context.Context, owner identity.Identity, _ int64, _ int) (*cart.View, error) {
	c.lastOwner = owner
	return c.view, c.err
}

func (c *cartServiceMock) UpdateQuantity(_ context.Context, owner identity.Identity, _ int64, _ int) (*cart.View, error) {
	c.lastOwner = owner
	return c.view, c.err
}

func (c *cartServiceMock) RemoveItem(_ context.Context, owner identity.Identity, _ int64) (*cart.View, error) {
	c.lastOwner = owner
	return c.view, c.err
}

func (c *cartServiceMock) Clear(_ context.Context, owner identity.Identity) error {
	c.lastOwner = owner
	return c.err
}

func (c *cartServiceMock) Merge(_ context.Context, guest identity.Identity, user identity.Identity) (*cart.View, error) {
	c.lastGuest = guest
	c.lastOwner = user
	return c.view, c.err
}

func withIdentity(r *http.Request, id identity.Identity) *http.Request {
	ctx := context.WithValue(r.Context(), identityKey, id)
	return r.WithContext(ctx)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func testView() *cart.View {
	return &cart.View{
		OwnerKey: "guest:g-1",
		Items: []cart.CartItem{
			{ProductID: 1, Quantity: 2, UnitPrice: 100, ProductName: "Surgical Gloves"},
		},
		Total:     200,
		ItemCount: 2,
	}
}

func TestGetCart_ReturnsView(t *testing.T) {
	mock := &cartServiceMock{view: testView()}
	handler := NewCartHandler(mock, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withIdentity(httptest.NewRequest("GET", "/api/v1/cart", nil), identity.Guest("g-1"))

	handler.GetCart(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	var view cart.View
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&view))
	assert.Equal(t, 200.0, view.Total)
	assert.Equal(t, identity.Guest("g-1"), mock.lastOwner)
}

func TestGetCart_MissingIdentity(t *testing.T) {
	handler := NewCartHandler(&cartServiceMock{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	handler.GetCart(recorder, httptest.NewRequest("GET", "/api/v1/cart", nil))

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestAddItem_Created(t *testing.T) {
	mock := &cartServiceMock{view: testView()}
	handler := NewCartHandler(mock, 5*time.Second)

	body := bytes.NewBufferString(`{"product_id": 1, "quantity": 2}`)
	recorder := httptest.NewRecorder()
	request := withIdentity(httptest.NewRequest("POST", "/api/v1/cart/items", body), identity.User("u-1"))

	handler.AddItem(recorder, request)

	assert.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, identity.User("u-1"), mock.lastOwner)
}

func TestAddItem_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing product", `{"quantity": 1}`},
		{"zero quantity", `{"product_id": 1, "quantity": 0}`},
		{"excessive quantity", `{"product_id": 1, "quantity": 100}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCartHandler(&cartServiceMock{view: testView()}, 5*time.Second)
			recorder := httptest.NewRecorder()
			request := withIdentity(httptest.NewRequest("POST", "/api/v1/cart/items", bytes.NewBufferString(tt.body)), identity.Guest("g-1"))

			handler.AddItem(recorder, request)

			assert.Equal(t, http.StatusBadRequest, recorder.Code)
		})
	}
}

func TestAddItem_UnknownProduct(t *testing.T) {
	handler := NewCartHandler(&cartServiceMock{err: catalog.ErrProductNotFound}, 5*time.Second)

	body := bytes.NewBufferString(`{"product_id": 999, "quantity": 1}`)
	recorder := httptest.NewRecorder()
	request := withIdentity(httptest.NewRequest("POST", "/api/v1/cart/items", body), identity.Guest("g-1"))

	handler.AddItem(recorder, request)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestUpdateQuantity_OK(t *testing.T) {
	handler := NewCartHandler(&cartServiceMock{view: testView()}, 5*time.Second)

	body := bytes.NewBufferString(`{"quantity": 5}`)
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("PUT", "/api/v1/cart/items/1", body)
	request = withIdentity(withURLParam(request, "product_id", "1"), identity.Guest("g-1"))

	handler.UpdateQuantity(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestUpdateQuantity_BadProductID(t *testing.T) {
	handler := NewCartHandler(&cartServiceMock{view: testView()}, 5*time.Second)

	body := bytes.NewBufferString(`{"quantity": 5}`)
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("PUT", "/api/v1/cart/items/abc", body)
	request = withIdentity(withURLParam(request, "product_id", "abc"), identity.Guest("g-1"))

	handler.UpdateQuantity(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestClearCart_NoContent(t *testing.T) {
	handler := NewCartHandler(&cartServiceMock{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withIdentity(httptest.NewRequest("DELETE", "/api/v1/cart", nil), identity.Guest("g-1"))

	handler.ClearCart(recorder, request)

	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestMergeCart_RequiresUser(t *testing.T) {
	handler := NewCartHandler(&cartServiceMock{view: testView()}, 5*time.Second)

	body := bytes.NewBufferString(`{"guest_id": "g-1"}`)
	recorder := httptest.NewRecorder()
	request := withIdentity(httptest.NewRequest("POST", "/api/v1/cart/merge", body), identity.Guest("g-1"))

	handler.MergeCart(recorder, request)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestMergeCart_OK(t *testing.T) {
	mock := &cartServiceMock{view: testView()}
	handler := NewCartHandler(mock, 5*time.Second)

	body := bytes.NewBufferString(`{"guest_id": "g-1"}`)
	recorder := httptest.NewRecorder()
	request := withIdentity(httptest.NewRequest("POST", "/api/v1/cart/merge", body), identity.User("u-1"))

	handler.MergeCart(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, identity.Guest("g-1"), mock.lastGuest)
	assert.Equal(t, identity.User("u-1"), mock.lastOwner)
}

func TestNewGuest_IssuesID(t *testing.T) {
	handler := NewCartHandler(&cartServiceMock{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	handler.NewGuest(recorder, httptest.NewRequest("POST", "/api/v1/guest", nil))

	require.Equal(t, http.StatusCreated, recorder.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.NotEmpty(t, resp["guest_id"])
}

func TestIdentityMiddleware_Resolution(t *testing.T) {
	var captured identity.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = identityFromContext(r.Context())
	})
	handler := IdentityMiddleware(next)

	// user header wins over guest header
	request := httptest.NewRequest("GET", "/", nil)
	request.Header.Set("X-User-ID", "u-1")
	request.Header.Set("X-Guest-ID", "g-1")
	handler.ServeHTTP(httptest.NewRecorder(), request)
	assert.Equal(t, identity.User("u-1"), captured)

	// guest header
	request = httptest.NewRequest("GET", "/", nil)
	request.Header.Set("X-Guest-ID", "g-1")
	handler.ServeHTTP(httptest.NewRecorder(), request)
	assert.Equal(t, identity.Guest("g-1"), captured)

	// guest query fallback
	request = httptest.NewRequest("GET", "/?guest_id=g-2", nil)
	handler.ServeHTTP(httptest.NewRecorder(), request)
	assert.Equal(t, identity.Guest("g-2"), captured)

	// nothing at all
	request = httptest.NewRequest("GET", "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), request)
	assert.True(t, captured.IsZero())
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireAdmin("secret")(next)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/", nil)
	request.Header.Set("X-Admin-Token", "secret")
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = httptest.NewRecorder()
	request = httptest.NewRequest("GET", "/", nil)
	request.Header.Set("X-Admin-Token", "wrong")
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	// an empty configured token locks the endpoints entirely
	locked := RequireAdmin("")(next)
	recorder = httptest.NewRecorder()
	request = httptest.NewRequest("GET", "/", nil)
	locked.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}
