package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterGroupPrefix(t *testing.T) {
	r := NewRouter()
	api := r.Group("/api")
	api.Handle("GET /items", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		Text(w, http.StatusOK, "items")
	}))
	kitchen := r.Group("/api/kitchen")
	kitchen.Handle("GET /orders/{id}", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		Text(w, http.StatusOK, req.PathValue("id"))
	}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/items", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "items", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/kitchen/orders/ORD-7", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ORD-7", w.Body.String())

	// Method patterns reject other verbs.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/items", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouterMiddlewareOrder(t *testing.T) {
	r := NewRouter()

	var order []string
	mk := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, req)
			})
		}
	}
	r.Use(mk("first"), mk("second"))

	r.Handle("GET /ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		order = append(order, "handler")
		Text(w, http.StatusOK, "pong")
	}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestGroupInheritsMiddleware(t *testing.T) {
	r := NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Inherited", "yes")
			next.ServeHTTP(w, req)
		})
	})

	g := r.Group("/g")
	g.Handle("GET /leaf", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		Text(w, http.StatusOK, "leaf")
	}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/g/leaf", nil))
	assert.Equal(t, "yes", w.Header().Get("X-Inherited"))
}

func TestErrorResponseShape(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusNotFound, "order not found")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"code":404,"message":"order not found"}`, w.Body.String())
}
