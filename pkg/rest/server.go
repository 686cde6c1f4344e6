// Package rest exposes the table-ordering API over HTTP. Handlers talk to
// the order store and hand committed events to the publisher; they never
// talk to the broker directly, so broker downtime cannot fail a request.
package rest

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tabletap/tabletap/pkg/event"
	"github.com/tabletap/tabletap/pkg/httputil"
	mw "github.com/tabletap/tabletap/pkg/httputil/middleware"
	"github.com/tabletap/tabletap/pkg/notify"
	"github.com/tabletap/tabletap/pkg/order"
)

// Publisher is the slice of the relay the handlers need.
type Publisher interface {
	PublishOrderEvent(evt *event.OrderEvent) error
	PublishChat(msg *event.ChatMessage) error
}

// Server wires the HTTP routes.
type Server struct {
	store     order.Store
	publisher Publisher
	hub       *notify.Hub
	router    *httputil.Router
	logger    *zap.Logger
}

// NewServer builds the router with the standard middleware chain.
func NewServer(store order.Store, publisher Publisher, hub *notify.Hub, logger *zap.Logger) *Server {
	s := &Server{
		store:     store,
		publisher: publisher,
		hub:       hub,
		logger:    logger,
		router: httputil.NewRouter(httputil.WithServerOptions(func(srv *http.Server) {
			srv.ReadHeaderTimeout = 3 * time.Second
		})),
	}

	s.router.Use(mw.RequestID)
	s.router.Use(mw.LoggerWithOptions(&mw.LoggerOptions{Logger: logger}))
	s.router.Use(mw.CORSWithOptions(nil))

	s.registerHandlers()
	return s
}

func (s *Server) registerHandlers() {
	s.router.Handle("GET /healthz", http.HandlerFunc(s.handleHealth))

	api := s.router.Group("/api")
	api.Handle("GET /tables", http.HandlerFunc(s.handleTables))
	api.Handle("GET /tables/{id}", http.HandlerFunc(s.handleTable))
	api.Handle("GET /menu", http.HandlerFunc(s.handleMenu))
	api.Handle("POST /tables/{id}/order", http.HandlerFunc(s.handlePlaceOrder))
	api.Handle("POST /tables/{id}/chat", http.HandlerFunc(s.handleChat))
	api.Handle("GET /orders/{orderID}", http.HandlerFunc(s.handleGetOrder))

	kitchen := s.router.Group("/api/kitchen")
	kitchen.Handle("GET /orders", http.HandlerFunc(s.handleKitchenOrders))
	kitchen.Handle("POST /orders/{orderID}/status", http.HandlerFunc(s.handleUpdateStatus))
	kitchen.Handle("GET /statistics", http.HandlerFunc(s.handleStatistics))
	kitchen.Handle("GET /events", notify.NewSSEHandler(s.hub, s.logger, 0))
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the server on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	return s.router.ListenAndServe(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.router.Shutdown(ctx)
}
