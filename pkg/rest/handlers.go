package rest

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tabletap/tabletap/pkg/event"
	"github.com/tabletap/tabletap/pkg/httputil"
	"github.com/tabletap/tabletap/pkg/order"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.Text(w, http.StatusOK, "ok")
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.store.Tables(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, tables)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid table id")
		return
	}
	table, err := s.store.GetTable(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, table)
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.MenuItems(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, items)
}

type placeOrderRequest struct {
	Items []order.ItemRequest `json:"items"`
}

type placeOrderResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	OrderID string  `json:"order_id"`
	Total   float64 `json:"total"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	tableID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid table id")
		return
	}

	var req placeOrderRequest
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}

	ord, evt, err := s.store.PlaceOrder(r.Context(), tableID, req.Items)
	if err != nil {
		s.storeError(w, err)
		return
	}

	// The order is committed; a publish failure is the relay's problem,
	// never the customer's.
	if err := s.publisher.PublishOrderEvent(evt); err != nil {
		s.logger.Error("failed to enqueue order event",
			zap.String("order_id", ord.ID), zap.Error(err))
	}

	httputil.JSON(w, http.StatusCreated, placeOrderResponse{
		Success: true,
		Message: "Order placed successfully",
		OrderID: ord.ID,
		Total:   ord.Total,
	})
}

type chatRequest struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	tableID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid table id")
		return
	}
	if _, err := s.store.GetTable(r.Context(), tableID); err != nil {
		s.storeError(w, err)
		return
	}

	var req chatRequest
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		httputil.Error(w, http.StatusBadRequest, "invalid text: message is empty")
		return
	}
	if req.Sender != event.SenderTable && req.Sender != event.SenderKitchen {
		httputil.Error(w, http.StatusBadRequest, "invalid sender: must be table or kitchen")
		return
	}

	msg := &event.ChatMessage{
		TableID:   tableID,
		Sender:    req.Sender,
		Text:      req.Text,
		Timestamp: time.Now().UTC(),
	}
	if err := s.publisher.PublishChat(msg); err != nil {
		s.logger.Error("failed to enqueue chat message",
			zap.Int64("table_id", tableID), zap.Error(err))
	}

	httputil.JSON(w, http.StatusAccepted, map[string]any{"success": true})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	ord, err := s.store.GetOrder(r.Context(), r.PathValue("orderID"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, ord)
}

func (s *Server) handleKitchenOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.store.ActiveOrders(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type updateStatusResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Order   *order.Order `json:"order"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")

	var req updateStatusRequest
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}
	status, err := order.ParseStatus(req.Status)
	if err != nil {
		s.storeError(w, err)
		return
	}

	ord, evt, err := s.store.UpdateStatus(r.Context(), orderID, status)
	if err != nil {
		s.storeError(w, err)
		return
	}

	if err := s.publisher.PublishOrderEvent(evt); err != nil {
		s.logger.Error("failed to enqueue status event",
			zap.String("order_id", ord.ID), zap.Error(err))
	}

	httputil.JSON(w, http.StatusOK, updateStatusResponse{
		Success: true,
		Message: "Order status updated",
		Order:   ord,
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Statistics(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, stats)
}

// storeError maps domain errors onto HTTP status codes.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	var verr *order.ValidationError
	var terr *order.InvalidTransitionError
	switch {
	case errors.As(err, &verr), errors.As(err, &terr):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, order.ErrTableNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("store operation failed", zap.Error(err))
		httputil.Error(w, http.StatusInternalServerError, "internal error")
	}
}
