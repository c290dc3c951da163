package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/verdora/storefront/internal/domain"
	"github.com/verdora/storefront/internal/service/cart"
)

type cartItemResponse struct {
	ID            string `json:"id"`
	ProductID     string `json:"product_id"`
	Quantity      int32  `json:"quantity"`
	ProductName   string `json:"product_name"`
	PriceMinor    int64  `json:"price_minor"`
	ImageURL      string `json:"image_url,omitempty"`
	SubtotalMinor int64  `json:"subtotal_minor"`
}

type cartResponse struct {
	State      string             `json:"state"`
	Items      []cartItemResponse `json:"items"`
	TotalMinor int64              `json:"total_minor"`
	Error      string             `json:"error,omitempty"`
}

func toCartResponse(snap cart.Snapshot) cartResponse {
	items := make([]cartItemResponse, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, cartItemResponse{
			ID:            item.ID,
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			ProductName:   item.Product.Name,
			PriceMinor:    item.Product.PriceMinor,
			ImageURL:      item.Product.ImageURL,
			SubtotalMinor: item.SubtotalMinor(),
		})
	}

	resp := cartResponse{
		State:      string(snap.State),
		Items:      items,
		TotalMinor: snap.TotalMinor,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	return resp
}

func (s *Server) synchronizer(r *http.Request) *cart.Synchronizer {
	return s.cfg.Carts.ForUser(userIDFromContext(r.Context()))
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	snap, err := s.synchronizer(r).Fetch(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(snap))
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, domain.ErrProductIDRequired)
		return
	}

	snap, err := s.synchronizer(r).Add(r.Context(), req.ProductID, req.Quantity)
	s.recordCartMetric("add", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(snap))
}

type updateCartItemRequest struct {
	Quantity int32 `json:"quantity"`
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, domain.ErrQuantityInvalid)
		return
	}

	snap, err := s.synchronizer(r).UpdateQuantity(r.Context(), chi.URLParam(r, "id"), req.Quantity)
	s.recordCartMetric("update", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(snap))
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	snap, err := s.synchronizer(r).Remove(r.Context(), chi.URLParam(r, "id"))
	s.recordCartMetric("remove", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(snap))
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	snap, err := s.synchronizer(r).Clear(r.Context())
	s.recordCartMetric("clear", err)
	if err != nil {
		// Частичная очистка: отдать фактическое состояние вместе с ошибкой.
		resp := toCartResponse(snap)
		resp.Error = err.Error()
		writeJSON(w, http.StatusConflict, resp)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(snap))
}

func (s *Server) recordCartMetric(operation string, err error) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordCartMutation(operation, err)
	}
}
