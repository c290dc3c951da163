package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/verdora/storefront/internal/domain"
)

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	products, err := s.cfg.Catalog.ListProducts(r.Context(), r.URL.Query().Get("category"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.cfg.Catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.cfg.Catalog.ListReviews(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reviews": reviews})
}

type addReviewRequest struct {
	Rating  int32  `json:"rating"`
	Comment string `json:"comment"`
}

func (s *Server) addReview(w http.ResponseWriter, r *http.Request) {
	var req addReviewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, domain.ErrReviewRatingInvalid)
		return
	}

	review, err := s.cfg.Catalog.AddReview(r.Context(), domain.Review{
		ProductID: chi.URLParam(r, "id"),
		UserID:    userIDFromContext(r.Context()),
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (s *Server) deleteReview(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	admin, err := s.cfg.Auth.IsAdmin(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.cfg.Catalog.DeleteReview(r.Context(), chi.URLParam(r, "id"), userID, admin); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type contactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Body  string `json:"body"`
}

func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeBody(r, &req); err != nil || req.Body == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:     "message body is required",
			RequestID: requestIDFromContext(r.Context()),
		})
		return
	}

	msg, err := s.cfg.Messages.Create(r.Context(), domain.Message{
		Name:  req.Name,
		Email: req.Email,
		Body:  req.Body,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": msg.ID})
}
