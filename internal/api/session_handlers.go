package api

import "net/http"

// logout отзывает текущий токен и освобождает синхронизатор корзины
// пользователя. Снимок пересоздаётся при следующем входе.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Auth.Revoke(r.Context(), bearerToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	s.cfg.Carts.Drop(userIDFromContext(r.Context()))

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
