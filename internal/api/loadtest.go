package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/pulse/internal/store"
)

func (s *Server) handleGetLoadTest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lt, err := s.store.GetLoadTest(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "load test not found")
		return
	}
	if err != nil {
		s.logger.Error("get load test", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get load test")
		return
	}

	s.writeJSON(w, http.StatusOK, lt)
}
