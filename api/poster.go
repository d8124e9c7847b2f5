package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"tmdb-tg-bot/internal/media"
	"tmdb-tg-bot/internal/tmdb"
)

// poster redirects to the highest rated poster of a title:
// GET /api/poster?type=movie&id=438631[&size=w500]
func (s *Server) poster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	t, ok := media.ParseType(strings.TrimSpace(q.Get("type")))
	id, err := strconv.Atoi(strings.TrimSpace(q.Get("id")))
	if !ok || err != nil || id <= 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	size := strings.TrimSpace(q.Get("size"))
	if size == "" {
		size = "original"
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.Timeout)
	defer cancel()

	imgs, err := s.posters.Images(ctx, t, id)
	if err != nil {
		s.log.Warn("poster lookup failed", "type", t, "id", id, "error", err)
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	ranked := tmdb.RankPosters(imgs.Posters)
	if len(ranked) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	http.Redirect(w, r, s.opts.ImageURL(ranked[0].FilePath, size), http.StatusFound)
}
