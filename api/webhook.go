package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"tmdb-tg-bot/internal/ledger"
	"tmdb-tg-bot/internal/media"
	"tmdb-tg-bot/internal/tg"
	"tmdb-tg-bot/internal/tmdb"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd tg.Update)
}

type PosterSource interface {
	Images(ctx context.Context, t media.Type, id int) (*tmdb.Images, error)
}

type Options struct {
	// Secret, when set, must match the secret header on every webhook call.
	Secret   string
	Timeout  time.Duration
	ImageURL func(path string, size string) string
}

// Server exposes the Telegram webhook plus a few read-only endpoints.
type Server struct {
	bot     UpdateHandler
	posters PosterSource
	ledger  *ledger.Ledger
	pause   *ledger.Pause
	opts    Options
	log     *slog.Logger
}

func NewServer(bot UpdateHandler, posters PosterSource, l *ledger.Ledger, p *ledger.Pause, opts Options, log *slog.Logger) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = 9 * time.Second
	}
	if opts.ImageURL == nil {
		opts.ImageURL = tmdb.NewClient("", tmdb.Options{}).ImageURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{bot: bot, posters: posters, ledger: l, pause: p, opts: opts, log: log.With("component", "http")}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/webhook", s.webhook)
	mux.HandleFunc("/api/poster", s.poster)
	mux.HandleFunc("/api/status", s.status)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.opts.Secret != "" {
		got := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.Secret)) != 1 {
			s.log.Warn("webhook call with bad secret", "remote", r.RemoteAddr)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 2<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var upd tg.Update
	if err := json.Unmarshal(body, &upd); err != nil {
		s.log.Debug("undecodable update", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.Timeout)
	defer cancel()
	s.bot.HandleUpdate(ctx, upd)
	w.WriteHeader(http.StatusOK)
}

type statusResponse struct {
	Paused bool `json:"paused"`
	Posted int  `json:"posted"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	posted, err := s.ledger.Count(r.Context())
	if err != nil {
		s.log.Error("status: ledger count failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	paused, err := s.pause.Paused(r.Context())
	if err != nil {
		s.log.Error("status: pause flag unreadable", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, statusResponse{Paused: paused, Posted: posted})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}
