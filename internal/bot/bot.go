// Package bot turns Telegram updates into replies: user searches and poster
// lookups, button presses on result menus, and operator commands.
package bot

import (
	"context"
	"log/slog"

	"tmdb-tg-bot/internal/broadcast"
	"tmdb-tg-bot/internal/ledger"
	"tmdb-tg-bot/internal/media"
	"tmdb-tg-bot/internal/session"
	"tmdb-tg-bot/internal/tg"
	"tmdb-tg-bot/internal/tmdb"
)

type Messenger interface {
	SendMessage(ctx context.Context, req tg.SendMessageRequest) error
	SendPhoto(ctx context.Context, req tg.SendPhotoRequest) error
	EditMessageText(ctx context.Context, req tg.EditMessageTextRequest) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error
	DeleteMessage(ctx context.Context, chatID tg.ChatID, messageID int) error
}

type Catalog interface {
	Search(ctx context.Context, query string) ([]media.Item, error)
	Details(ctx context.Context, t media.Type, id int) (*tmdb.Detail, error)
	Images(ctx context.Context, t media.Type, id int) (*tmdb.Images, error)
}

type Broadcaster interface {
	PostNew(ctx context.Context) (broadcast.Report, error)
	PostWeekly(ctx context.Context) error
}

type Deps struct {
	Messenger   Messenger
	Catalog     Catalog
	Sessions    *session.Manager
	Ledger      *ledger.Ledger
	Pause       *ledger.Pause
	Broadcaster Broadcaster
}

type Config struct {
	// Admins may use the operator commands.
	Admins   []int64
	PageSize int
	ImageURL func(path string, size string) string
}

type Bot struct {
	msg      Messenger
	catalog  Catalog
	sessions *session.Manager
	ledger   *ledger.Ledger
	pause    *ledger.Pause
	bc       Broadcaster

	admins   map[int64]struct{}
	pageSize int
	imageURL func(path string, size string) string
	log      *slog.Logger

	// async runs long operator jobs off the update path.
	async func(func())
}

func New(d Deps, cfg Config, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.ImageURL == nil {
		cfg.ImageURL = tmdb.NewClient("", tmdb.Options{}).ImageURL
	}
	admins := make(map[int64]struct{}, len(cfg.Admins))
	for _, id := range cfg.Admins {
		admins[id] = struct{}{}
	}
	return &Bot{
		msg:      d.Messenger,
		catalog:  d.Catalog,
		sessions: d.Sessions,
		ledger:   d.Ledger,
		pause:    d.Pause,
		bc:       d.Broadcaster,
		admins:   admins,
		pageSize: cfg.PageSize,
		imageURL: cfg.ImageURL,
		log:      log.With("component", "bot"),
		async:    func(f func()) { go f() },
	}
}

// HandleUpdate processes one update. Failures are logged; nothing is returned
// because Telegram must not redeliver an update we already acted on.
func (b *Bot) HandleUpdate(ctx context.Context, upd tg.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("update handler panicked", "update_id", upd.UpdateID, "panic", r)
		}
	}()

	switch {
	case upd.CallbackQuery != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		b.handleMessage(ctx, upd.Message)
	}
}

func (b *Bot) isAdmin(u *tg.User) bool {
	if u == nil {
		return false
	}
	_, ok := b.admins[u.ID]
	return ok
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	err := b.msg.SendMessage(ctx, tg.SendMessageRequest{
		ChatID:                tg.ChatIDFromInt(chatID),
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		b.log.Error("reply failed", "chat", chatID, "error", err)
	}
}

func (b *Bot) answer(ctx context.Context, cq *tg.CallbackQuery, text string) {
	if err := b.msg.AnswerCallbackQuery(ctx, cq.ID, text); err != nil {
		b.log.Warn("callback answer failed", "callback", cq.ID, "error", err)
	}
}
