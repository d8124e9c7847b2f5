package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"tmdb-tg-bot/internal/broadcast"
	"tmdb-tg-bot/internal/ledger"
	"tmdb-tg-bot/internal/media"
	"tmdb-tg-bot/internal/menu"
	"tmdb-tg-bot/internal/session"
	"tmdb-tg-bot/internal/storage"
	"tmdb-tg-bot/internal/tg"
	"tmdb-tg-bot/internal/tmdb"
)

const adminID = 42

type fakeMessenger struct {
	mu       sync.Mutex
	messages []tg.SendMessageRequest
	photos   []tg.SendPhotoRequest
	edits    []tg.EditMessageTextRequest
	answers  []string
	deleted  []int
	failSend bool
}

func (f *fakeMessenger) SendMessage(_ context.Context, req tg.SendMessageRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errors.New("send failed")
	}
	f.messages = append(f.messages, req)
	return nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, req tg.SendPhotoRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errors.New("send failed")
	}
	f.photos = append(f.photos, req)
	return nil
}

func (f *fakeMessenger) EditMessageText(_ context.Context, req tg.EditMessageTextRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, req)
	return nil
}

func (f *fakeMessenger) AnswerCallbackQuery(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeMessenger) DeleteMessage(_ context.Context, _ tg.ChatID, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeMessenger) lastText() string {
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1].Text
}

func (f *fakeMessenger) lastAnswer() string {
	if len(f.answers) == 0 {
		return "<none>"
	}
	return f.answers[len(f.answers)-1]
}

type fakeCatalog struct {
	items       []media.Item
	searchErr   error
	detail      *tmdb.Detail
	images      *tmdb.Images
	detailCalls int
}

func (c *fakeCatalog) Search(context.Context, string) ([]media.Item, error) {
	return c.items, c.searchErr
}

func (c *fakeCatalog) Details(_ context.Context, _ media.Type, id int) (*tmdb.Detail, error) {
	c.detailCalls++
	if c.detail == nil {
		return nil, errors.New("upstream down")
	}
	d := *c.detail
	d.ID = id
	return &d, nil
}

func (c *fakeCatalog) Images(context.Context, media.Type, int) (*tmdb.Images, error) {
	if c.images == nil {
		return &tmdb.Images{}, nil
	}
	return c.images, nil
}

type fakeBroadcaster struct {
	report broadcast.Report
	err    error
	weekly int
}

func (f *fakeBroadcaster) PostNew(context.Context) (broadcast.Report, error) { return f.report, f.err }

func (f *fakeBroadcaster) PostWeekly(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.weekly++
	return nil
}

type fixture struct {
	bot      *Bot
	msg      *fakeMessenger
	catalog  *fakeCatalog
	bc       *fakeBroadcaster
	sessions *session.Manager
	ledger   *ledger.Ledger
	pause    *ledger.Pause
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		msg:      &fakeMessenger{},
		catalog:  &fakeCatalog{},
		bc:       &fakeBroadcaster{},
		sessions: session.NewManager(store, time.Hour, log),
		ledger:   ledger.New(store),
		pause:    ledger.NewPause(store),
	}
	f.bot = New(Deps{
		Messenger:   f.msg,
		Catalog:     f.catalog,
		Sessions:    f.sessions,
		Ledger:      f.ledger,
		Pause:       f.pause,
		Broadcaster: f.bc,
	}, Config{Admins: []int64{adminID}, PageSize: 10}, log)
	f.bot.async = func(job func()) { job() }
	return f
}

func items(n int) []media.Item {
	out := make([]media.Item, n)
	for i := range out {
		out[i] = media.Item{ID: i + 1, Type: media.Movie, Title: fmt.Sprintf("Title %d", i+1), Year: "2020", Rating: 6.5}
	}
	return out
}

func command(from int64, text string) tg.Update {
	return tg.Update{Message: &tg.Message{
		MessageID: 1,
		Chat:      tg.Chat{ID: from, Type: "private"},
		From:      &tg.User{ID: from},
		Text:      text,
	}}
}

func press(from int64, data string) tg.Update {
	return tg.Update{CallbackQuery: &tg.CallbackQuery{
		ID:      "cb",
		From:    tg.User{ID: from},
		Data:    data,
		Message: &tg.Message{MessageID: 77, Chat: tg.Chat{ID: from}},
	}}
}

// sessionFromMenu digs the session id out of the first item button.
func sessionFromMenu(t *testing.T, kb *tg.InlineKeyboardMarkup) string {
	t.Helper()
	if kb == nil || len(kb.InlineKeyboard) == 0 {
		t.Fatal("no keyboard")
	}
	ev, err := menu.ParseEvent(kb.InlineKeyboard[0][0].CallbackData)
	if err != nil {
		t.Fatalf("parse first button: %v", err)
	}
	return ev.SessionID
}

func TestSearchSendsFirstPage(t *testing.T) {
	f := newFixture(t)
	f.catalog.items = items(25)

	f.bot.HandleUpdate(context.Background(), command(7, "/search dune"))

	if len(f.msg.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(f.msg.messages))
	}
	m := f.msg.messages[0]
	if m.ChatID != "7" || !strings.Contains(m.Text, "(25 found)") {
		t.Errorf("unexpected message %+v", m)
	}
	if m.ReplyToMessageID != 1 {
		t.Errorf("menu should reply to the command, got reply_to %d", m.ReplyToMessageID)
	}
	rows := m.ReplyMarkup.InlineKeyboard
	// ten items, navigation, close
	if len(rows) != 12 {
		t.Fatalf("expected 12 rows, got %d", len(rows))
	}
	nav := rows[10]
	if len(nav) != 2 || nav[0].Text != "1/3" || nav[1].Text != ">>>" {
		t.Errorf("unexpected nav row %+v", nav)
	}
}

func TestSearchUsageAndEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, command(7, "/search   "))
	if !strings.HasPrefix(f.msg.lastText(), "Usage: /search") {
		t.Errorf("reply = %q", f.msg.lastText())
	}

	f.bot.HandleUpdate(ctx, command(7, "/search nothing"))
	if f.msg.lastText() != noResultsText {
		t.Errorf("reply = %q", f.msg.lastText())
	}

	f.catalog.searchErr = errors.New("tmdb down")
	f.bot.HandleUpdate(ctx, command(7, "/search dune"))
	if f.msg.lastText() != upstreamDownText {
		t.Errorf("reply = %q", f.msg.lastText())
	}
}

func TestPageNavigationEditsSameSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.items = items(25)
	f.bot.HandleUpdate(ctx, command(7, "/search dune"))
	sid := sessionFromMenu(t, f.msg.messages[0].ReplyMarkup)

	f.bot.HandleUpdate(ctx, press(7, menu.PageEvent(menu.SurfaceSearch, sid, 2).Encode()))

	if len(f.msg.edits) != 1 {
		t.Fatalf("expected one edit, got %d", len(f.msg.edits))
	}
	e := f.msg.edits[0]
	if e.MessageID != 77 {
		t.Errorf("edited message %d", e.MessageID)
	}
	rows := e.ReplyMarkup.InlineKeyboard
	// five items, navigation, close
	if len(rows) != 7 || rows[0][0].Text != "🎬 Title 21 (2020) ⭐ 6.5" {
		t.Errorf("unexpected last page: %+v", rows)
	}
	if got := sessionFromMenu(t, e.ReplyMarkup); got != sid {
		t.Errorf("navigation switched session %s -> %s", sid, got)
	}

	// Out of range pages clamp instead of failing.
	f.bot.HandleUpdate(ctx, press(7, menu.PageEvent(menu.SurfaceSearch, sid, 99).Encode()))
	if len(f.msg.edits) != 2 || f.msg.edits[1].ReplyMarkup.InlineKeyboard[0][0].Text != "🎬 Title 21 (2020) ⭐ 6.5" {
		t.Error("page 99 should clamp to the last page")
	}
	if f.catalog.detailCalls != 0 {
		t.Error("navigation must not hit the upstream")
	}
}

func TestExpiredSessionAsksToSearchAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.items = items(3)
	f.bot.HandleUpdate(ctx, command(7, "/search dune"))
	sid := sessionFromMenu(t, f.msg.messages[0].ReplyMarkup)
	_ = f.sessions.Evict(ctx, sid)

	f.bot.HandleUpdate(ctx, press(7, menu.PageEvent(menu.SurfaceSearch, sid, 1).Encode()))
	if f.msg.lastAnswer() != expiredText || len(f.msg.edits) != 0 {
		t.Errorf("answer = %q, edits = %d", f.msg.lastAnswer(), len(f.msg.edits))
	}

	f.bot.HandleUpdate(ctx, press(7, menu.SelectEvent(menu.SurfaceSearch, sid, media.Movie, 1).Encode()))
	if f.msg.lastAnswer() != expiredText || f.catalog.detailCalls != 0 {
		t.Errorf("select on expired session: answer = %q", f.msg.lastAnswer())
	}
}

func TestSelectSendsDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.items = items(3)
	f.catalog.detail = &tmdb.Detail{Title: "Title 2", PosterPath: "/p.jpg", VoteAverage: 7.1, IMDBID: "tt0000002"}
	f.bot.HandleUpdate(ctx, command(7, "/search title"))
	sid := sessionFromMenu(t, f.msg.messages[0].ReplyMarkup)

	f.bot.HandleUpdate(ctx, press(7, menu.SelectEvent(menu.SurfaceSearch, sid, media.Movie, 2).Encode()))

	if len(f.msg.photos) != 1 {
		t.Fatalf("expected a photo reply, got %d", len(f.msg.photos))
	}
	p := f.msg.photos[0]
	if !strings.HasSuffix(p.Photo, "/w500/p.jpg") || !strings.Contains(p.Caption, "<b>Title 2</b>") {
		t.Errorf("unexpected photo %+v", p)
	}
	if p.ReplyToMessageID != 77 {
		t.Errorf("detail should reply to the menu, got reply_to %d", p.ReplyToMessageID)
	}
	row := p.ReplyMarkup.InlineKeyboard[0]
	if len(row) != 2 || row[0].URL != "https://www.themoviedb.org/movie/2" || !strings.Contains(row[1].URL, "tt0000002") {
		t.Errorf("unexpected links %+v", row)
	}
	if f.msg.lastAnswer() != "" {
		t.Errorf("answer = %q", f.msg.lastAnswer())
	}
}

func TestSelectRejectsForeignItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.items = items(3)
	f.bot.HandleUpdate(ctx, command(7, "/search title"))
	sid := sessionFromMenu(t, f.msg.messages[0].ReplyMarkup)

	f.bot.HandleUpdate(ctx, press(7, menu.SelectEvent(menu.SurfaceSearch, sid, media.Movie, 999).Encode()))
	if f.msg.lastAnswer() != notInResultText || f.catalog.detailCalls != 0 {
		t.Errorf("answer = %q, detail calls = %d", f.msg.lastAnswer(), f.catalog.detailCalls)
	}

	// Right session id, wrong surface.
	f.bot.HandleUpdate(ctx, press(7, menu.SelectEvent(menu.SurfacePoster, sid, media.Movie, 1).Encode()))
	if f.msg.lastAnswer() != expiredText {
		t.Errorf("answer = %q", f.msg.lastAnswer())
	}
}

func TestSelectReportsUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.items = items(1)
	f.bot.HandleUpdate(ctx, command(7, "/search title"))
	sid := sessionFromMenu(t, f.msg.messages[0].ReplyMarkup)

	f.bot.HandleUpdate(ctx, press(7, menu.SelectEvent(menu.SurfaceSearch, sid, media.Movie, 1).Encode()))
	if f.msg.lastAnswer() != detailsDownText {
		t.Errorf("answer = %q", f.msg.lastAnswer())
	}
}

func TestPosterSelectPicksBestPoster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.items = items(2)
	f.catalog.images = &tmdb.Images{Posters: []tmdb.Image{
		{FilePath: "/low.jpg", VoteAverage: 4},
		{FilePath: "/best.jpg", VoteAverage: 6},
		{FilePath: "/mid.jpg", VoteAverage: 5},
	}}
	f.bot.HandleUpdate(ctx, command(7, "/poster title"))
	sid := sessionFromMenu(t, f.msg.messages[0].ReplyMarkup)

	f.bot.HandleUpdate(ctx, press(7, menu.SelectEvent(menu.SurfacePoster, sid, media.Movie, 1).Encode()))

	if len(f.msg.photos) != 1 {
		t.Fatalf("expected a poster, got %d photos", len(f.msg.photos))
	}
	p := f.msg.photos[0]
	if !strings.HasSuffix(p.Photo, "/w780/best.jpg") {
		t.Errorf("photo = %s", p.Photo)
	}
	alts := p.ReplyMarkup.InlineKeyboard[0]
	if len(alts) != 2 || !strings.HasSuffix(alts[0].URL, "/mid.jpg") {
		t.Errorf("unexpected alternatives %+v", alts)
	}
}

func TestPosterSelectWithoutPosters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.items = items(1)
	f.bot.HandleUpdate(ctx, command(7, "/poster title"))
	sid := sessionFromMenu(t, f.msg.messages[0].ReplyMarkup)

	f.bot.HandleUpdate(ctx, press(7, menu.SelectEvent(menu.SurfacePoster, sid, media.Movie, 1).Encode()))
	if f.msg.lastText() != noPostersText {
		t.Errorf("reply = %q", f.msg.lastText())
	}
}

func TestCloseAndNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, press(7, "noop"))
	f.bot.HandleUpdate(ctx, press(7, "close"))
	f.bot.HandleUpdate(ctx, press(7, "garbage|data"))

	if len(f.msg.deleted) != 1 || f.msg.deleted[0] != 77 {
		t.Errorf("deleted = %v", f.msg.deleted)
	}
	if len(f.msg.answers) != 3 {
		t.Errorf("every press must be answered, got %d answers", len(f.msg.answers))
	}
}

func TestOperatorCommandsRequireAllowList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, cmd := range []string{"/pause", "/resume", "/weekly", "/checknew", "/status"} {
		f.bot.HandleUpdate(ctx, command(7, cmd))
		if f.msg.lastText() != notAuthorizedText {
			t.Errorf("%s by stranger: reply = %q", cmd, f.msg.lastText())
		}
	}
	if paused, _ := f.pause.Paused(ctx); paused {
		t.Error("stranger paused the bot")
	}
	if f.bc.weekly != 0 {
		t.Error("stranger triggered the digest")
	}
}

func TestPauseResumeAndStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.ledger.MarkPosted(ctx, "Movie A")

	f.bot.HandleUpdate(ctx, command(adminID, "/pause"))
	if paused, _ := f.pause.Paused(ctx); !paused {
		t.Fatal("expected paused")
	}
	f.bot.HandleUpdate(ctx, command(adminID, "/status"))
	want := "📊 Bot is running.\nPosted items: 1\nBroadcasting is paused."
	if f.msg.lastText() != want {
		t.Errorf("status = %q, want %q", f.msg.lastText(), want)
	}

	f.bot.HandleUpdate(ctx, command(adminID, "/resume"))
	if paused, _ := f.pause.Paused(ctx); paused {
		t.Fatal("expected resumed")
	}
}

func TestManualTriggers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bc.report = broadcast.Report{Posted: 2}

	f.bot.HandleUpdate(ctx, command(adminID, "/checknew"))
	n := len(f.msg.messages)
	if n < 2 || f.msg.messages[n-2].Text != "Checking for new releases…" || f.msg.lastText() != "✅ Posted 2 new item(s)." {
		t.Errorf("unexpected replies %+v", f.msg.messages)
	}

	f.bot.HandleUpdate(ctx, command(adminID, "/weekly"))
	if f.bc.weekly != 1 || f.msg.lastText() != "✅ Weekly digest posted." {
		t.Errorf("weekly = %d, reply = %q", f.bc.weekly, f.msg.lastText())
	}

	f.bc.err = broadcast.ErrPaused
	f.bot.HandleUpdate(ctx, command(adminID, "/checknew"))
	if !strings.Contains(f.msg.lastText(), "/resume") {
		t.Errorf("reply = %q", f.msg.lastText())
	}
}

func TestStartShowsOperatorHelpToAdmins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, command(7, "/start"))
	if strings.Contains(f.msg.lastText(), "/pause") {
		t.Error("strangers should not see operator commands")
	}
	f.bot.HandleUpdate(ctx, command(adminID, "/help@TmdbBot"))
	if !strings.Contains(f.msg.lastText(), "/pause") {
		t.Error("admins should see operator commands")
	}
}

func TestSelectReportsSendFailureOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.items = items(1)
	f.catalog.detail = &tmdb.Detail{Title: "Title 1"}
	f.bot.HandleUpdate(ctx, command(7, "/search title"))
	sid := sessionFromMenu(t, f.msg.messages[0].ReplyMarkup)

	f.msg.failSend = true
	f.bot.HandleUpdate(ctx, press(7, menu.SelectEvent(menu.SurfaceSearch, sid, media.Movie, 1).Encode()))
	if f.msg.lastAnswer() != sendFailedText || len(f.msg.answers) != 1 {
		t.Errorf("answers = %q", f.msg.answers)
	}
}
