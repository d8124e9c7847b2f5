// Package broadcast posts newly trending titles, and a weekly digest, to
// the configured channel.
//
// Delivery is at-most-once per title on success and retried on the next
// cycle on failure. A crash between a successful send and the ledger write
// can repost that title once after restart.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tmdb-tg-bot/internal/ledger"
	"tmdb-tg-bot/internal/media"
	"tmdb-tg-bot/internal/render"
	"tmdb-tg-bot/internal/storage"
	"tmdb-tg-bot/internal/tg"
	"tmdb-tg-bot/internal/tmdb"
)

var (
	ErrPaused = errors.New("broadcasting is paused")
	ErrBusy   = errors.New("a broadcast run is already in progress")
)

type Gateway interface {
	Trending(ctx context.Context, mediaType string, window string) ([]tmdb.Result, error)
	Details(ctx context.Context, t media.Type, id int) (*tmdb.Detail, error)
}

type Sender interface {
	SendPhoto(ctx context.Context, req tg.SendPhotoRequest) error
	SendMessage(ctx context.Context, req tg.SendMessageRequest) error
}

type Config struct {
	Channel    tg.ChatID
	Interval   time.Duration
	PostDelay  time.Duration
	WeeklyDay  time.Weekday
	WeeklyHour int
	// ImageURL turns a TMDB image path into a full URL.
	ImageURL func(path string, size string) string
}

type Loop struct {
	gw     Gateway
	send   Sender
	ledger *ledger.Ledger
	pause  *ledger.Pause
	store  storage.Store
	cfg    Config
	log    *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// Scheduled and operator-triggered runs never overlap.
	running sync.Mutex
}

func New(gw Gateway, send Sender, l *ledger.Ledger, p *ledger.Pause, store storage.Store, cfg Config, log *slog.Logger) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.ImageURL == nil {
		cfg.ImageURL = tmdb.NewClient("", tmdb.Options{}).ImageURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		gw: gw, send: send, ledger: l, pause: p, store: store, cfg: cfg,
		log:   log.With("component", "broadcast"),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes a cycle immediately and then every Interval until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	l.log.Info("broadcast loop started", "interval", l.cfg.Interval, "channel", l.cfg.Channel)
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()
	for {
		l.Cycle(ctx)
		select {
		case <-ctx.Done():
			l.log.Info("broadcast loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// Cycle runs the digest phase (when due) and the new-item phase. It never
// returns an error: failures are logged and retried next cycle.
func (l *Loop) Cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("broadcast cycle panicked", "panic", r)
		}
	}()

	if l.digestDue() {
		switch err := l.scheduledDigest(ctx); {
		case errors.Is(err, ErrPaused):
		case errors.Is(err, ErrBusy):
			l.log.Info("another run in progress, digest deferred")
		case err != nil:
			l.log.Error("weekly digest failed", "error", err)
		}
	}

	rep, err := l.PostNew(ctx)
	switch {
	case errors.Is(err, ErrPaused):
		l.log.Info("broadcast paused, skipping cycle")
	case errors.Is(err, ErrBusy):
		l.log.Info("previous run still in progress, skipping cycle")
	case err != nil:
		l.log.Error("new-item check failed", "error", err)
	default:
		l.log.Info("new-item check done", "fetched", rep.Fetched, "new", rep.New, "posted", rep.Posted, "failed", rep.Failed, "stopped", rep.Stopped)
	}
}

func (l *Loop) digestDue() bool {
	now := l.now().UTC()
	return now.Weekday() == l.cfg.WeeklyDay && now.Hour() == l.cfg.WeeklyHour
}

func digestKey(t time.Time) string {
	y, w := t.UTC().ISOWeek()
	return fmt.Sprintf("digest:%d-W%02d", y, w)
}

// tryRun takes the lock shared by every run that posts to the channel.
func (l *Loop) tryRun() (release func(), ok bool) {
	if !l.running.TryLock() {
		return nil, false
	}
	return l.running.Unlock, true
}

func (l *Loop) scheduledDigest(ctx context.Context) error {
	release, ok := l.tryRun()
	if !ok {
		return ErrBusy
	}
	defer release()

	if _, err := l.store.Get(ctx, digestKey(l.now())); err == nil {
		return nil
	}
	return l.postWeekly(ctx)
}

// PostWeekly sends the top of this week's trending list as one message and
// marks the week as done, so the scheduled digest does not repeat it.
func (l *Loop) PostWeekly(ctx context.Context) error {
	release, ok := l.tryRun()
	if !ok {
		return ErrBusy
	}
	defer release()
	return l.postWeekly(ctx)
}

func (l *Loop) postWeekly(ctx context.Context) error {
	if err := l.checkPaused(ctx); err != nil {
		return err
	}
	weekly, err := l.gw.Trending(ctx, "all", "week")
	if err != nil {
		return fmt.Errorf("fetch weekly trending: %w", err)
	}
	if len(weekly) == 0 {
		l.log.Info("weekly trending list is empty")
		return nil
	}
	err = l.send.SendMessage(ctx, tg.SendMessageRequest{
		ChatID:                l.cfg.Channel,
		Text:                  render.WeeklyDigest(weekly),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("send weekly digest: %w", err)
	}
	l.log.Info("weekly digest posted", "titles", min(len(weekly), 10))

	key := digestKey(l.now())
	if err := l.store.Put(ctx, key, []byte("1"), 8*24*time.Hour); err != nil {
		l.log.Warn("digest marker not stored", "key", key, "error", err)
	}
	return nil
}

type Report struct {
	Fetched int
	New     int
	Posted  int
	Failed  int
	// Stopped is set when a pause interrupted the batch.
	Stopped bool
}

// PostNew posts every trending title not yet in the ledger, in gateway order.
func (l *Loop) PostNew(ctx context.Context) (Report, error) {
	var rep Report
	release, ok := l.tryRun()
	if !ok {
		return rep, ErrBusy
	}
	defer release()

	if err := l.checkPaused(ctx); err != nil {
		return rep, err
	}

	trending, err := l.fetchTrending(ctx)
	if err != nil {
		return rep, err
	}
	rep.Fetched = len(trending)

	fresh := make([]tmdb.Result, 0, len(trending))
	for _, r := range trending {
		title := r.DisplayTitle()
		if title == "" {
			continue
		}
		posted, err := l.ledger.HasPosted(ctx, title)
		if err != nil {
			return rep, err
		}
		if !posted {
			fresh = append(fresh, r)
		}
	}
	rep.New = len(fresh)
	if len(fresh) == 0 {
		l.log.Info("no new items found")
		return rep, nil
	}

	for i, r := range fresh {
		if paused, err := l.pause.Paused(ctx); err != nil || paused {
			if err != nil {
				l.log.Warn("pause flag unreadable, stopping batch", "error", err)
			}
			rep.Stopped = true
			break
		}
		// Trending can list a movie and a series under the same title.
		posted, err := l.ledger.HasPosted(ctx, r.DisplayTitle())
		if err != nil {
			rep.Failed++
			l.log.Warn("ledger unreadable, skipping title", "title", r.DisplayTitle(), "error", err)
			continue
		}
		if posted {
			continue
		}

		if err := l.postOne(ctx, r); err != nil {
			rep.Failed++
			l.log.Error("post failed", "title", r.DisplayTitle(), "error", err)
		} else {
			rep.Posted++
		}

		if i < len(fresh)-1 {
			if err := l.sleep(ctx, l.cfg.PostDelay); err != nil {
				return rep, err
			}
		}
	}
	return rep, nil
}

func (l *Loop) fetchTrending(ctx context.Context) ([]tmdb.Result, error) {
	var (
		out  []tmdb.Result
		errs []error
	)
	for _, mt := range []string{"movie", "tv"} {
		res, err := l.gw.Trending(ctx, mt, "day")
		if err != nil {
			l.log.Warn("trending fetch failed", "media_type", mt, "error", err)
			errs = append(errs, err)
			continue
		}
		out = append(out, res...)
	}
	if len(errs) == 2 {
		return nil, fmt.Errorf("fetch trending: %w", errors.Join(errs...))
	}
	return out, nil
}

func (l *Loop) postOne(ctx context.Context, r tmdb.Result) error {
	t, ok := media.ParseType(r.MediaType)
	if !ok {
		t = media.Movie
	}
	title := r.DisplayTitle()

	detail, err := l.gw.Details(ctx, t, r.ID)
	if err != nil {
		l.log.Warn("detail lookup failed, posting without it", "title", title, "error", err)
		detail = nil
	}
	caption := render.Truncate(render.TrendingCaption(r, detail, t), render.CaptionLimit)

	image := r.BackdropPath
	if image == "" {
		image = r.PosterPath
	}
	if url := l.cfg.ImageURL(image, "w780"); url != "" {
		err = l.send.SendPhoto(ctx, tg.SendPhotoRequest{ChatID: l.cfg.Channel, Photo: url, Caption: caption, ParseMode: "HTML"})
	} else {
		err = l.send.SendMessage(ctx, tg.SendMessageRequest{ChatID: l.cfg.Channel, Text: caption, ParseMode: "HTML"})
	}
	if err != nil {
		return err
	}

	if err := l.ledger.MarkPosted(ctx, title); err != nil {
		// The send went out; the title may be reposted next cycle.
		l.log.Error("ledger update failed after send", "title", title, "error", err)
		return nil
	}
	l.log.Info("posted", "title", title)
	return nil
}

func (l *Loop) checkPaused(ctx context.Context) error {
	paused, err := l.pause.Paused(ctx)
	if err != nil {
		return err
	}
	if paused {
		return ErrPaused
	}
	return nil
}
