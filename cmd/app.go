package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tmdb-tg-bot/internal/bot"
	"tmdb-tg-bot/internal/broadcast"
	"tmdb-tg-bot/internal/catalog"
	"tmdb-tg-bot/internal/config"
	"tmdb-tg-bot/internal/ledger"
	"tmdb-tg-bot/internal/logger"
	"tmdb-tg-bot/internal/session"
	"tmdb-tg-bot/internal/storage"
	"tmdb-tg-bot/internal/tg"
	"tmdb-tg-bot/internal/tmdb"
)

// app holds everything both run modes share.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	store   storage.Store
	tg      *tg.Client
	tmdb    *tmdb.Client
	catalog *catalog.Catalog
	ledger  *ledger.Ledger
	pause   *ledger.Pause
	bot     *bot.Bot
	// loop is nil when no channel is configured.
	loop *broadcast.Loop

	closeLog func() error
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(flagEnvFile)
	if err != nil {
		return nil, err
	}
	closeLog, err := logger.Init(cfg.Env, cfg.Debug, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg, logger.Default())
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	a.closeLog = closeLog
	return a, nil
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, store: store, closeLog: func() error { return nil }}
	a.tg = tg.NewClient(cfg.BotToken, tg.WithTimeout(cfg.HTTPTimeout))
	a.tmdb = tmdb.NewClient(cfg.TMDBAPIKey, tmdb.Options{
		BaseURL:       cfg.TMDBBaseURL,
		ImageBase:     cfg.TMDBImageBase,
		Language:      cfg.TMDBLanguage,
		Timeout:       cfg.HTTPTimeout,
		RatePerSecond: cfg.TMDBRateLimit,
	})
	a.catalog = catalog.New(a.tmdb, store, cfg.CacheTTL, cfg.MaxResults, log)
	a.ledger = ledger.New(store)
	a.pause = ledger.NewPause(store)

	deps := bot.Deps{
		Messenger: a.tg,
		Catalog:   a.catalog,
		Sessions:  session.NewManager(store, cfg.SessionTTL, log),
		Ledger:    a.ledger,
		Pause:     a.pause,
	}
	if cfg.BroadcastEnabled() {
		a.loop = broadcast.New(a.catalog, a.tg, a.ledger, a.pause, store, broadcast.Config{
			Channel:    tg.ChatID(cfg.ChannelID),
			Interval:   cfg.CheckInterval,
			PostDelay:  cfg.PostDelay,
			WeeklyDay:  cfg.Weekday(),
			WeeklyHour: cfg.WeeklyHour,
			ImageURL:   a.tmdb.ImageURL,
		}, log)
		deps.Broadcaster = a.loop
	} else {
		log.Warn("CHANNEL_ID is not set, channel posting is disabled")
	}
	a.bot = bot.New(deps, bot.Config{
		Admins:   cfg.Admins,
		PageSize: cfg.PageSize,
		ImageURL: a.tmdb.ImageURL,
	}, log)
	return a, nil
}

// openStore prefers MongoDB, then a bbolt file, then process memory.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (storage.Store, error) {
	switch {
	case cfg.MongoURL != "":
		cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		s, err := storage.NewMongo(cctx, cfg.MongoURL, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		log.Info("using mongo store", "database", cfg.MongoDatabase)
		return s, nil
	case cfg.BoltPath != "":
		s, err := storage.OpenBolt(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt: %w", err)
		}
		log.Info("using bolt store", "path", cfg.BoltPath)
		return s, nil
	default:
		log.Warn("no MONGO_URL or BOLT_PATH, state will not survive a restart")
		return storage.NewMemory(), nil
	}
}

// background starts the broadcast loop (unless disabled) and the cache
// sweeper. Wait on the group after cancelling ctx.
func (a *app) background(ctx context.Context, broadcastOn bool) *sync.WaitGroup {
	var wg sync.WaitGroup
	if a.loop != nil && broadcastOn {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.loop.Run(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		storage.RunSweeper(ctx, a.store, a.cfg.SweepInterval, a.log)
	}()
	return &wg
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.Close(ctx); err != nil {
		a.log.Warn("store close failed", "error", err)
	}
	_ = a.closeLog()
}
