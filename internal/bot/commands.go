package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"tmdb-tg-bot/internal/broadcast"
	"tmdb-tg-bot/internal/menu"
	"tmdb-tg-bot/internal/render"
	"tmdb-tg-bot/internal/session"
	"tmdb-tg-bot/internal/tg"
)

const (
	welcomeText = "👋 <b>Welcome!</b>\n\n" +
		"I post trending movies and series to the channel and can look titles up for you.\n\n" +
		"/search &lt;title&gt; - find a movie or series\n" +
		"/poster &lt;title&gt; - get a poster in high resolution"
	adminHelpText = "\n\nOperator commands:\n" +
		"/pause - stop posting to the channel\n" +
		"/resume - resume posting\n" +
		"/weekly - post the weekly digest now\n" +
		"/checknew - check for new releases now\n" +
		"/status - show the bot state"

	notAuthorizedText = "❌ You are not authorized."
	upstreamDownText  = "⚠️ Search is unavailable right now, please try again later."
	noResultsText     = "No results found."
)

// operatorCommands are refused for anyone outside the allow-list.
var operatorCommands = map[string]bool{
	"pause": true, "resume": true, "weekly": true, "checknew": true, "status": true,
}

func (b *Bot) handleMessage(ctx context.Context, m *tg.Message) {
	name, args, ok := m.Command()
	if !ok {
		return
	}
	if operatorCommands[name] && !b.isAdmin(m.From) {
		b.log.Debug("operator command refused", "command", name, "chat", m.Chat.ID)
		b.reply(ctx, m.Chat.ID, notAuthorizedText)
		return
	}

	switch name {
	case "start", "help":
		text := welcomeText
		if b.isAdmin(m.From) {
			text += adminHelpText
		}
		b.reply(ctx, m.Chat.ID, text)
	case "search":
		b.startSession(ctx, m, session.KindSearch, args)
	case "poster":
		b.startSession(ctx, m, session.KindPoster, args)
	case "pause":
		b.setPaused(ctx, m.Chat.ID, true)
	case "resume":
		b.setPaused(ctx, m.Chat.ID, false)
	case "weekly", "checknew":
		if b.bc == nil {
			b.reply(ctx, m.Chat.ID, "Broadcasting is not configured: set CHANNEL_ID.")
			return
		}
		b.trigger(ctx, m.Chat.ID, name)
	case "status":
		b.status(ctx, m.Chat.ID)
	default:
		b.log.Debug("unknown command", "command", name)
	}
}

func (b *Bot) trigger(ctx context.Context, chatID int64, name string) {
	switch name {
	case "weekly":
		b.reply(ctx, chatID, "Posting weekly trending…")
		b.runJob(ctx, chatID, "weekly", func(ctx context.Context) string {
			if err := b.bc.PostWeekly(ctx); err != nil {
				return jobError(err)
			}
			return "✅ Weekly digest posted."
		})
	case "checknew":
		b.reply(ctx, chatID, "Checking for new releases…")
		b.runJob(ctx, chatID, "checknew", func(ctx context.Context) string {
			rep, err := b.bc.PostNew(ctx)
			if err != nil {
				return jobError(err)
			}
			text := fmt.Sprintf("✅ Posted %d new item(s).", rep.Posted)
			if rep.Failed > 0 {
				text += fmt.Sprintf(" %d failed and will be retried.", rep.Failed)
			}
			if rep.Stopped {
				text += " Stopped early: broadcasting was paused."
			}
			return text
		})
	}
}

func (b *Bot) startSession(ctx context.Context, m *tg.Message, kind session.Kind, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		b.reply(ctx, m.Chat.ID, fmt.Sprintf("Usage: /%s &lt;title&gt;", kind))
		return
	}

	items, err := b.catalog.Search(ctx, query)
	if err != nil {
		b.log.Warn("search failed", "query", query, "error", err)
		b.reply(ctx, m.Chat.ID, upstreamDownText)
		return
	}
	if len(items) == 0 {
		b.reply(ctx, m.Chat.ID, noResultsText)
		return
	}

	rs, err := b.sessions.Create(ctx, kind, query, items)
	if err != nil {
		b.log.Error("session create failed", "error", err)
		b.reply(ctx, m.Chat.ID, upstreamDownText)
		return
	}

	surface := surfaceFor(kind)
	kb, _ := menu.ResultsKeyboard(surface, rs.ID, rs.Items, b.pageSize, 0)
	err = b.msg.SendMessage(ctx, tg.SendMessageRequest{
		ChatID:           tg.ChatIDFromInt(m.Chat.ID),
		Text:             render.ResultsHeader(kind == session.KindPoster, query, len(rs.Items)),
		ParseMode:        "HTML",
		ReplyMarkup:      kb,
		ReplyToMessageID: m.MessageID,
	})
	if err != nil {
		b.log.Error("results menu not sent", "session", rs.ID, "error", err)
	}
}

func surfaceFor(k session.Kind) menu.Surface {
	if k == session.KindPoster {
		return menu.SurfacePoster
	}
	return menu.SurfaceSearch
}

func (b *Bot) setPaused(ctx context.Context, chatID int64, paused bool) {
	if err := b.pause.SetPaused(ctx, paused); err != nil {
		b.log.Error("pause flag not saved", "paused", paused, "error", err)
		b.reply(ctx, chatID, "⚠️ Could not change the broadcast state.")
		return
	}
	b.log.Info("broadcast state changed", "paused", paused)
	if paused {
		b.reply(ctx, chatID, "⏸ Broadcasting paused.")
		return
	}
	b.reply(ctx, chatID, "▶️ Broadcasting resumed.")
}

func (b *Bot) status(ctx context.Context, chatID int64) {
	posted, err := b.ledger.Count(ctx)
	if err != nil {
		b.log.Warn("ledger count failed", "error", err)
	}
	text := fmt.Sprintf("📊 Bot is running.\nPosted items: %d", posted)
	if paused, err := b.pause.Paused(ctx); err == nil && paused {
		text += "\nBroadcasting is paused."
	}
	b.reply(ctx, chatID, text)
}

// runJob executes an operator job detached from the update context and
// reports its outcome to the operator's chat.
func (b *Bot) runJob(ctx context.Context, chatID int64, name string, job func(context.Context) string) {
	jobCtx := context.WithoutCancel(ctx)
	b.async(func() {
		defer func() {
			if r := recover(); r != nil {
				b.log.Error("operator job panicked", "job", name, "panic", r)
			}
		}()
		b.reply(jobCtx, chatID, job(jobCtx))
	})
}

func jobError(err error) string {
	switch {
	case errors.Is(err, broadcast.ErrPaused):
		return "⏸ Broadcasting is paused. Use /resume first."
	case errors.Is(err, broadcast.ErrBusy):
		return "⏳ A broadcast run is already in progress."
	default:
		return "⚠️ Failed: " + html.EscapeString(render.Truncate(err.Error(), 300))
	}
}
