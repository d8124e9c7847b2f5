package bot

import (
	"context"
	"errors"
	"fmt"

	"tmdb-tg-bot/internal/media"
	"tmdb-tg-bot/internal/menu"
	"tmdb-tg-bot/internal/render"
	"tmdb-tg-bot/internal/session"
	"tmdb-tg-bot/internal/tg"
	"tmdb-tg-bot/internal/tmdb"
)

const (
	expiredText     = "This search has expired, please search again."
	notInResultText = "This title is not part of these results."
	detailsDownText = "⚠️ Could not load details, please try again."
	sendFailedText  = "⚠️ Could not send the reply, please try again."
	noPostersText   = "No posters found."

	maxAltPosters = 5
)

func (b *Bot) handleCallback(ctx context.Context, cq *tg.CallbackQuery) {
	ev, err := menu.ParseEvent(cq.Data)
	if err != nil {
		b.log.Debug("ignoring callback", "data", cq.Data, "error", err)
		b.answer(ctx, cq, "")
		return
	}

	switch ev.Kind {
	case menu.EventNoop:
		b.answer(ctx, cq, "")
	case menu.EventClose:
		if cq.Message != nil {
			if err := b.msg.DeleteMessage(ctx, tg.ChatIDFromInt(cq.Message.Chat.ID), cq.Message.MessageID); err != nil {
				b.log.Warn("close failed", "error", err)
			}
		}
		b.answer(ctx, cq, "")
	case menu.EventPage:
		b.onPage(ctx, cq, ev)
	case menu.EventSelect:
		b.onSelect(ctx, cq, ev)
	}
}

// resolve loads the session behind ev and answers the callback itself when
// the session is gone; ok is false in that case.
func (b *Bot) resolve(ctx context.Context, cq *tg.CallbackQuery, ev menu.Event) (*session.ResultSet, bool) {
	rs, err := b.sessions.Resolve(ctx, ev.SessionID)
	if err != nil {
		if !errors.Is(err, session.ErrExpired) {
			b.log.Warn("session lookup failed", "session", ev.SessionID, "error", err)
		}
		b.answer(ctx, cq, expiredText)
		return nil, false
	}
	if surfaceFor(rs.Kind) != ev.Surface {
		b.log.Debug("callback surface does not match session", "session", rs.ID, "surface", ev.Surface)
		b.answer(ctx, cq, expiredText)
		return nil, false
	}
	return rs, true
}

func (b *Bot) onPage(ctx context.Context, cq *tg.CallbackQuery, ev menu.Event) {
	rs, ok := b.resolve(ctx, cq, ev)
	if !ok {
		return
	}
	if cq.Message == nil {
		b.answer(ctx, cq, "")
		return
	}

	kb, page := menu.ResultsKeyboard(ev.Surface, rs.ID, rs.Items, b.pageSize, ev.Page)
	err := b.msg.EditMessageText(ctx, tg.EditMessageTextRequest{
		ChatID:      tg.ChatIDFromInt(cq.Message.Chat.ID),
		MessageID:   cq.Message.MessageID,
		Text:        render.ResultsHeader(rs.Kind == session.KindPoster, rs.Query, len(rs.Items)),
		ParseMode:   "HTML",
		ReplyMarkup: kb,
	})
	if err != nil {
		b.log.Warn("page edit failed", "session", rs.ID, "page", page.Page, "error", err)
	}
	b.answer(ctx, cq, "")
}

func (b *Bot) onSelect(ctx context.Context, cq *tg.CallbackQuery, ev menu.Event) {
	rs, ok := b.resolve(ctx, cq, ev)
	if !ok {
		return
	}
	it, err := rs.Find(ev.Type, ev.ID)
	if err != nil {
		b.answer(ctx, cq, notInResultText)
		return
	}
	if cq.Message == nil {
		b.answer(ctx, cq, "")
		return
	}
	chat := tg.ChatIDFromInt(cq.Message.Chat.ID)
	menuID := cq.Message.MessageID

	if rs.Kind == session.KindPoster {
		err = b.sendPoster(ctx, chat, menuID, it)
	} else {
		err = b.sendDetail(ctx, chat, menuID, it)
	}

	var upstream *upstreamError
	switch {
	case errors.As(err, &upstream):
		b.log.Warn("lookup failed", "type", it.Type, "id", it.ID, "error", upstream.err)
		b.answer(ctx, cq, detailsDownText)
	case err != nil:
		b.log.Error("selection reply failed", "type", it.Type, "id", it.ID, "error", err)
		b.answer(ctx, cq, sendFailedText)
	default:
		b.answer(ctx, cq, "")
	}
}

type upstreamError struct{ err error }

func (e *upstreamError) Error() string { return e.err.Error() }
func (e *upstreamError) Unwrap() error { return e.err }

// sendDetail and sendPoster reply to the results menu they were picked from.
func (b *Bot) sendDetail(ctx context.Context, chat tg.ChatID, replyTo int, it media.Item) error {
	d, err := b.catalog.Details(ctx, it.Type, it.ID)
	if err != nil {
		return &upstreamError{err}
	}
	caption := render.DetailCaption(d)
	kb := menu.LinksKeyboard(
		[2]string{"TMDB", tmdb.WebURL(it.Type, it.ID)},
		[2]string{"IMDb", tmdb.IMDBURL(d.IMDBID)},
	)

	if photo := b.imageURL(d.PosterPath, "w500"); photo != "" {
		return b.msg.SendPhoto(ctx, tg.SendPhotoRequest{
			ChatID:           chat,
			Photo:            photo,
			Caption:          render.Truncate(caption, render.CaptionLimit),
			ParseMode:        "HTML",
			ReplyMarkup:      kb,
			ReplyToMessageID: replyTo,
		})
	}
	return b.msg.SendMessage(ctx, tg.SendMessageRequest{
		ChatID:           chat,
		Text:             render.Truncate(caption, render.TextLimit),
		ParseMode:        "HTML",
		ReplyMarkup:      kb,
		ReplyToMessageID: replyTo,
	})
}

func (b *Bot) sendPoster(ctx context.Context, chat tg.ChatID, replyTo int, it media.Item) error {
	imgs, err := b.catalog.Images(ctx, it.Type, it.ID)
	if err != nil {
		return &upstreamError{err}
	}
	ranked := tmdb.RankPosters(imgs.Posters)
	if len(ranked) == 0 {
		return b.msg.SendMessage(ctx, tg.SendMessageRequest{ChatID: chat, Text: noPostersText, ReplyToMessageID: replyTo})
	}

	var alts [][2]string
	for i, p := range ranked[1:] {
		if i >= maxAltPosters {
			break
		}
		alts = append(alts, [2]string{fmt.Sprintf("#%d", i+2), b.imageURL(p.FilePath, "original")})
	}
	return b.msg.SendPhoto(ctx, tg.SendPhotoRequest{
		ChatID:           chat,
		Photo:            b.imageURL(ranked[0].FilePath, "w780"),
		Caption:          render.PosterCaption(it),
		ParseMode:        "HTML",
		ReplyMarkup:      menu.LinksKeyboard(alts...),
		ReplyToMessageID: replyTo,
	})
}
