package menu

import (
	"fmt"

	"tmdb-tg-bot/internal/media"
	"tmdb-tg-bot/internal/tg"
)

// ResultsKeyboard renders one page of a session as one button per item,
// followed by a "<<< n/m >>>" navigation row when there is more than one page.
func ResultsKeyboard(s Surface, sessionID string, items []media.Item, size int, page int) (*tg.InlineKeyboardMarkup, Page[media.Item]) {
	p := Paginate(items, size, page)

	rows := make([][]tg.InlineKeyboardButton, 0, len(p.Items)+2)
	for _, it := range p.Items {
		rows = append(rows, []tg.InlineKeyboardButton{{
			Text:         buttonLabel(it),
			CallbackData: SelectEvent(s, sessionID, it.Type, it.ID).Encode(),
		}})
	}

	if p.TotalPages > 1 {
		nav := []tg.InlineKeyboardButton{}
		if p.HasPrev {
			nav = append(nav, tg.InlineKeyboardButton{Text: "<<<", CallbackData: PageEvent(s, sessionID, p.Page-1).Encode()})
		}
		nav = append(nav, tg.InlineKeyboardButton{Text: fmt.Sprintf("%d/%d", p.Page+1, p.TotalPages), CallbackData: Event{Kind: EventNoop}.Encode()})
		if p.HasNext {
			nav = append(nav, tg.InlineKeyboardButton{Text: ">>>", CallbackData: PageEvent(s, sessionID, p.Page+1).Encode()})
		}
		rows = append(rows, nav)
	}

	rows = append(rows, []tg.InlineKeyboardButton{{Text: "Close", CallbackData: Event{Kind: EventClose}.Encode()}})
	kb := tg.NewInlineKeyboardMarkup(rows)
	return &kb, p
}

func buttonLabel(it media.Item) string {
	icon := "🎬"
	if it.Type == media.Series {
		icon = "📺"
	}
	label := fmt.Sprintf("%s %s", icon, it.Label())
	if it.Rating > 0 {
		label = fmt.Sprintf("%s ⭐ %.1f", label, it.Rating)
	}
	return label
}

// LinksKeyboard is a single row of URL buttons; empty URLs are skipped.
func LinksKeyboard(links ...[2]string) *tg.InlineKeyboardMarkup {
	row := []tg.InlineKeyboardButton{}
	for _, l := range links {
		if l[1] == "" {
			continue
		}
		row = append(row, tg.InlineKeyboardButton{Text: l[0], URL: l[1]})
	}
	if len(row) == 0 {
		return nil
	}
	kb := tg.NewInlineKeyboardMarkup([][]tg.InlineKeyboardButton{row})
	return &kb
}
