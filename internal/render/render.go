// Package render builds the HTML texts and captions the bot sends.
package render

import (
	"fmt"
	"html"
	"strings"

	"tmdb-tg-bot/internal/media"
	"tmdb-tg-bot/internal/tmdb"
)

const (
	// Telegram limits, in characters.
	CaptionLimit = 1024
	TextLimit    = 4096

	overviewLimit = 600
)

var esc = html.EscapeString

// Truncate cuts s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if n <= 0 || len(r) <= n {
		return string(r)
	}
	if n == 1 {
		return "…"
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

// TrendingCaption is the channel post for one new trending title. d may be
// nil when the detail lookup failed; the caption then skips the detail block.
func TrendingCaption(r tmdb.Result, d *tmdb.Detail, t media.Type) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎬 <b>%s</b>\n", esc(r.DisplayTitle()))
	fmt.Fprintf(&b, "📅 Release: <i>%s</i>\n", esc(orUnknown(r.Release())))

	links := []string{}
	if d != nil {
		fmt.Fprintf(&b, "⭐ Rating: <b>%.1f</b> (%d votes)\n", d.VoteAverage, d.VoteCount)
		fmt.Fprintf(&b, "🎭 Genres: %s\n", esc(orUnknown(strings.Join(d.GenreNames(), ", "))))
		runtime := "Unknown"
		if m := d.RuntimeMinutes(); m > 0 {
			runtime = fmt.Sprintf("%d min", m)
		}
		fmt.Fprintf(&b, "⏳ Runtime: %s\n", runtime)
		if u := tmdb.IMDBURL(d.IMDBID); u != "" {
			links = append(links, fmt.Sprintf("<a href=\"%s\">IMDb</a>", esc(u)))
		}
	} else if r.VoteAverage > 0 {
		fmt.Fprintf(&b, "⭐ Rating: <b>%.1f</b>\n", r.VoteAverage)
	}
	if ov := strings.TrimSpace(r.Overview); ov != "" {
		fmt.Fprintf(&b, "\n📰 %s\n", esc(Truncate(ov, overviewLimit)))
	}
	links = append(links, fmt.Sprintf("<a href=\"%s\">TMDb</a>", esc(tmdb.WebURL(t, r.ID))))
	fmt.Fprintf(&b, "\n🔗 %s", strings.Join(links, " | "))
	return b.String()
}

// WeeklyDigest lists up to ten titles with their rating.
func WeeklyDigest(results []tmdb.Result) string {
	var b strings.Builder
	b.WriteString("📅 <b>Weekly Trending Movies &amp; Series</b>\n\n")
	for i, r := range results {
		if i >= 10 {
			break
		}
		fmt.Fprintf(&b, "🎬 %s — ⭐ %.1f\n", esc(r.DisplayTitle()), r.VoteAverage)
	}
	return strings.TrimRight(b.String(), "\n")
}

// DetailCaption is the reply to a selected search result.
func DetailCaption(d *tmdb.Detail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎬 <b>%s</b>", esc(d.DisplayTitle()))
	if y := yearOf(d.ReleaseDate, d.FirstAirDate); y != "" {
		fmt.Fprintf(&b, " (%s)", y)
	}
	b.WriteString("\n")
	runtime := "Unknown"
	if m := d.RuntimeMinutes(); m > 0 {
		runtime = fmt.Sprintf("%dm", m)
	}
	fmt.Fprintf(&b, "⭐ %.1f | ⏳ %s\n", d.VoteAverage, runtime)
	if g := d.GenreNames(); len(g) > 0 {
		fmt.Fprintf(&b, "🎭 %s\n", esc(strings.Join(g, ", ")))
	}
	if tl := strings.TrimSpace(d.Tagline); tl != "" {
		fmt.Fprintf(&b, "\n<i>%s</i>\n", esc(tl))
	}
	if ov := strings.TrimSpace(d.Overview); ov != "" {
		fmt.Fprintf(&b, "\n%s", esc(Truncate(ov, overviewLimit)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func PosterCaption(it media.Item) string {
	return fmt.Sprintf("🖼 <b>%s</b>", esc(it.Label()))
}

// ResultsHeader is the text above a results keyboard.
func ResultsHeader(poster bool, query string, total int) string {
	icon, what := "🔍", "Results"
	if poster {
		icon, what = "🎬", "Posters"
	}
	return fmt.Sprintf("%s %s for <b>%s</b> (%d found):", icon, what, esc(query), total)
}

func yearOf(dates ...string) string {
	for _, d := range dates {
		if len(d) >= 4 {
			return d[:4]
		}
	}
	return ""
}
