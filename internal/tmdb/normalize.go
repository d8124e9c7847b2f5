package tmdb

import (
	"sort"
	"strings"

	"tmdb-tg-bot/internal/media"
)

// Normalize keeps movie and series rows, in the order received, up to max
// (max <= 0 means unbounded).
func Normalize(results []Result, max int) []media.Item {
	out := make([]media.Item, 0, len(results))
	for _, r := range results {
		if max > 0 && len(out) >= max {
			break
		}
		t, ok := media.ParseType(r.MediaType)
		if !ok || r.ID <= 0 {
			continue
		}
		out = append(out, media.Item{
			ID:     r.ID,
			Type:   t,
			Title:  strings.TrimSpace(r.DisplayTitle()),
			Year:   year(r.Release()),
			Rating: clampRating(r.VoteAverage),
		})
	}
	return out
}

func year(date string) string {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return ""
	}
	y := date[:4]
	for _, ch := range y {
		if ch < '0' || ch > '9' {
			return ""
		}
	}
	return y
}

func clampRating(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// RankPosters orders posters by vote average, best first. Ties keep the
// API order. The input slice is not modified.
func RankPosters(posters []Image) []Image {
	out := make([]Image, 0, len(posters))
	for _, p := range posters {
		if strings.TrimSpace(p.FilePath) != "" {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].VoteAverage > out[j].VoteAverage })
	return out
}
