package media

import (
	"fmt"
	"strings"
)

type Type string

const (
	Movie  Type = "movie"
	Series Type = "series"
)

// ParseType accepts both our names and TMDB's ("tv").
func ParseType(s string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie":
		return Movie, true
	case "series", "tv":
		return Series, true
	}
	return "", false
}

// APIPath is the path segment TMDB uses for the type.
func (t Type) APIPath() string {
	if t == Series {
		return "tv"
	}
	return "movie"
}

// Item is a normalized search result. Immutable once built.
type Item struct {
	ID     int     `json:"id"`
	Type   Type    `json:"type"`
	Title  string  `json:"title"`
	Year   string  `json:"year"`
	Rating float64 `json:"rating"`
}

func (it Item) Label() string {
	if it.Year == "" {
		return it.Title
	}
	return fmt.Sprintf("%s (%s)", it.Title, it.Year)
}
