package menu

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tmdb-tg-bot/internal/media"
)

type Surface string

const (
	SurfaceSearch Surface = "search"
	SurfacePoster Surface = "poster"
)

var surfacePrefix = map[Surface]string{SurfaceSearch: "s", SurfacePoster: "p"}

type EventKind int

const (
	EventNoop EventKind = iota
	EventClose
	EventPage
	EventSelect
)

// Event is a decoded button press. Only the fields relevant to Kind are set.
type Event struct {
	Kind      EventKind
	Surface   Surface
	SessionID string
	Page      int
	Type      media.Type
	ID        int
}

func PageEvent(s Surface, sessionID string, page int) Event {
	return Event{Kind: EventPage, Surface: s, SessionID: sessionID, Page: page}
}

func SelectEvent(s Surface, sessionID string, t media.Type, id int) Event {
	return Event{Kind: EventSelect, Surface: s, SessionID: sessionID, Type: t, ID: id}
}

var ErrBadEvent = errors.New("malformed callback data")

// Encode renders the event as Telegram callback data (at most 64 bytes):
// "s_pg|<sid>|<page>", "s_sel|<sid>|<type>|<id>", "noop" or "close".
func (e Event) Encode() string {
	switch e.Kind {
	case EventClose:
		return "close"
	case EventPage:
		return fmt.Sprintf("%s_pg|%s|%d", surfacePrefix[e.Surface], e.SessionID, e.Page)
	case EventSelect:
		return fmt.Sprintf("%s_sel|%s|%s|%d", surfacePrefix[e.Surface], e.SessionID, e.Type, e.ID)
	default:
		return "noop"
	}
}

func ParseEvent(data string) (Event, error) {
	data = strings.TrimSpace(data)
	switch data {
	case "noop":
		return Event{Kind: EventNoop}, nil
	case "close":
		return Event{Kind: EventClose}, nil
	}
	parts := strings.Split(data, "|")
	prefix, action, ok := strings.Cut(parts[0], "_")
	if !ok {
		return Event{}, fmt.Errorf("%w: %q", ErrBadEvent, data)
	}
	var surface Surface
	for s, p := range surfacePrefix {
		if p == prefix {
			surface = s
		}
	}
	if surface == "" {
		return Event{}, fmt.Errorf("%w: unknown surface in %q", ErrBadEvent, data)
	}

	switch action {
	case "pg":
		if len(parts) != 3 || parts[1] == "" {
			return Event{}, fmt.Errorf("%w: %q", ErrBadEvent, data)
		}
		page, err := strconv.Atoi(parts[2])
		if err != nil {
			return Event{}, fmt.Errorf("%w: page in %q", ErrBadEvent, data)
		}
		return PageEvent(surface, parts[1], page), nil
	case "sel":
		if len(parts) != 4 || parts[1] == "" {
			return Event{}, fmt.Errorf("%w: %q", ErrBadEvent, data)
		}
		t, ok := media.ParseType(parts[2])
		if !ok {
			return Event{}, fmt.Errorf("%w: media type in %q", ErrBadEvent, data)
		}
		id, err := strconv.Atoi(parts[3])
		if err != nil || id <= 0 {
			return Event{}, fmt.Errorf("%w: id in %q", ErrBadEvent, data)
		}
		return SelectEvent(surface, parts[1], t, id), nil
	}
	return Event{}, fmt.Errorf("%w: unknown action in %q", ErrBadEvent, data)
}
