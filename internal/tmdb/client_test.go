package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tmdb-tg-bot/internal/media"
)

func testServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("k", Options{BaseURL: srv.URL, Timeout: 2 * time.Second})
}

func TestSearchMulti(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/multi" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "k" || r.URL.Query().Get("query") != "dune" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"page":1,"results":[
			{"id":438631,"media_type":"movie","title":"Dune","release_date":"2021-09-15","vote_average":7.8},
			{"id":1,"media_type":"person","name":"Someone"},
			{"id":90228,"media_type":"tv","name":"Dune: Prophecy","first_air_date":"2024-11-17","vote_average":7.2}
		]}`))
	})

	res, err := c.SearchMulti(context.Background(), "dune")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	items := Normalize(res, 0)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	want := media.Item{ID: 438631, Type: media.Movie, Title: "Dune", Year: "2021", Rating: 7.8}
	if items[0] != want {
		t.Errorf("got %+v, want %+v", items[0], want)
	}
	if items[1].Type != media.Series || items[1].Year != "2024" {
		t.Errorf("unexpected series item %+v", items[1])
	}
}

func TestNonSuccessStatus(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status_message":"Invalid API key"}`))
	})
	_, err := c.Trending(context.Background(), "movie", "day")
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}
}

func TestMalformedBody(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})
	if _, err := c.Details(context.Background(), media.Movie, 5); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTrendingFillsMediaType(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/trending/tv/day" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"results":[{"id":7,"name":"Show"}]}`))
	})
	res, err := c.Trending(context.Background(), "tv", "hourly")
	if err != nil {
		t.Fatalf("trending: %v", err)
	}
	if len(res) != 1 || res[0].MediaType != "tv" || res[0].DisplayTitle() != "Show" {
		t.Errorf("unexpected results %+v", res)
	}
}

func TestDetailsSeriesPath(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":42,"name":"Show","episode_run_time":[48],"genres":[{"id":1,"name":"Drama"},{"id":2,"name":" "}]}`))
	})
	d, err := c.Details(context.Background(), media.Series, 42)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if d.RuntimeMinutes() != 48 {
		t.Errorf("expected runtime 48, got %d", d.RuntimeMinutes())
	}
	if g := d.GenreNames(); len(g) != 1 || g[0] != "Drama" {
		t.Errorf("unexpected genres %v", g)
	}
}

func TestDetailsRejectsInvalidID(t *testing.T) {
	c := NewClient("k", Options{})
	if _, err := c.Details(context.Background(), media.Movie, 0); err == nil {
		t.Error("expected error for id 0")
	}
}

func TestImageURL(t *testing.T) {
	c := NewClient("k", Options{})
	tests := []struct {
		path, size, want string
	}{
		{"", "w500", ""},
		{"/abc.jpg", "", "https://image.tmdb.org/t/p/w780/abc.jpg"},
		{"/abc.jpg", "original", "https://image.tmdb.org/t/p/original/abc.jpg"},
		{"https://cdn/x.jpg", "w500", "https://cdn/x.jpg"},
	}
	for _, tt := range tests {
		if got := c.ImageURL(tt.path, tt.size); got != tt.want {
			t.Errorf("ImageURL(%q, %q) = %q, want %q", tt.path, tt.size, got, tt.want)
		}
	}
}

func TestNormalizeLimitAndYear(t *testing.T) {
	rows := []Result{
		{ID: 1, MediaType: "movie", Title: "A", ReleaseDate: "19xx"},
		{ID: 2, MediaType: "movie", Title: "B", VoteAverage: 11},
		{ID: 3, MediaType: "movie", Title: "C"},
	}
	items := Normalize(rows, 2)
	if len(items) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(items))
	}
	if items[0].Year != "" {
		t.Errorf("expected empty year for malformed date, got %q", items[0].Year)
	}
	if items[1].Rating != 10 {
		t.Errorf("expected rating clamped to 10, got %v", items[1].Rating)
	}
}

func TestLinks(t *testing.T) {
	if got := WebURL(media.Series, 9); got != "https://www.themoviedb.org/tv/9" {
		t.Errorf("WebURL = %q", got)
	}
	if got := IMDBURL("tt0001"); got != "https://www.imdb.com/title/tt0001" {
		t.Errorf("IMDBURL = %q", got)
	}
	if IMDBURL(" ") != "" {
		t.Error("expected empty IMDb url")
	}
}

func TestRankPosters(t *testing.T) {
	in := []Image{
		{FilePath: "/a.jpg", VoteAverage: 5.1},
		{FilePath: "", VoteAverage: 9},
		{FilePath: "/b.jpg", VoteAverage: 5.6},
		{FilePath: "/c.jpg", VoteAverage: 5.1},
	}
	got := RankPosters(in)
	want := []string{"/b.jpg", "/a.jpg", "/c.jpg"}
	if len(got) != len(want) {
		t.Fatalf("got %d posters, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].FilePath != w {
			t.Errorf("rank %d = %s, want %s", i, got[i].FilePath, w)
		}
	}
	if in[0].FilePath != "/a.jpg" {
		t.Error("input reordered")
	}
}

func TestTransportErrorHidesAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient("SECRETKEY123", Options{BaseURL: base, Timeout: 2 * time.Second})
	_, err := c.Trending(context.Background(), "movie", "day")
	if err == nil {
		t.Fatal("expected a transport error")
	}
	if strings.Contains(err.Error(), "SECRETKEY123") {
		t.Errorf("error leaks the API key: %v", err)
	}
	if !strings.Contains(err.Error(), "/trending/movie/day") {
		t.Errorf("error should name the path: %v", err)
	}
}
