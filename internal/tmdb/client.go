package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tmdb-tg-bot/internal/media"
)

const (
	DefaultBaseURL   = "https://api.themoviedb.org/3"
	DefaultImageBase = "https://image.tmdb.org/t/p"
	webBase          = "https://www.themoviedb.org"
	imdbBase         = "https://www.imdb.com/title"
)

// ErrStatus wraps every non-2xx answer from the API.
var ErrStatus = errors.New("tmdb: unexpected status")

type Client struct {
	apiKey    string
	apiBase   string
	imageBase string
	language  string
	hc        *http.Client
	limiter   *rate.Limiter
}

type Options struct {
	BaseURL   string
	ImageBase string
	Language  string
	Timeout   time.Duration
	// RatePerSecond caps outgoing requests; <= 0 disables the limiter.
	RatePerSecond float64
}

func NewClient(apiKey string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ImageBase == "" {
		opts.ImageBase = DefaultImageBase
	}
	if opts.Language == "" {
		opts.Language = "en-US"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 9 * time.Second
	}
	c := &Client{
		apiKey:    apiKey,
		apiBase:   strings.TrimRight(opts.BaseURL, "/"),
		imageBase: strings.TrimRight(opts.ImageBase, "/"),
		language:  opts.Language,
		hc:        &http.Client{Timeout: opts.Timeout},
	}
	if opts.RatePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), int(opts.RatePerSecond)+1)
	}
	return c
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Result is one row of a search or trending listing.
type Result struct {
	ID           int     `json:"id"`
	MediaType    string  `json:"media_type"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
}

func (r Result) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

func (r Result) Release() string {
	if r.ReleaseDate != "" {
		return r.ReleaseDate
	}
	return r.FirstAirDate
}

type listResponse struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

type Detail struct {
	ID             int     `json:"id"`
	Title          string  `json:"title"`
	Name           string  `json:"name"`
	Overview       string  `json:"overview"`
	Tagline        string  `json:"tagline"`
	ReleaseDate    string  `json:"release_date"`
	FirstAirDate   string  `json:"first_air_date"`
	PosterPath     string  `json:"poster_path"`
	BackdropPath   string  `json:"backdrop_path"`
	VoteAverage    float64 `json:"vote_average"`
	VoteCount      int     `json:"vote_count"`
	Runtime        int     `json:"runtime"`
	EpisodeRunTime []int   `json:"episode_run_time"`
	IMDBID         string  `json:"imdb_id"`
	Genres         []Genre `json:"genres"`
}

func (d Detail) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Name
}

// RuntimeMinutes falls back to the first episode runtime for series.
func (d Detail) RuntimeMinutes() int {
	if d.Runtime > 0 {
		return d.Runtime
	}
	if len(d.EpisodeRunTime) > 0 {
		return d.EpisodeRunTime[0]
	}
	return 0
}

func (d Detail) GenreNames() []string {
	out := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		if name := strings.TrimSpace(g.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

type Image struct {
	FilePath    string  `json:"file_path"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	VoteAverage float64 `json:"vote_average"`
}

type Images struct {
	Posters   []Image `json:"posters"`
	Backdrops []Image `json:"backdrops"`
}

// SearchMulti queries movies and series together (first page only).
func (c *Client) SearchMulti(ctx context.Context, query string) ([]Result, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("page", "1")
	var out listResponse
	if err := c.get(ctx, "/search/multi", q, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Trending lists trending titles. mediaType is all, movie or tv; window is day or week.
func (c *Client) Trending(ctx context.Context, mediaType string, window string) ([]Result, error) {
	if window != "week" {
		window = "day"
	}
	switch mediaType {
	case "movie", "tv":
	default:
		mediaType = "all"
	}
	var out listResponse
	if err := c.get(ctx, fmt.Sprintf("/trending/%s/%s", mediaType, window), nil, &out); err != nil {
		return nil, err
	}
	for i := range out.Results {
		if out.Results[i].MediaType == "" && mediaType != "all" {
			out.Results[i].MediaType = mediaType
		}
	}
	return out.Results, nil
}

func (c *Client) Details(ctx context.Context, t media.Type, id int) (*Detail, error) {
	if id <= 0 {
		return nil, fmt.Errorf("invalid tmdb id %d", id)
	}
	var d Detail
	if err := c.get(ctx, fmt.Sprintf("/%s/%d", t.APIPath(), id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) Images(ctx context.Context, t media.Type, id int) (*Images, error) {
	if id <= 0 {
		return nil, fmt.Errorf("invalid tmdb id %d", id)
	}
	// Posters are often untagged; ask for those alongside the configured language.
	q := url.Values{}
	q.Set("include_image_language", strings.SplitN(c.language, "-", 2)[0]+",null")
	var imgs Images
	if err := c.get(ctx, fmt.Sprintf("/%s/%d/images", t.APIPath(), id), q, &imgs); err != nil {
		return nil, err
	}
	return &imgs, nil
}

func (c *Client) ImageURL(path string, size string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http") {
		return path
	}
	if size == "" {
		size = "w780"
	}
	return c.imageBase + "/" + size + path
}

func WebURL(t media.Type, id int) string {
	return fmt.Sprintf("%s/%s/%d", webBase, t.APIPath(), id)
}

func IMDBURL(imdbID string) string {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return ""
	}
	return imdbBase + "/" + url.PathEscape(imdbID)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if q == nil {
		q = url.Values{}
	}
	q.Set("api_key", c.apiKey)
	if q.Get("language") == "" {
		q.Set("language", c.language)
	}
	u := c.apiBase + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		// The request URL carries the API key.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("tmdb %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w %d on %s: %s", ErrStatus, resp.StatusCode, path, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(out); err != nil {
		return fmt.Errorf("tmdb %s: decode: %w", path, err)
	}
	return nil
}
