package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/IshaanNene/Holocron/internal/config"
	"github.com/IshaanNene/Holocron/internal/types"
)

// MediaWikiSource reads page wikitext through the MediaWiki action API.
type MediaWikiSource struct {
	api     *apiClient
	apiURL  string
	baseURL string
	index   string
	logger  *slog.Logger
}

// NewMediaWikiSource creates a source for the pages linked from index.
func NewMediaWikiSource(cfg *config.Config, index string, logger *slog.Logger) *MediaWikiSource {
	logger = logger.With("component", "mediawiki_source")
	return &MediaWikiSource{
		api:     newAPIClient(cfg, logger),
		apiURL:  cfg.Wiki.APIURL,
		baseURL: cfg.Wiki.BaseURL,
		index:   index,
		logger:  logger,
	}
}

func (s *MediaWikiSource) Type() string { return "http" }

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type parseResponse struct {
	Parse *struct {
		Links []struct {
			NS    int    `json:"ns"`
			Title string `json:"*"`
		} `json:"links"`
	} `json:"parse"`
	Error *apiError `json:"error"`
}

type queryResponse struct {
	Query *struct {
		Pages map[string]queryPage `json:"pages"`
	} `json:"query"`
	Error *apiError `json:"error"`
}

type queryPage struct {
	PageID    int64           `json:"pageid"`
	Title     string          `json:"title"`
	Missing   json.RawMessage `json:"missing"`
	Revisions []struct {
		RevID   int64  `json:"revid"`
		Content string `json:"*"`
	} `json:"revisions"`
	ImageInfo []struct {
		URL string `json:"url"`
	} `json:"imageinfo"`
}

func (s *MediaWikiSource) endpoint(params url.Values) string {
	params.Set("format", "json")
	return s.apiURL + "?" + params.Encode()
}

// Titles lists the article links (namespace 0) on the index page, in page
// order without duplicates. An index with no article links is an empty
// batch.
func (s *MediaWikiSource) Titles(ctx context.Context) ([]string, error) {
	var resp parseResponse
	status, err := s.api.getJSON(ctx, s.endpoint(url.Values{
		"action": {"parse"},
		"page":   {s.index},
		"prop":   {"links"},
	}), &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrEmptyBatch, &types.FetchError{Title: s.index, StatusCode: status, Err: err})
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: index %q: %s", types.ErrEmptyBatch, s.index, resp.Error.Info)
	}
	if resp.Parse == nil {
		return nil, fmt.Errorf("%w: unexpected response for index %q", types.ErrEmptyBatch, s.index)
	}

	seen := make(map[string]bool)
	var titles []string
	for _, link := range resp.Parse.Links {
		if link.NS != 0 || link.Title == "" || seen[link.Title] {
			continue
		}
		seen[link.Title] = true
		titles = append(titles, link.Title)
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("%w: index %q has no article links", types.ErrEmptyBatch, s.index)
	}

	s.logger.Info("index loaded", "index", s.index, "titles", len(titles))
	return titles, nil
}

// Fetch retrieves the latest revision of a page as wikitext.
func (s *MediaWikiSource) Fetch(ctx context.Context, title string) (*types.SourcePage, error) {
	var resp queryResponse
	status, err := s.api.getJSON(ctx, s.endpoint(url.Values{
		"action": {"query"},
		"prop":   {"revisions"},
		"titles": {title},
		"rvprop": {"ids|content"},
	}), &resp)
	if err != nil {
		return nil, &types.FetchError{Title: title, StatusCode: status, Err: err}
	}
	if resp.Error != nil {
		return nil, &types.FetchError{Title: title, StatusCode: status, Err: errors.New(resp.Error.Info)}
	}

	page, ok := firstPage(resp)
	if !ok || page.Missing != nil {
		return nil, &types.FetchError{Title: title, Err: types.ErrPageMissing}
	}
	if len(page.Revisions) == 0 || page.Revisions[0].Content == "" {
		return nil, &types.FetchError{Title: title, Err: types.ErrEmptyContent}
	}

	rev := page.Revisions[0]
	return &types.SourcePage{
		Title:      title,
		PageID:     page.PageID,
		RevisionID: rev.RevID,
		Content:    rev.Content,
		Format:     types.FormatWikitext,
		SourceURL:  s.baseURL + url.PathEscape(title),
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// ImageURL resolves an uploaded file name to its download URL. An unknown
// file yields an empty URL and no error.
func (s *MediaWikiSource) ImageURL(ctx context.Context, filename string) (string, error) {
	if filename == "" {
		return "", nil
	}
	var resp queryResponse
	status, err := s.api.getJSON(ctx, s.endpoint(url.Values{
		"action": {"query"},
		"titles": {"File:" + filename},
		"prop":   {"imageinfo"},
		"iiprop": {"url"},
	}), &resp)
	if err != nil {
		return "", &types.FetchError{Title: "File:" + filename, StatusCode: status, Err: err}
	}
	page, ok := firstPage(resp)
	if !ok || len(page.ImageInfo) == 0 {
		return "", nil
	}
	return page.ImageInfo[0].URL, nil
}

func (s *MediaWikiSource) Close() error {
	s.api.close()
	return nil
}

// firstPage returns the single page of a titles= query.
func firstPage(resp queryResponse) (queryPage, bool) {
	if resp.Query == nil {
		return queryPage{}, false
	}
	for _, p := range resp.Query.Pages {
		return p, true
	}
	return queryPage{}, false
}
