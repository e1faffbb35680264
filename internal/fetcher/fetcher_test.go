package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/Holocron/internal/config"
	"github.com/IshaanNene/Holocron/internal/storage"
	"github.com/IshaanNene/Holocron/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeWiki serves a tiny MediaWiki API. Responses are encoded with the
// given Content-Encoding ("" for identity).
func fakeWiki(t *testing.T, encoding string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "holocron-test/1.0" {
			http.Error(w, "missing user agent", http.StatusForbidden)
			return
		}
		q := r.URL.Query()
		if q.Get("format") != "json" {
			http.Error(w, "format required", http.StatusBadRequest)
			return
		}

		var body string
		switch {
		case q.Get("action") == "parse" && q.Get("page") == "Races":
			body = `{"parse":{"title":"Races","links":[
				{"ns":0,"exists":"","*":"Bothan"},
				{"ns":14,"exists":"","*":"Category:Species"},
				{"ns":0,"exists":"","*":"Ewok"},
				{"ns":0,"exists":"","*":"Bothan"}]}}`
		case q.Get("action") == "parse":
			body = `{"error":{"code":"missingtitle","info":"The page you specified doesn't exist."}}`
		case q.Get("prop") == "revisions" && q.Get("titles") == "Bothan":
			body = `{"query":{"pages":{"1001":{"pageid":1001,"ns":0,"title":"Bothan",
				"revisions":[{"revid":55,"parentid":54,"*":"'''Home Planet:''' Bothawui"}]}}}}`
		case q.Get("prop") == "revisions":
			body = `{"query":{"pages":{"-1":{"ns":0,"title":"` + q.Get("titles") + `","missing":""}}}}`
		case q.Get("prop") == "imageinfo" && q.Get("titles") == "File:Bothan.jpg":
			body = `{"query":{"pages":{"7":{"title":"File:Bothan.jpg","imageinfo":[{"url":"http://img/Bothan.jpg"}]}}}}`
		case q.Get("prop") == "imageinfo":
			body = `{"query":{"pages":{"-1":{"title":"` + q.Get("titles") + `","missing":""}}}}`
		default:
			http.Error(w, "unexpected request", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		var out io.Writer = w
		switch encoding {
		case "br":
			w.Header().Set("Content-Encoding", "br")
			bw := brotli.NewWriter(w)
			defer bw.Close()
			out = bw
		case "gzip":
			w.Header().Set("Content-Encoding", "gzip")
			gw := gzip.NewWriter(w)
			defer gw.Close()
			out = gw
		}
		_, _ = io.WriteString(out, body)
	}))
}

func testConfig(srvURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Wiki.APIURL = srvURL + "/api.php"
	cfg.Wiki.BaseURL = srvURL + "/wiki/"
	cfg.Wiki.UserAgent = "holocron-test/1.0"
	cfg.Fetcher.Timeout = 5 * time.Second
	return cfg
}

// --- MediaWiki Tests ---

func TestMediaWikiTitles(t *testing.T) {
	for _, enc := range []string{"", "gzip", "br"} {
		t.Run("encoding="+enc, func(t *testing.T) {
			srv := fakeWiki(t, enc)
			defer srv.Close()

			src := NewMediaWikiSource(testConfig(srv.URL), "Races", testLogger)
			defer src.Close()

			titles, err := src.Titles(context.Background())
			if err != nil {
				t.Fatalf("titles: %v", err)
			}
			want := []string{"Bothan", "Ewok"}
			if !reflect.DeepEqual(titles, want) {
				t.Errorf("expected %v, got %v", want, titles)
			}
		})
	}
}

func TestMediaWikiTitlesEmptyBatch(t *testing.T) {
	srv := fakeWiki(t, "")
	defer srv.Close()

	src := NewMediaWikiSource(testConfig(srv.URL), "Nowhere", testLogger)
	_, err := src.Titles(context.Background())
	if !errors.Is(err, types.ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestMediaWikiFetch(t *testing.T) {
	srv := fakeWiki(t, "br")
	defer srv.Close()

	src := NewMediaWikiSource(testConfig(srv.URL), "Races", testLogger)
	page, err := src.Fetch(context.Background(), "Bothan")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if page.PageID != 1001 || page.RevisionID != 55 {
		t.Errorf("unexpected ids: page %d rev %d", page.PageID, page.RevisionID)
	}
	if page.Format != types.FormatWikitext || !strings.Contains(page.Content, "Bothawui") {
		t.Errorf("unexpected content: %+v", page)
	}
	if page.SourceURL != srv.URL+"/wiki/Bothan" {
		t.Errorf("unexpected source url %q", page.SourceURL)
	}
}

func TestMediaWikiFetchMissing(t *testing.T) {
	srv := fakeWiki(t, "")
	defer srv.Close()

	src := NewMediaWikiSource(testConfig(srv.URL), "Races", testLogger)
	_, err := src.Fetch(context.Background(), "Gungan")

	var fetchErr *types.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Title != "Gungan" {
		t.Fatalf("expected FetchError for Gungan, got %v", err)
	}
	if !errors.Is(err, types.ErrPageMissing) {
		t.Errorf("expected ErrPageMissing, got %v", err)
	}
}

func TestMediaWikiStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewMediaWikiSource(testConfig(srv.URL), "Races", testLogger)
	_, err := src.Fetch(context.Background(), "Bothan")

	var fetchErr *types.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 FetchError, got %v", err)
	}
}

func TestMediaWikiImageURL(t *testing.T) {
	srv := fakeWiki(t, "")
	defer srv.Close()

	src := NewMediaWikiSource(testConfig(srv.URL), "Races", testLogger)
	ctx := context.Background()

	got, err := src.ImageURL(ctx, "Bothan.jpg")
	if err != nil || got != "http://img/Bothan.jpg" {
		t.Errorf("expected image url, got %q (%v)", got, err)
	}
	got, err = src.ImageURL(ctx, "Nope.png")
	if err != nil || got != "" {
		t.Errorf("unknown file should resolve to empty, got %q (%v)", got, err)
	}
}

// --- Archive Tests ---

func TestArchiveSource(t *testing.T) {
	archive := storage.NewArchive(t.TempDir(), "CC-BY-SA 3.0", testLogger)
	src := NewArchiveSource(archive, types.CollectionSpecies)
	ctx := context.Background()

	if _, err := src.Titles(ctx); !errors.Is(err, types.ErrEmptyBatch) {
		t.Errorf("empty archive should be an empty batch, got %v", err)
	}

	page := &types.SourcePage{Title: "Ewok", RevisionID: 9, Content: "'''Home Planet:''' Endor", Format: types.FormatWikitext}
	if err := archive.Save(types.CollectionSpecies, page); err != nil {
		t.Fatal(err)
	}

	titles, err := src.Titles(ctx)
	if err != nil || !reflect.DeepEqual(titles, []string{"Ewok"}) {
		t.Fatalf("expected [Ewok], got %v (%v)", titles, err)
	}
	got, err := src.Fetch(ctx, "Ewok")
	if err != nil || got.Content != page.Content {
		t.Errorf("unexpected page %+v (%v)", got, err)
	}
	if _, err := src.Fetch(ctx, "Jawa"); !errors.Is(err, types.ErrPageMissing) {
		t.Errorf("expected ErrPageMissing, got %v", err)
	}
}

func TestNewSelectsSource(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Fetcher.Type = "archive"
	cfg.Engine.ArchiveDir = t.TempDir()

	src, err := New(cfg, Batch{Collection: types.CollectionStarships, Index: "Starfighters"}, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if src.Type() != "archive" {
		t.Errorf("expected archive source, got %q", src.Type())
	}

	cfg.Fetcher.Type = "carrier-pigeon"
	if _, err := New(cfg, Batch{}, testLogger); err == nil {
		t.Error("expected error for unknown fetcher type")
	}
}

func TestRandomDelay(t *testing.T) {
	base := 400 * time.Millisecond
	for i := 0; i < 100; i++ {
		d := RandomDelay(base)
		if d < 300*time.Millisecond || d > 500*time.Millisecond {
			t.Fatalf("delay %v outside ±25%% of %v", d, base)
		}
	}
}
