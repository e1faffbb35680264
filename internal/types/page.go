package types

import (
	"strings"
	"time"
)

// PageFormat identifies how a source page's content is encoded.
type PageFormat string

const (
	FormatWikitext PageFormat = "wikitext"
	FormatHTML     PageFormat = "html"
)

// SourcePage is one page handed to the extractors by a page source.
type SourcePage struct {
	// Title is the wiki page title, e.g. "Bothan".
	Title string `json:"title"`

	// PageID is the wiki's numeric page id (0 when unknown).
	PageID int64 `json:"pageId,omitempty"`

	// RevisionID identifies the exact revision the content came from.
	RevisionID int64 `json:"revisionId"`

	// Content is the raw wikitext or rendered HTML fragment.
	Content string `json:"content"`

	// Format says whether Content is wikitext or HTML.
	Format PageFormat `json:"format"`

	// SourceURL is the human-facing page URL.
	SourceURL string `json:"sourceUrl,omitempty"`

	// FetchedAt is when the page was retrieved.
	FetchedAt time.Time `json:"fetchedAt"`
}

// IsEmpty reports whether the page carries no usable content.
func (p *SourcePage) IsEmpty() bool {
	return p == nil || strings.TrimSpace(p.Content) == ""
}

// Ref returns the provenance reference stored on extracted records.
func (p *SourcePage) Ref() *PageRef {
	if p == nil {
		return nil
	}
	return &PageRef{Title: p.Title, RevisionID: p.RevisionID}
}

// PageRef records which page revision produced a record.
type PageRef struct {
	Title      string `json:"title"`
	RevisionID int64  `json:"revisionId"`
}

// ArchivedPage is the on-disk raw archive shape for a fetched page.
type ArchivedPage struct {
	Title       string    `json:"title"`
	PageID      int64     `json:"pageId"`
	RevisionID  int64     `json:"revisionId"`
	Wikitext    string    `json:"wikitext,omitempty"`
	HTML        string    `json:"html,omitempty"`
	License     string    `json:"license"`
	SourceURL   string    `json:"sourceUrl"`
	RetrievedAt time.Time `json:"retrievedAt"`
}

// Archive converts a source page into its archive form.
func (p *SourcePage) Archive(license string) *ArchivedPage {
	a := &ArchivedPage{
		Title:       p.Title,
		PageID:      p.PageID,
		RevisionID:  p.RevisionID,
		License:     license,
		SourceURL:   p.SourceURL,
		RetrievedAt: p.FetchedAt,
	}
	if p.Format == FormatHTML {
		a.HTML = p.Content
	} else {
		a.Wikitext = p.Content
	}
	return a
}

// Page converts an archived page back into a source page.
func (a *ArchivedPage) Page() *SourcePage {
	p := &SourcePage{
		Title:      a.Title,
		PageID:     a.PageID,
		RevisionID: a.RevisionID,
		Content:    a.Wikitext,
		Format:     FormatWikitext,
		SourceURL:  a.SourceURL,
		FetchedAt:  a.RetrievedAt,
	}
	if a.Wikitext == "" && a.HTML != "" {
		p.Content = a.HTML
		p.Format = FormatHTML
	}
	return p
}
