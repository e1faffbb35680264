// Package hierarchy reconstructs parent/variant relationships from ship pages.
package hierarchy

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/IshaanNene/Holocron/internal/extract"
	"github.com/IshaanNene/Holocron/internal/types"
)

var runningPrefix = regexp.MustCompile(`(?i)^\s*Running the\s+`)

// Options configures a Builder.
type Options struct {
	// FamilyThreshold is the number of second-level headings a page must
	// exceed to be treated as a family page.
	FamilyThreshold int

	// Category is stamped on every record (starfighters, transports, capital).
	Category string

	// BaseURL is the wiki article prefix used for source attribution.
	BaseURL string

	// License is the content license named in record notes.
	License string

	// Aliases maps parent names to their canonical form. Keys match
	// case-insensitively.
	Aliases map[string]string

	Logger *slog.Logger
}

// Builder turns a ship page into one standalone record or a family of
// variant records.
type Builder struct {
	opts    Options
	aliases map[string]string
	logger  *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(opts Options) *Builder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	aliases := make(map[string]string, len(opts.Aliases))
	for k, v := range opts.Aliases {
		aliases[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &Builder{
		opts:    opts,
		aliases: aliases,
		logger:  logger.With("component", "hierarchy"),
	}
}

// Build returns the records described by page. A page with more than
// FamilyThreshold second-level headings is a family page: each such
// heading becomes a variant whose parent is the first top-level heading
// (or the page title). Any other page is a single standalone ship.
func (b *Builder) Build(page *types.SourcePage) ([]*types.StarshipRecord, error) {
	text, err := extract.PageText(page)
	if err != nil {
		return nil, &types.ParseError{Title: page.Title, Err: err}
	}

	variants := extract.SplitSections(text, 2)
	if len(variants) > b.opts.FamilyThreshold {
		family := b.Family(page, text, variants)
		return family.Variants, nil
	}
	return []*types.StarshipRecord{b.standalone(page, text)}, nil
}

// Family builds the variant family for a page already split into
// second-level blocks.
func (b *Builder) Family(page *types.SourcePage, text string, blocks []extract.Block) *types.VariantFamily {
	parent := page.Title
	for _, h := range extract.Headings(text) {
		if h.Level == 1 {
			parent = h.Text
			break
		}
	}
	cleaned := CleanParentName(parent)
	parent = b.canonicalParent(parent)
	log := b.logger.With("title", page.Title, "parent", parent)

	family := &types.VariantFamily{ParentName: parent}
	for _, block := range blocks {
		rec, values := extract.StarshipFromBlock(block.Body, log)
		rec.Name = firstNonEmpty(rec.Craft, values.Get("name"), extract.StripMarkup(block.Heading.Text))
		name := CleanParentName(rec.Name)
		if strings.EqualFold(name, parent) || strings.EqualFold(name, cleaned) {
			log.Debug("self-referential variant excluded", "name", rec.Name)
			if family.BaseRecord == nil {
				family.BaseRecord = rec
			}
			continue
		}

		rec.IsVariant = true
		rec.Parent = parent
		rec.VariantOf = page.Title
		b.stamp(rec, page)
		family.Variants = append(family.Variants, rec)
	}

	log.Info("family page", "variants", len(family.Variants))
	return family
}

func (b *Builder) standalone(page *types.SourcePage, text string) *types.StarshipRecord {
	rec, values := extract.StarshipFromBlock(text, b.logger.With("title", page.Title))
	rec.Name = firstNonEmpty(values.Get("name"), page.Title)
	b.stamp(rec, page)
	return rec
}

// stamp sets category and provenance.
func (b *Builder) stamp(rec *types.StarshipRecord, page *types.SourcePage) {
	source := b.opts.BaseURL + url.PathEscape(page.Title)
	rec.Category = b.opts.Category
	rec.Sources = []string{source}
	rec.PageID = page.PageID
	rec.RevisionID = page.RevisionID
	rec.SourcePage = page.Ref()
	if b.opts.License != "" {
		rec.Notes = "Source text " + b.opts.License + " from " + source
	}
}

// canonicalParent cleans a parent name and applies the alias table.
func (b *Builder) canonicalParent(name string) string {
	clean := CleanParentName(name)
	if alias, ok := b.aliases[strings.ToLower(clean)]; ok {
		return alias
	}
	return clean
}

// CleanParentName strips bold quotes, link brackets and a leading
// "Running the " from a parent name.
func CleanParentName(name string) string {
	s := strings.ReplaceAll(name, "'''", "")
	s = strings.NewReplacer("[[", "", "]]", "").Replace(s)
	s = runningPrefix.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
