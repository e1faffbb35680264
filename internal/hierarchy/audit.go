package hierarchy

import (
	"strings"

	"github.com/IshaanNene/Holocron/internal/types"
)

// Audit finding reasons.
const (
	ReasonSelfReferential = "self-referential"
	ReasonGenericName     = "generic-name-duplicate"
)

// Finding is one persisted variant flagged for manual review.
type Finding struct {
	Slug   string
	Name   string
	Craft  string
	Parent string
	Reason string
}

// AuditVariants flags persisted variants that name themselves as their
// own parent, or that carry a generic name while a craft name exists and
// their slug has no hyphen (the signature of a duplicate of a properly
// named variant). Non-variants are ignored.
func AuditVariants(records []*types.StarshipRecord) []Finding {
	var findings []Finding
	for _, rec := range records {
		if rec == nil || !rec.IsVariant || rec.Parent == "" {
			continue
		}

		parent := CleanParentName(rec.Parent)
		reason := ""
		switch {
		case strings.EqualFold(rec.Name, parent):
			reason = ReasonSelfReferential
		case rec.Craft != "" && rec.Name != rec.Craft && !strings.Contains(rec.Slug, "-"):
			reason = ReasonGenericName
		default:
			continue
		}

		findings = append(findings, Finding{
			Slug:   rec.Slug,
			Name:   rec.Name,
			Craft:  rec.Craft,
			Parent: rec.Parent,
			Reason: reason,
		})
	}
	return findings
}
