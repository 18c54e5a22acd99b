package index

import (
	"github.com/secid-mx/community-search/internal/engine/tokenizer"
)

// Filters narrows a candidate set before scoring and pagination. Zero values
// mean "not filtered on this dimension". String values must be normalised
// (tokenizer.Normalize) by the caller; document values are normalised here,
// so "Educación" filters match "educacion" documents.
type Filters struct {
	ContentTypes []ContentType
	Language     string
	Category     string
	Tags         []string
	AuthorID     string
}

// FacetNone is passed to Matches when no dimension should be exempted.
const FacetNone FacetField = numFacetFields

// Matches reports whether a document passes all filters, skipping the
// dimension named by except. The exemption implements standard faceted-search
// semantics: the contentTypes facet is counted ignoring the contentTypes
// filter itself, and so on.
func (f Filters) Matches(doc *Document, except FacetField) bool {
	if except != FacetContentType && len(f.ContentTypes) > 0 {
		found := false
		for _, ct := range f.ContentTypes {
			if doc.Type == ct {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Language != "" && doc.Language != f.Language {
		return false
	}
	if except != FacetCategory && f.Category != "" &&
		tokenizer.Normalize(doc.Metadata.Category) != f.Category {
		return false
	}
	if except != FacetAuthor && f.AuthorID != "" && doc.Metadata.AuthorID != f.AuthorID {
		return false
	}
	if except != FacetTags && len(f.Tags) > 0 {
		for _, want := range f.Tags {
			found := false
			for _, tag := range doc.Tags {
				if tokenizer.Normalize(tag) == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}
