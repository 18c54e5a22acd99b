// Package index defines the search engine's core data model (documents,
// postings, facets) and the immutable snapshot store. Searches run against an
// atomically-swapped snapshot so readers never observe a half-written index.
package index

import (
	"fmt"
	"time"

	pkgerrors "github.com/secid-mx/community-search/pkg/errors"
)

// ContentType identifies which platform module produced a document. It is a
// closed enum: facet and scoring code switches on the value instead of
// probing free-form strings.
type ContentType string

const (
	TypeJob      ContentType = "job"
	TypeEvent    ContentType = "event"
	TypeForum    ContentType = "forum"
	TypeResource ContentType = "resource"
	TypeProfile  ContentType = "profile"
)

// ContentTypes lists every supported content type in a fixed order.
var ContentTypes = []ContentType{TypeJob, TypeEvent, TypeForum, TypeResource, TypeProfile}

// ParseContentType validates a raw type string.
func ParseContentType(s string) (ContentType, error) {
	ct := ContentType(s)
	for _, known := range ContentTypes {
		if ct == known {
			return ct, nil
		}
	}
	return "", pkgerrors.Newf(pkgerrors.ErrUnsupportedType, 400, "content type %q", s)
}

// DocKey is the stable identity of a document: IDs are unique only within a
// content type, so both parts are required.
type DocKey struct {
	Type ContentType
	ID   string
}

func (k DocKey) String() string {
	return string(k.Type) + ":" + k.ID
}

// Metadata carries the cross-type document attributes used for faceting,
// filtering, and freshness scoring. Which optional fields are meaningful
// depends on the content type (Company for jobs, Location for events, ...).
type Metadata struct {
	CreatedAt time.Time `json:"createdAt"`
	Category  string    `json:"category,omitempty"`
	Location  string    `json:"location,omitempty"`
	Company   string    `json:"company,omitempty"`
	AuthorID  string    `json:"authorId,omitempty"`
}

// Document is the indexable unit supplied by the content-producing modules
// (job postings, events, forum threads, learning resources, member profiles).
type Document struct {
	ID          string      `json:"id"`
	Type        ContentType `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Content     string      `json:"content,omitempty"`
	URL         string      `json:"url,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Metadata    Metadata    `json:"metadata"`

	// Language is the document's detected or declared language ("es"/"en").
	// The indexer fills it in when the producer leaves it empty.
	Language string `json:"language,omitempty"`

	// DateBucket is the derived date-range facet value, assigned at index
	// time from Metadata.CreatedAt.
	DateBucket string `json:"-"`
}

// Key returns the document's stable identity.
func (d *Document) Key() DocKey {
	return DocKey{Type: d.Type, ID: d.ID}
}

// Validate checks the document is well-formed enough to index. Content-type
// specific expectations are enforced here so malformed producer payloads are
// rejected before any index mutation.
func (d *Document) Validate() error {
	if d.ID == "" {
		return pkgerrors.New(pkgerrors.ErrInvalidRequest, 400, "document id is required")
	}
	if _, err := ParseContentType(string(d.Type)); err != nil {
		return err
	}
	if d.Title == "" {
		return pkgerrors.Newf(pkgerrors.ErrInvalidRequest, 400, "document %s: title is required", d.Key())
	}
	if d.Metadata.CreatedAt.IsZero() {
		return pkgerrors.Newf(pkgerrors.ErrInvalidRequest, 400, "document %s: createdAt is required", d.Key())
	}
	switch d.Type {
	case TypeProfile:
		if d.Metadata.AuthorID == "" {
			return pkgerrors.Newf(pkgerrors.ErrInvalidRequest, 400, "profile %s: authorId is required", d.ID)
		}
	case TypeJob, TypeEvent, TypeForum, TypeResource:
		// No extra required fields; Company/Location are optional per type.
	}
	return nil
}

// Field identifies an indexed document field. Lower values rank higher in
// the default field weighting.
type Field uint8

const (
	FieldTitle Field = iota
	FieldTags
	FieldDescription
	FieldContent
	numFields
)

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldTags:
		return "tags"
	case FieldDescription:
		return "description"
	case FieldContent:
		return "content"
	default:
		return fmt.Sprintf("field(%d)", uint8(f))
	}
}

// IndexedFields lists the fields written to the inverted index.
var IndexedFields = []Field{FieldTitle, FieldTags, FieldDescription, FieldContent}

// FieldText returns the raw text of the given field.
func (d *Document) FieldText(f Field) string {
	switch f {
	case FieldTitle:
		return d.Title
	case FieldTags:
		return joinTags(d.Tags)
	case FieldDescription:
		return d.Description
	case FieldContent:
		return d.Content
	default:
		return ""
	}
}

func joinTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += " "
		}
		out += t
	}
	return out
}

// FacetField identifies a facet dimension.
type FacetField uint8

const (
	FacetContentType FacetField = iota
	FacetCategory
	FacetAuthor
	FacetTags
	FacetDateRange
	numFacetFields
)

func (f FacetField) String() string {
	switch f {
	case FacetContentType:
		return "contentTypes"
	case FacetCategory:
		return "categories"
	case FacetAuthor:
		return "authors"
	case FacetTags:
		return "tags"
	case FacetDateRange:
		return "dateRanges"
	default:
		return fmt.Sprintf("facet(%d)", uint8(f))
	}
}

// FacetFields lists every facet dimension in response order.
var FacetFields = []FacetField{FacetContentType, FacetCategory, FacetAuthor, FacetTags, FacetDateRange}

// Date-range facet bucket values.
const (
	BucketToday     = "today"
	BucketLastWeek  = "last-week"
	BucketLastMonth = "last-month"
	BucketOlder     = "older"
)

// DateBucketFor assigns a created-at timestamp to its date-range facet
// bucket relative to now.
func DateBucketFor(createdAt, now time.Time) string {
	age := now.Sub(createdAt)
	switch {
	case age < 24*time.Hour:
		return BucketToday
	case age < 7*24*time.Hour:
		return BucketLastWeek
	case age < 30*24*time.Hour:
		return BucketLastMonth
	default:
		return BucketOlder
	}
}

// FacetValues returns the document's values for a facet dimension. Most
// dimensions are single-valued; tags contribute one value per tag.
func (d *Document) FacetValues(f FacetField) []string {
	switch f {
	case FacetContentType:
		return []string{string(d.Type)}
	case FacetCategory:
		if d.Metadata.Category == "" {
			return nil
		}
		return []string{d.Metadata.Category}
	case FacetAuthor:
		if d.Metadata.AuthorID == "" {
			return nil
		}
		return []string{d.Metadata.AuthorID}
	case FacetTags:
		return d.Tags
	case FacetDateRange:
		if d.DateBucket == "" {
			return nil
		}
		return []string{d.DateBucket}
	default:
		return nil
	}
}
