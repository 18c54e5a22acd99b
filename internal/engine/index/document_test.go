package index

import (
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/secid-mx/community-search/pkg/errors"
)

func validDoc() *Document {
	return &Document{
		ID:    "42",
		Type:  TypeJob,
		Title: "Backend Engineer",
		Metadata: Metadata{
			CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestParseContentType(t *testing.T) {
	for _, ct := range ContentTypes {
		got, err := ParseContentType(string(ct))
		if err != nil || got != ct {
			t.Errorf("ParseContentType(%q) = %q, %v", ct, got, err)
		}
	}
	if _, err := ParseContentType("video"); !errors.Is(err, pkgerrors.ErrUnsupportedType) {
		t.Errorf("ParseContentType(video) error = %v, want ErrUnsupportedType", err)
	}
}

func TestDocumentValidate(t *testing.T) {
	if err := validDoc().Validate(); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Document)
	}{
		{"missing id", func(d *Document) { d.ID = "" }},
		{"missing title", func(d *Document) { d.Title = "" }},
		{"missing createdAt", func(d *Document) { d.Metadata.CreatedAt = time.Time{} }},
		{"unknown type", func(d *Document) { d.Type = "video" }},
		{"profile without author", func(d *Document) { d.Type = TypeProfile }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := validDoc()
			tc.mutate(doc)
			if err := doc.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestDocKeyString(t *testing.T) {
	key := DocKey{Type: TypeForum, ID: "abc"}
	if got := key.String(); got != "forum:abc" {
		t.Errorf("key = %q, want forum:abc", got)
	}
}

func TestDateBucketFor(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		age  time.Duration
		want string
	}{
		{2 * time.Hour, BucketToday},
		{23 * time.Hour, BucketToday},
		{25 * time.Hour, BucketLastWeek},
		{6 * 24 * time.Hour, BucketLastWeek},
		{8 * 24 * time.Hour, BucketLastMonth},
		{29 * 24 * time.Hour, BucketLastMonth},
		{31 * 24 * time.Hour, BucketOlder},
		{400 * 24 * time.Hour, BucketOlder},
	}
	for _, tc := range cases {
		if got := DateBucketFor(now.Add(-tc.age), now); got != tc.want {
			t.Errorf("DateBucketFor(age=%s) = %q, want %q", tc.age, got, tc.want)
		}
	}
}

func TestFacetValues(t *testing.T) {
	doc := validDoc()
	doc.Tags = []string{"golang", "backend"}
	doc.Metadata.Category = "engineering"
	doc.DateBucket = BucketLastWeek

	if got := doc.FacetValues(FacetContentType); len(got) != 1 || got[0] != "job" {
		t.Errorf("content type facet = %v", got)
	}
	if got := doc.FacetValues(FacetTags); len(got) != 2 {
		t.Errorf("tags facet = %v", got)
	}
	if got := doc.FacetValues(FacetAuthor); got != nil {
		t.Errorf("author facet for doc without author = %v, want nil", got)
	}
	if got := doc.FacetValues(FacetDateRange); len(got) != 1 || got[0] != BucketLastWeek {
		t.Errorf("date range facet = %v", got)
	}
}

func TestFieldText(t *testing.T) {
	doc := validDoc()
	doc.Tags = []string{"remote", "senior"}
	if got := doc.FieldText(FieldTags); got != "remote senior" {
		t.Errorf("tags text = %q", got)
	}
	if got := doc.FieldText(FieldTitle); got != doc.Title {
		t.Errorf("title text = %q", got)
	}
	if got := doc.FieldText(FieldContent); got != "" {
		t.Errorf("content text = %q, want empty", got)
	}
}
