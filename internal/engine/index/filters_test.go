package index

import "testing"

func filterDoc() *Document {
	return &Document{
		ID:       "1",
		Type:     TypeResource,
		Title:    "Guía de Go",
		Language: "es",
		Tags:     []string{"Golang", "Educación"},
		Metadata: Metadata{Category: "Programación", AuthorID: "user-9"},
	}
}

func TestFiltersZeroValueMatchesEverything(t *testing.T) {
	if !(Filters{}).Matches(filterDoc(), FacetNone) {
		t.Error("empty filters rejected a document")
	}
}

func TestFiltersContentType(t *testing.T) {
	f := Filters{ContentTypes: []ContentType{TypeJob, TypeResource}}
	if !f.Matches(filterDoc(), FacetNone) {
		t.Error("matching content type rejected")
	}
	f = Filters{ContentTypes: []ContentType{TypeJob}}
	if f.Matches(filterDoc(), FacetNone) {
		t.Error("non-matching content type accepted")
	}
}

func TestFiltersNormalizedValues(t *testing.T) {
	// Filter values arrive pre-normalised; document values are normalised
	// during matching.
	f := Filters{Category: "programacion", Tags: []string{"educacion"}}
	if !f.Matches(filterDoc(), FacetNone) {
		t.Error("accent-folded filter did not match accented document values")
	}
}

func TestFiltersTagsAreConjunctive(t *testing.T) {
	f := Filters{Tags: []string{"golang", "educacion"}}
	if !f.Matches(filterDoc(), FacetNone) {
		t.Error("document with both tags rejected")
	}
	f = Filters{Tags: []string{"golang", "missing"}}
	if f.Matches(filterDoc(), FacetNone) {
		t.Error("document missing one required tag accepted")
	}
}

func TestFiltersLanguageAndAuthor(t *testing.T) {
	f := Filters{Language: "en"}
	if f.Matches(filterDoc(), FacetNone) {
		t.Error("language mismatch accepted")
	}
	f = Filters{AuthorID: "user-9"}
	if !f.Matches(filterDoc(), FacetNone) {
		t.Error("matching author rejected")
	}
}

func TestFiltersDimensionExemption(t *testing.T) {
	doc := filterDoc()
	f := Filters{ContentTypes: []ContentType{TypeJob}, Category: "programacion"}

	// Exempting the content-type dimension ignores the failing content-type
	// filter but still applies the category filter.
	if !f.Matches(doc, FacetContentType) {
		t.Error("content-type exemption did not skip the content-type filter")
	}
	f.Category = "other"
	if f.Matches(doc, FacetContentType) {
		t.Error("content-type exemption skipped the category filter too")
	}
	// Exempting category leaves the failing content-type filter in force.
	if f.Matches(doc, FacetCategory) {
		t.Error("category exemption skipped the content-type filter")
	}
}
