// Package highlight extracts snippet windows around matched terms for the
// page-sized result slice. Match spans come from re-tokenizing the stored
// document, which reproduces the byte offsets the indexer saw; nearby spans
// merge into one window, each window gains a fixed context margin, and total
// snippet length is capped.
package highlight

import (
	"strings"
	"unicode/utf8"

	"github.com/secid-mx/community-search/internal/engine/index"
	"github.com/secid-mx/community-search/internal/engine/tokenizer"
	"github.com/secid-mx/community-search/pkg/config"
)

const ellipsis = "…"

// Match is one highlighted span, with offsets relative to the snippet.
type Match struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// FieldHighlight is the snippet of one matched field.
type FieldHighlight struct {
	Field   string  `json:"field"`
	Snippet string  `json:"snippet"`
	Matches []Match `json:"matches"`
}

// Highlighter builds snippets from matched documents.
type Highlighter struct {
	maxLen   int
	margin   int
	mergeGap int
}

// New creates a Highlighter from the engine configuration.
func New(cfg config.EngineConfig) *Highlighter {
	return &Highlighter{
		maxLen:   cfg.SnippetLength,
		margin:   cfg.SnippetMargin,
		mergeGap: cfg.SnippetMergeGap,
	}
}

// highlightedFields are the fields snippets are produced for; tag matches
// are already visible in the document's tag list.
var highlightedFields = []index.Field{index.FieldTitle, index.FieldDescription, index.FieldContent}

// Document returns highlights for every field of doc containing at least one
// accepted term. Fields without matches are omitted, never emitted empty.
func (h *Highlighter) Document(doc *index.Document, accepted map[string]struct{}) []FieldHighlight {
	lang := tokenizer.Language(doc.Language)
	highlights := make([]FieldHighlight, 0, 2)
	for _, field := range highlightedFields {
		text := doc.FieldText(field)
		if text == "" {
			continue
		}
		if fh, ok := h.field(field, text, accepted, lang); ok {
			highlights = append(highlights, fh)
		}
	}
	return highlights
}

type span struct {
	start, end int
}

func (h *Highlighter) field(field index.Field, text string, accepted map[string]struct{}, lang tokenizer.Language) (FieldHighlight, bool) {
	var matched []span
	for _, tok := range tokenizer.Tokenize(text, lang) {
		if _, ok := accepted[tok.Term]; ok {
			matched = append(matched, span{start: tok.Start, end: tok.End})
		}
	}
	if len(matched) == 0 {
		return FieldHighlight{}, false
	}

	windows := h.windows(matched, text)
	var snippet strings.Builder
	var out []Match
	for _, w := range windows {
		if snippet.Len() >= h.maxLen {
			break
		}
		if snippet.Len() > 0 {
			snippet.WriteString(" " + ellipsis + " ")
		} else if w.start > 0 {
			snippet.WriteString(ellipsis)
		}
		base := snippet.Len()
		chunk := text[w.start:w.end]
		if snippet.Len()+len(chunk) > h.maxLen {
			chunk = truncateRunes(chunk, h.maxLen-snippet.Len())
		}
		snippet.WriteString(chunk)
		for _, m := range matched {
			if m.start >= w.start && m.end <= w.start+len(chunk) {
				out = append(out, Match{
					Start: base + m.start - w.start,
					End:   base + m.end - w.start,
					Text:  text[m.start:m.end],
				})
			}
		}
	}
	if windows[len(windows)-1].end < len(text) {
		snippet.WriteString(ellipsis)
	}
	return FieldHighlight{
		Field:   field.String(),
		Snippet: snippet.String(),
		Matches: out,
	}, true
}

// windows merges match spans separated by at most mergeGap bytes, then
// expands each merged window by the context margin, snapped to rune
// boundaries.
func (h *Highlighter) windows(matched []span, text string) []span {
	merged := []span{matched[0]}
	for _, m := range matched[1:] {
		last := &merged[len(merged)-1]
		if m.start-last.end <= h.mergeGap {
			if m.end > last.end {
				last.end = m.end
			}
			continue
		}
		merged = append(merged, m)
	}
	for i := range merged {
		start := max(0, merged[i].start-h.margin)
		for start > 0 && !utf8.RuneStart(text[start]) {
			start--
		}
		end := min(len(text), merged[i].end+h.margin)
		for end < len(text) && !utf8.RuneStart(text[end]) {
			end++
		}
		merged[i].start, merged[i].end = start, end
	}
	// Margin expansion can make neighbours overlap; merge again.
	out := merged[:1]
	for _, w := range merged[1:] {
		last := &out[len(out)-1]
		if w.start <= last.end {
			if w.end > last.end {
				last.end = w.end
			}
			continue
		}
		out = append(out, w)
	}
	return out
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
