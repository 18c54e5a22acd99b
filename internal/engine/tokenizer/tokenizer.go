// Package tokenizer provides text tokenisation for the search engine. It
// lower-cases input, strips diacritics (so "café" matches "cafe"), splits on
// Unicode word boundaries, removes per-language stop-words, and applies a
// light suffix-stripping stemmer. Byte offsets into the original text are
// preserved on every token so matches can be mapped back for highlighting.
package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Language selects the stop-word list and stemmer rules.
type Language string

const (
	LangAuto Language = ""
	LangES   Language = "es"
	LangEN   Language = "en"
)

// Token is a single normalised term with its position in the term sequence
// and its byte offsets in the original text.
type Token struct {
	Term     string
	Position int
	Start    int
	End      int
}

var stopWordsEN = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Spanish stop-words are matched after accent folding, so "más" is listed as
// "mas" and "también" as "tambien".
var stopWordsES = map[string]struct{}{
	"de": {}, "la": {}, "que": {}, "el": {}, "en": {}, "los": {},
	"del": {}, "se": {}, "las": {}, "por": {}, "un": {}, "para": {},
	"con": {}, "una": {}, "su": {}, "al": {}, "es": {}, "lo": {},
	"como": {}, "mas": {}, "pero": {}, "sus": {}, "le": {}, "ya": {},
	"este": {}, "si": {}, "porque": {}, "esta": {}, "entre": {},
	"cuando": {}, "muy": {}, "sin": {}, "sobre": {}, "tambien": {},
	"hasta": {}, "hay": {}, "donde": {}, "quien": {}, "desde": {},
	"todo": {}, "nos": {}, "durante": {}, "uno": {}, "les": {},
	"ni": {}, "contra": {}, "otros": {}, "ese": {}, "eso": {},
	"ante": {}, "ellos": {}, "esto": {}, "antes": {}, "unos": {},
	"otro": {}, "otras": {}, "otra": {}, "tanto": {}, "esa": {},
	"estos": {}, "mucho": {}, "nada": {}, "muchos": {}, "cual": {},
	"poco": {}, "ella": {}, "estar": {}, "estas": {}, "algunas": {},
	"algo": {},
}

// foldMarks removes combining marks after canonical decomposition, the
// standard x/text idiom for diacritic stripping.
var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lower-cases text and strips diacritics. It is applied to every
// token before stop-word filtering and stemming, and to raw facet values so
// "Educación" and "educacion" land in the same bucket.
func Normalize(text string) string {
	lowered := strings.ToLower(text)
	folded, _, err := transform.String(foldMarks, lowered)
	if err != nil {
		return lowered
	}
	return folded
}

// DetectLanguage guesses between Spanish and English by counting stop-word
// hits in both lists. English wins ties so short ambiguous strings behave
// predictably.
func DetectLanguage(text string) Language {
	esHits, enHits := 0, 0
	for _, word := range strings.Fields(Normalize(text)) {
		if _, ok := stopWordsES[word]; ok {
			esHits++
		}
		if _, ok := stopWordsEN[word]; ok {
			enHits++
		}
	}
	if esHits > enHits {
		return LangES
	}
	return LangEN
}

// Tokenize breaks text into a slice of stemmed, normalised Tokens with
// stop-words removed. With LangAuto the language is detected once for the
// whole text.
func Tokenize(text string, lang Language) []Token {
	if lang == LangAuto {
		lang = DetectLanguage(text)
	}
	stop := stopWordsEN
	if lang == LangES {
		stop = stopWordsES
	}

	tokens := make([]Token, 0, len(text)/8)
	pos := 0
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		word := Normalize(text[start:end])
		wordStart := start
		start = -1
		if len(word) < 2 {
			return
		}
		if _, isStop := stop[word]; isStop {
			return
		}
		stemmed := Stem(word, lang)
		if stemmed == "" {
			return
		}
		tokens = append(tokens, Token{
			Term:     stemmed,
			Position: pos,
			Start:    wordStart,
			End:      end,
		})
		pos++
	}
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return tokens
}

type suffixRule struct {
	suffix      string
	replacement string
	minLen      int
}

var suffixesEN = []suffixRule{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// Spanish rules operate on accent-folded input ("programación" arrives as
// "programacion").
var suffixesES = []suffixRule{
	{"aciones", "acion", 3},
	{"uciones", "ucion", 3},
	{"amiento", "a", 3},
	{"imiento", "i", 3},
	{"adores", "ador", 3},
	{"mente", "", 4},
	{"idades", "idad", 3},
	{"istas", "ista", 3},
	{"anza", "", 4},
	{"ando", "", 3},
	{"iendo", "", 3},
	{"adas", "", 3},
	{"idas", "", 3},
	{"ados", "", 3},
	{"idos", "", 3},
	{"ada", "", 3},
	{"ida", "", 3},
	{"ado", "", 3},
	{"ido", "", 3},
	{"es", "", 4},
	{"as", "", 4},
	{"os", "", 4},
	{"s", "", 4},
}

// Stem applies the light suffix-stripping stemmer for the given language.
// It is intentionally not a full morphological analyser: one deterministic
// rule application per word.
func Stem(word string, lang Language) string {
	rules := suffixesEN
	if lang == LangES {
		rules = suffixesES
	}
	for _, rule := range rules {
		if strings.HasSuffix(word, rule.suffix) {
			stemmed := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(stemmed) >= rule.minLen {
				return stemmed
			}
		}
	}
	return word
}
