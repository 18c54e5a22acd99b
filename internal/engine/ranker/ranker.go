// Package ranker computes the relevance score of candidate documents:
// field-weighted saturating term frequency with exact-match and exact-phrase
// bonuses, multiplied by a freshness decay and normalised into [0,1] by the
// theoretical maximum for the query length.
package ranker

import (
	"math"
	"time"

	"github.com/secid-mx/community-search/internal/engine/index"
	"github.com/secid-mx/community-search/internal/engine/query"
	"github.com/secid-mx/community-search/pkg/config"
)

// k1 controls term-frequency saturation: tf·(k1+1)/(tf+k1) grows quickly for
// the first occurrences and flattens out, bounded by k1+1.
const k1 = 1.2

// Ranker holds the scoring constants for one engine instance.
type Ranker struct {
	weights     map[index.Field]float64
	totalWeight float64
	exactBonus  float64
	phraseBonus float64
	halfLife    time.Duration
	floor       float64
}

// New creates a Ranker from the engine configuration.
func New(cfg config.EngineConfig) *Ranker {
	weights := map[index.Field]float64{
		index.FieldTitle:       cfg.TitleWeight,
		index.FieldTags:        cfg.TagsWeight,
		index.FieldDescription: cfg.DescriptionWeight,
		index.FieldContent:     cfg.ContentWeight,
	}
	total := 0.0
	for _, w := range weights {
		total += w
	}
	return &Ranker{
		weights:     weights,
		totalWeight: total,
		exactBonus:  cfg.ExactBonus,
		phraseBonus: cfg.PhraseBonus,
		halfLife:    cfg.FreshnessHalfLife,
		floor:       cfg.FreshnessFloor,
	}
}

// Score computes the normalised relevance of one candidate. A document
// matched only through fuzzy variants always scores strictly below the same
// document matched exactly.
func (r *Ranker) Score(doc *index.Document, match query.DocMatch, now time.Time) float64 {
	raw := 0.0
	for _, tm := range match.Terms {
		for field, fm := range tm.Fields {
			score := r.weights[field] * tfNorm(float64(fm.Frequency))
			if fm.Exact {
				score *= r.exactBonus
			}
			raw += score
		}
	}
	if len(match.Terms) > 1 {
		for _, field := range index.IndexedFields {
			if phraseInField(match.Terms, field) {
				raw += r.phraseBonus * r.weights[field]
			}
		}
	}
	normalized := raw / r.maxRaw(len(match.Terms))
	score := r.freshness(doc.Metadata.CreatedAt, now) * normalized
	if score > 1 {
		score = 1
	}
	return score
}

// maxRaw is the theoretical maximum raw score for a query of qlen terms:
// every term matched exactly in every field with saturated frequency, plus
// the phrase bonus in every field.
func (r *Ranker) maxRaw(qlen int) float64 {
	max := float64(qlen) * r.totalWeight * (k1 + 1) * r.exactBonus
	if qlen > 1 {
		max += r.phraseBonus * r.totalWeight
	}
	return max
}

// freshness decays by half every halfLife, floored so very old content stays
// rankable. It is monotonic: older never outranks equally-relevant newer.
func (r *Ranker) freshness(createdAt, now time.Time) float64 {
	if createdAt.IsZero() || !createdAt.Before(now) {
		return 1
	}
	age := now.Sub(createdAt)
	decay := math.Pow(0.5, float64(age)/float64(r.halfLife))
	if decay < r.floor {
		return r.floor
	}
	return decay
}

func tfNorm(tf float64) float64 {
	return tf * (k1 + 1) / (tf + k1)
}

// phraseInField reports whether the full query phrase appears contiguously
// in the given field: some position p such that term i occurs at p+i for
// every query term.
func phraseInField(terms []*query.TermMatch, field index.Field) bool {
	first, ok := terms[0].Fields[field]
	if !ok {
		return false
	}
	rest := make([]map[int]struct{}, len(terms)-1)
	for i := 1; i < len(terms); i++ {
		fm, ok := terms[i].Fields[field]
		if !ok {
			return false
		}
		set := make(map[int]struct{}, len(fm.Positions))
		for _, p := range fm.Positions {
			set[p] = struct{}{}
		}
		rest[i-1] = set
	}
	for _, p := range first.Positions {
		found := true
		for i, set := range rest {
			if _, ok := set[p+i+1]; !ok {
				found = false
				break
			}
		}
		if found {
			return true
		}
	}
	return false
}
