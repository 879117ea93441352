package orchestrator

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/linkeep/linkeep/capture"
)

// KeywordRecommender is the built-in tag recommender: term frequency
// over the page's title, description, and content, with a small
// stopword list. Deployments that want model-backed suggestions plug in
// their own Recommender; this one keeps RECOMMEND_TAGS useful offline.
type KeywordRecommender struct {
	max int
}

// NewKeywordRecommender creates a recommender returning at most max
// tags (default 5).
func NewKeywordRecommender(max int) *KeywordRecommender {
	if max <= 0 {
		max = 5
	}
	return &KeywordRecommender{max: max}
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "has": {}, "was": {}, "with": {},
	"this": {}, "that": {}, "from": {}, "have": {}, "they": {}, "will": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "your": {}, "their": {},
	"about": {}, "would": {}, "there": {}, "been": {}, "more": {}, "also": {},
}

// Recommend suggests tags for a page.
func (r *KeywordRecommender) Recommend(_ context.Context, info capture.PageInfo) ([]string, error) {
	freq := make(map[string]int)
	count := func(text string, weight int) {
		for _, w := range strings.FieldsFunc(strings.ToLower(text), func(c rune) bool {
			return !unicode.IsLetter(c) && !unicode.IsNumber(c)
		}) {
			if len(w) < 3 || len(w) > 24 {
				continue
			}
			if _, stop := stopwords[w]; stop {
				continue
			}
			freq[w] += weight
		}
	}

	// Title words matter more than body words.
	count(info.Title, 3)
	count(info.Description, 2)
	count(info.Content, 1)

	type scored struct {
		word  string
		score int
	}
	ranked := make([]scored, 0, len(freq))
	for w, n := range freq {
		ranked = append(ranked, scored{word: w, score: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].word < ranked[j].word
	})

	tags := make([]string, 0, r.max)
	for _, s := range ranked {
		if len(tags) == r.max {
			break
		}
		if s.score < 2 {
			break
		}
		tags = append(tags, s.word)
	}
	return tags, nil
}
