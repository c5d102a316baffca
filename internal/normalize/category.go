package normalize

import (
	"math"
	"regexp"
	"strings"

	"github.com/alfredjeanlab/campusevents/internal/model"
)

// DefaultCategoryThreshold is the minimum similarity for a keyword match.
const DefaultCategoryThreshold = 0.02

var (
	nonAlnum  = regexp.MustCompile(`[^a-z0-9]+`)
	wordSplit = regexp.MustCompile(`[a-z0-9]+(?:-[a-z0-9]+)*`)
)

// stopWords are ignored when scoring.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "our": true, "the": true,
	"this": true, "to": true, "us": true, "we": true, "will": true, "with": true,
	"you": true, "your": true, "join": true,
}

// CleanCategory lowercases c and replaces every run of non-alphanumerics with
// one space.
func CleanCategory(c string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(c), " "))
}

// Categorizer picks the best-matching category for an event's text.
type Categorizer struct {
	rules     []model.CategoryRule
	vectors   []map[string]float64
	threshold float64
}

// NewCategorizer builds a categorizer over rules. A non-positive threshold
// uses DefaultCategoryThreshold.
func NewCategorizer(rules []model.CategoryRule, threshold float64) *Categorizer {
	if threshold <= 0 {
		threshold = DefaultCategoryThreshold
	}
	c := &Categorizer{rules: rules, threshold: threshold}
	for _, r := range rules {
		c.vectors = append(c.vectors, termVector(strings.Join(r.Keywords, " ")))
	}
	return c
}

// Categorize scores text against every rule by cosine similarity of term
// counts. It returns the highest-scoring rule name, earliest rule on ties,
// or model.CategoryOther when nothing reaches the threshold.
func (c *Categorizer) Categorize(text string) string {
	if c == nil {
		return model.CategoryOther
	}
	doc := termVector(text)
	if len(doc) == 0 {
		return model.CategoryOther
	}
	best, bestScore := -1, 0.0
	for i, v := range c.vectors {
		if s := cosine(doc, v); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore <= c.threshold {
		return model.CategoryOther
	}
	return c.rules[best].Name
}

func termVector(text string) map[string]float64 {
	v := make(map[string]float64)
	for _, w := range wordSplit.FindAllString(strings.ToLower(text), -1) {
		if !stopWords[w] {
			v[w]++
		}
	}
	return v
}

func cosine(a, b map[string]float64) float64 {
	var dot, na, nb float64
	for k, x := range a {
		na += x * x
		if y, ok := b[k]; ok {
			dot += x * y
		}
	}
	for _, y := range b {
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
