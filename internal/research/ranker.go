package research

import (
	"math"
	"sort"
	"strings"

	"github.com/yoockh/scholarchat/internal/models"
)

// Score weights a paper against lowercase query terms: title hits +3, abstract
// hits +1, 0.5*ln(citations+1), and a recency bonus of +1 from 2020 and +0.5 more from 2022.
func Score(p models.ResearchPaper, terms []string) float64 {
	title := strings.ToLower(p.Title)
	abstract := ""
	if p.Abstract != nil {
		abstract = strings.ToLower(*p.Abstract)
	}

	var score float64
	for _, t := range terms {
		if strings.Contains(title, t) {
			score += 3
		}
		if strings.Contains(abstract, t) {
			score += 1
		}
	}

	score += math.Log(float64(p.CitationCount)+1) * 0.5

	if p.Year != nil {
		if *p.Year >= 2020 {
			score += 1
		}
		if *p.Year >= 2022 {
			score += 0.5
		}
	}
	return score
}

// Rank returns a copy of papers with RelevanceScore set, sorted by score descending.
// Equal scores keep their input order.
func Rank(papers []models.ResearchPaper, query string) []models.ResearchPaper {
	terms := strings.Fields(strings.ToLower(query))

	out := make([]models.ResearchPaper, len(papers))
	copy(out, papers)
	for i := range out {
		s := Score(out[i], terms)
		out[i].RelevanceScore = &s
	}

	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].RelevanceScore > *out[j].RelevanceScore
	})
	return out
}
