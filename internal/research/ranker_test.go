package research

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/scholarchat/internal/models"
)

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func paper(id, title string, citations int, year *int) models.ResearchPaper {
	return models.ResearchPaper{PaperID: id, Title: title, CitationCount: citations, Year: year}
}

func TestRank_TitleMatchBeatsCitationsAndAge(t *testing.T) {
	a := paper("A", "Deep neural networks for vision", 100, intp(2023))
	b := paper("B", "A survey of databases", 5, intp(2015))

	ranked := Rank([]models.ResearchPaper{b, a}, "neural networks")

	require.Len(t, ranked, 2)
	assert.Equal(t, "A", ranked[0].PaperID)
	assert.Greater(t, *ranked[0].RelevanceScore, *ranked[1].RelevanceScore)
}

func TestRank_EmptyQueryUsesCitationsAndRecencyOnly(t *testing.T) {
	papers := []models.ResearchPaper{
		paper("old", "x", 0, intp(2010)),
		paper("2021", "x", 0, intp(2021)),
		paper("2023", "x", 0, intp(2023)),
		paper("cited", "x", 1000, nil),
	}

	ranked := Rank(papers, "   ")

	ids := make([]string, 0, len(ranked))
	for _, p := range ranked {
		ids = append(ids, p.PaperID)
	}
	// 0.5*ln(1001) ~ 3.45 > 1.5 > 1.0 > 0
	assert.Equal(t, []string{"cited", "2023", "2021", "old"}, ids)
	assert.InDelta(t, 0.5*math.Log(1001), *ranked[0].RelevanceScore, 1e-9)
	assert.InDelta(t, 1.5, *ranked[1].RelevanceScore, 1e-9)
	assert.InDelta(t, 1.0, *ranked[2].RelevanceScore, 1e-9)
	assert.InDelta(t, 0.0, *ranked[3].RelevanceScore, 1e-9)
}

func TestRank_TiesKeepInputOrder(t *testing.T) {
	papers := []models.ResearchPaper{
		paper("first", "same", 3, intp(2019)),
		paper("second", "same", 3, intp(2019)),
		paper("third", "same", 3, intp(2019)),
	}

	ranked := Rank(papers, "unrelated")

	assert.Equal(t, "first", ranked[0].PaperID)
	assert.Equal(t, "second", ranked[1].PaperID)
	assert.Equal(t, "third", ranked[2].PaperID)
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	papers := []models.ResearchPaper{paper("a", "x", 0, nil), paper("b", "x", 10, nil)}

	_ = Rank(papers, "x")

	assert.Equal(t, "a", papers[0].PaperID)
	assert.Nil(t, papers[0].RelevanceScore)
}

func TestScore_TermWeights(t *testing.T) {
	p := models.ResearchPaper{
		Title:    "Climate policy",
		Abstract: strp("We study climate mitigation and policy design."),
	}

	// climate: title+abstract = 4, policy: title+abstract = 4, mitigation: abstract = 1
	assert.InDelta(t, 9.0, Score(p, []string{"climate", "policy", "mitigation"}), 1e-9)
}
