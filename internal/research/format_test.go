package research

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yoockh/scholarchat/internal/models"
)

func authors(names ...string) []models.Author {
	out := make([]models.Author, 0, len(names))
	for _, n := range names {
		out = append(out, models.Author{Name: n})
	}
	return out
}

func TestFormatAuthors(t *testing.T) {
	tests := []struct {
		name    string
		authors []models.Author
		max     int
		want    string
	}{
		{name: "none", authors: nil, max: 3, want: "Unknown Authors"},
		{name: "within limit", authors: authors("Ada", "Grace"), max: 3, want: "Ada, Grace"},
		{name: "truncated", authors: authors("Ada", "Grace", "Alan", "Edsger"), max: 3, want: "Ada, Grace, Alan et al."},
		{name: "two for context", authors: authors("Ada", "Grace", "Alan"), max: 2, want: "Ada, Grace et al."},
		{name: "default max", authors: authors("A", "B", "C", "D"), max: 0, want: "A, B, C et al."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAuthors(tt.authors, tt.max))
		})
	}
}

func TestAPACitation(t *testing.T) {
	p := models.ResearchPaper{
		Title:   "Attention Is All You Need",
		Authors: authors("Vaswani", "Shazeer"),
		Year:    intp(2017),
		Venue:   strp("NeurIPS"),
		DOI:     strp("10.5555/3295222"),
		URL:     strp("https://example.org/p"),
	}
	assert.Equal(t, "Vaswani, Shazeer (2017). Attention Is All You Need. *NeurIPS*. https://doi.org/10.5555/3295222", APACitation(p))

	p.DOI, p.Venue, p.Year = nil, nil, nil
	assert.Equal(t, "Vaswani, Shazeer (n.d.). Attention Is All You Need. https://example.org/p", APACitation(p))
}

func TestExtractPaperContext_TruncatesAbstract(t *testing.T) {
	abstract := strings.Repeat("a", 400)
	p := models.ResearchPaper{
		PaperID:       "p1",
		Title:         "Long abstracts",
		Abstract:      &abstract,
		Authors:       authors("Ada", "Grace", "Alan"),
		Year:          intp(2021),
		CitationCount: 12,
		URL:           strp("https://example.org/p1"),
	}

	out := ExtractPaperContext([]models.ResearchPaper{p})

	assert.True(t, strings.HasPrefix(out, "[1] Long abstracts (Ada, Grace et al., 2021)\n"))
	assert.Contains(t, out, "Citation count: 12\n")
	assert.Contains(t, out, "Abstract: "+strings.Repeat("a", 300)+"...\n")
	assert.NotContains(t, out, strings.Repeat("a", 301))
	assert.True(t, strings.HasSuffix(out, "URL: https://example.org/p1"))
}

func TestExtractPaperContext_Fallbacks(t *testing.T) {
	papers := []models.ResearchPaper{
		{Title: "One"},
		{Title: "Two", Authors: authors("Bo")},
	}

	out := ExtractPaperContext(papers)

	blocks := strings.Split(out, "\n\n")
	assert.Len(t, blocks, 2)
	assert.Equal(t, "[1] One (Unknown Authors, n.d.)\nCitation count: 0\nAbstract: No abstract available.\nURL: N/A", blocks[0])
	assert.True(t, strings.HasPrefix(blocks[1], "[2] Two (Bo, n.d.)"))
}
