package research

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yoockh/scholarchat/internal/models"
	"github.com/yoockh/scholarchat/internal/utils"
)

const abstractContextChars = 300

// FormatAuthors joins up to max author names, appending "et al." when more exist.
func FormatAuthors(authors []models.Author, max int) string {
	if len(authors) == 0 {
		return "Unknown Authors"
	}
	if max <= 0 {
		max = 3
	}

	n := len(authors)
	if n > max {
		n = max
	}
	names := make([]string, 0, n)
	for _, a := range authors[:n] {
		names = append(names, a.Name)
	}

	joined := strings.Join(names, ", ")
	if len(authors) > max {
		joined += " et al."
	}
	return joined
}

// APACitation renders an APA-like reference line for a paper.
func APACitation(p models.ResearchPaper) string {
	year := "(n.d.)"
	if p.Year != nil {
		year = fmt.Sprintf("(%d)", *p.Year)
	}

	citation := fmt.Sprintf("%s %s. %s.", FormatAuthors(p.Authors, 3), year, p.Title)
	if p.Venue != nil && *p.Venue != "" {
		citation += fmt.Sprintf(" *%s*.", *p.Venue)
	}

	switch {
	case p.DOI != nil && *p.DOI != "":
		citation += " https://doi.org/" + *p.DOI
	case p.URL != nil && *p.URL != "":
		citation += " " + *p.URL
	}
	return citation
}

// ExtractPaperContext numbers papers [1]..[n] and renders the block the model cites from.
func ExtractPaperContext(papers []models.ResearchPaper) string {
	blocks := make([]string, 0, len(papers))
	for i, p := range papers {
		year := "n.d."
		if p.Year != nil {
			year = strconv.Itoa(*p.Year)
		}

		abstract := "No abstract available."
		if p.Abstract != nil && *p.Abstract != "" {
			abstract = utils.Truncate(*p.Abstract, abstractContextChars)
		}

		link := "N/A"
		if p.URL != nil && *p.URL != "" {
			link = *p.URL
		}

		blocks = append(blocks, fmt.Sprintf("[%d] %s (%s, %s)\nCitation count: %d\nAbstract: %s\nURL: %s",
			i+1, p.Title, FormatAuthors(p.Authors, 2), year, p.CitationCount, abstract, link))
	}
	return strings.Join(blocks, "\n\n")
}
