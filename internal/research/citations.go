package research

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yoockh/scholarchat/internal/models"
	"github.com/yoockh/scholarchat/internal/providers/scholar"
	"github.com/yoockh/scholarchat/internal/utils"
)

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// LinkCitations rewrites [n] markers into markdown links to paper n (1-based).
// Markers without a matching paper are left untouched.
func LinkCitations(text string, papers []models.ResearchPaper) string {
	if len(papers) == 0 || text == "" {
		return text
	}
	return citationMarker.ReplaceAllStringFunc(text, func(m string) string {
		n, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || n < 1 || n > len(papers) {
			return m
		}
		p := papers[n-1]

		link := scholar.CanonicalURL(p.PaperID)
		if p.URL != nil && *p.URL != "" {
			link = *p.URL
		}
		title := strings.ReplaceAll(utils.Truncate(p.Title, 50), `"`, `'`)
		return fmt.Sprintf(`[[%d]](%s "%s")`, n, link, title)
	})
}
