package research

import (
	"regexp"
	"strings"
)

var researchKeywords = regexp.MustCompile(`\b(` + strings.Join([]string{
	"research",
	"researchers",
	"study",
	"studies",
	"evidence",
	"findings",
	"methodology",
	"citation",
	"citations",
	"cite",
	"peer[- ]reviewed",
	"literature",
	"meta-analysis",
	"systematic review",
	"scientific",
	"academic",
	"journal",
	"papers?",
	"empirical",
	"clinical trials?",
}, "|") + `)\b`)

// interrogative ... evidence-word ... reporting verb, e.g. "what does research say".
var evidenceQuestion = regexp.MustCompile(
	`\b(what|how|why|does|do|is|are|can|has|have)\b.*\b(research|science|scientists|studies|study|data|experts|evidence)\b.*\b(says?|shows?|suggests?|indicates?|found|finds?|proves?|know)\b`)

// ShouldUseResearch reports whether a message looks like it wants academic sources.
func ShouldUseResearch(query string) bool {
	q := strings.ToLower(query)
	return researchKeywords.MatchString(q) || evidenceQuestion.MatchString(q)
}
