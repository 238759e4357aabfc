package research

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/scholarchat/internal/models"
	"github.com/yoockh/scholarchat/internal/providers/scholar"
)

const (
	DefaultNumPapers = 5
	maxCandidates    = 15
)

// PaperStore receives papers the augmenter selected, e.g. a local paper cache.
type PaperStore interface {
	UpsertPapers(ctx context.Context, papers []models.ResearchPaper) error
}

type Request struct {
	Query     string
	Force     bool // research requested explicitly by the caller
	NumPapers int
}

type Result struct {
	Papers  []models.ResearchPaper
	Context string
}

func (r Result) Used() bool { return len(r.Papers) > 0 }

// Augmenter decides whether a message needs academic sources and, if so,
// fetches, ranks and formats them for the system prompt.
type Augmenter struct {
	searcher scholar.Searcher
	store    PaperStore
	logger   logrus.FieldLogger
}

func NewAugmenter(searcher scholar.Searcher, store PaperStore, logger logrus.FieldLogger) *Augmenter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Augmenter{searcher: searcher, store: store, logger: logger}
}

// Augment never fails: any retrieval problem is logged and yields an empty Result.
func (a *Augmenter) Augment(ctx context.Context, req Request) Result {
	query := strings.TrimSpace(req.Query)
	if query == "" || a.searcher == nil {
		return Result{}
	}
	if !req.Force && !ShouldUseResearch(query) {
		return Result{}
	}

	n := req.NumPapers
	if n <= 0 {
		n = DefaultNumPapers
	}
	limit := n * 2
	if limit > maxCandidates {
		limit = maxCandidates
	}

	log := a.logger.WithFields(logrus.Fields{"query": query, "num_papers": n})

	res, err := a.searcher.Search(ctx, scholar.SearchParams{
		Query:            query,
		Limit:            limit,
		MinCitationCount: 1,
	})
	if err != nil {
		log.WithError(err).Warn("research retrieval failed; continuing without papers")
		return Result{}
	}
	if len(res.Papers) == 0 {
		return Result{}
	}

	ranked := Rank(res.Papers, query)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	log.WithField("selected", len(ranked)).Info("research papers selected")

	if a.store != nil {
		if err := a.store.UpsertPapers(ctx, ranked); err != nil {
			log.WithError(err).Warn("failed to cache research papers")
		}
	}

	return Result{Papers: ranked, Context: ExtractPaperContext(ranked)}
}

// PromptBlock renders the system prompt section for a research result, or "" when unused.
func PromptBlock(r Result) string {
	if !r.Used() {
		return ""
	}
	var b strings.Builder
	b.WriteString("Research Papers Context:\n")
	b.WriteString(r.Context)
	b.WriteString("\n\nWhen you draw on these papers, cite them inline as [1], [2], etc., matching the numbers above. ")
	b.WriteString("Highlight key findings and mention limitations or conflicting results where relevant.")
	return b.String()
}
