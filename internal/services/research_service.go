package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/scholarchat/internal/models"
	"github.com/yoockh/scholarchat/internal/providers/llm"
	"github.com/yoockh/scholarchat/internal/providers/scholar"
	"github.com/yoockh/scholarchat/internal/research"
	"github.com/yoockh/scholarchat/internal/utils"
)

const (
	maxResearchCandidates = 20

	researchSystemPrompt = "You are a research assistant. Answer the question using only the papers provided. " +
		"Cite papers inline as [1], [2], etc., matching their numbers. Summarise the key findings, " +
		"point out where studies disagree, and say plainly when the evidence is limited."

	noPapersAnswer = "I couldn't find any relevant research papers for your query. " +
		"Try rephrasing it or using more specific academic terms."
)

type ResearchAnswer struct {
	Papers          []models.ResearchPaper `json:"papers"`
	TotalResults    int                    `json:"total_results"`
	Query           string                 `json:"query"`
	GeneratedAnswer string                 `json:"generated_answer"`
}

type ResearchService interface {
	Answer(ctx context.Context, query string, numPapers int) (*ResearchAnswer, error)
}

type researchService struct {
	searcher scholar.Searcher
	llm      llm.Provider
	store    research.PaperStore
	logger   logrus.FieldLogger
}

func NewResearchService(searcher scholar.Searcher, provider llm.Provider, store research.PaperStore, logger logrus.FieldLogger) ResearchService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &researchService{searcher: searcher, llm: provider, store: store, logger: logger}
}

func (s *researchService) Answer(ctx context.Context, query string, numPapers int) (*ResearchAnswer, error) {
	const op = "ResearchService.Answer"

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "query is required", nil)
	}
	if numPapers <= 0 {
		numPapers = research.DefaultNumPapers
	}
	limit := numPapers * 2
	if limit > maxResearchCandidates {
		limit = maxResearchCandidates
	}

	res, err := s.searcher.Search(ctx, scholar.SearchParams{
		Query:            query,
		Limit:            limit,
		MinCitationCount: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Papers) == 0 {
		return &ResearchAnswer{
			Papers:          []models.ResearchPaper{},
			Query:           query,
			GeneratedAnswer: noPapersAnswer,
		}, nil
	}

	top := research.Rank(res.Papers, query)
	if len(top) > numPapers {
		top = top[:numPapers]
	}
	if s.store != nil {
		if err := s.store.UpsertPapers(ctx, top); err != nil {
			s.logger.WithError(err).Warn("failed to cache research papers")
		}
	}

	prompt := "Question: " + query + "\n\nPapers:\n" + research.ExtractPaperContext(top)
	answer, err := llm.Collect(ctx, s.llm, llm.Request{
		System:   researchSystemPrompt,
		Messages: []models.Message{{Role: models.RoleUser, Content: prompt}},
	})
	if err != nil {
		return nil, utils.E(utils.CodeExternalService, op, "failed to generate answer", err)
	}

	return &ResearchAnswer{
		Papers:          top,
		TotalResults:    res.Total,
		Query:           query,
		GeneratedAnswer: research.LinkCitations(answer, top),
	}, nil
}
