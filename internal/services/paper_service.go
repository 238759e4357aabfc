package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/scholarchat/internal/models"
	pgrepo "github.com/yoockh/scholarchat/internal/repositories/postgres"
	"github.com/yoockh/scholarchat/internal/utils"
)

// PaperFetcher looks a paper up upstream; nil, nil means it does not exist.
type PaperFetcher interface {
	GetPaperDetails(ctx context.Context, paperID string) (*models.ResearchPaper, error)
	BatchGetPaperDetails(ctx context.Context, paperIDs []string) []*models.ResearchPaper
}

type PaperService interface {
	GetPaper(ctx context.Context, paperID string) (*models.ResearchPaper, error)
	// GetPapers keeps the order of paperIDs; unknown or failed ids come back nil.
	GetPapers(ctx context.Context, paperIDs []string) ([]*models.ResearchPaper, error)
}

type paperService struct {
	fetcher PaperFetcher
	papers  pgrepo.PaperRepository
	logger  logrus.FieldLogger
}

// NewPaperService serves details from the local cache first. papers may be nil.
func NewPaperService(fetcher PaperFetcher, papers pgrepo.PaperRepository, logger logrus.FieldLogger) PaperService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &paperService{fetcher: fetcher, papers: papers, logger: logger}
}

func (s *paperService) GetPaper(ctx context.Context, paperID string) (*models.ResearchPaper, error) {
	const op = "PaperService.GetPaper"

	paperID = strings.TrimSpace(paperID)
	if paperID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "paper_id is required", nil)
	}

	if s.papers != nil {
		p, err := s.papers.GetByID(ctx, paperID)
		switch {
		case err == nil:
			return p, nil
		case !errors.Is(err, utils.ErrNotFound):
			s.logger.WithError(err).WithField("paper_id", paperID).Warn("paper cache read failed")
		}
	}

	p, err := s.fetcher.GetPaperDetails(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, utils.E(utils.CodeNotFound, op, "paper not found", utils.ErrNotFound)
	}

	if s.papers != nil {
		if err := s.papers.UpsertPapers(ctx, []models.ResearchPaper{*p}); err != nil {
			s.logger.WithError(err).WithField("paper_id", paperID).Warn("paper cache write failed")
		}
	}
	return p, nil
}

const maxBatchPapers = 100

func (s *paperService) GetPapers(ctx context.Context, paperIDs []string) ([]*models.ResearchPaper, error) {
	const op = "PaperService.GetPapers"

	if len(paperIDs) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "paper_ids are required", nil)
	}
	if len(paperIDs) > maxBatchPapers {
		return nil, utils.E(utils.CodeInvalidArgument, op, "too many paper_ids", nil)
	}

	out := s.fetcher.BatchGetPaperDetails(ctx, paperIDs)
	found := make([]models.ResearchPaper, 0, len(out))
	for _, p := range out {
		if p != nil {
			found = append(found, *p)
		}
	}
	if s.papers != nil && len(found) > 0 {
		if err := s.papers.UpsertPapers(ctx, found); err != nil {
			s.logger.WithError(err).Warn("paper cache write failed")
		}
	}
	return out, nil
}
