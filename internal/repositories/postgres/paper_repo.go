package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/scholarchat/internal/models"
	"github.com/yoockh/scholarchat/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaperRepository is the local cache of papers seen through research.
type PaperRepository interface {
	UpsertPapers(ctx context.Context, papers []models.ResearchPaper) error
	GetByID(ctx context.Context, paperID string) (*models.ResearchPaper, error)
}

type paperRepo struct {
	db *gorm.DB
}

func NewPaperRepo(db *gorm.DB) PaperRepository {
	return &paperRepo{db: db}
}

func (r *paperRepo) UpsertPapers(ctx context.Context, papers []models.ResearchPaper) error {
	if len(papers) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]models.ResearchPaper, len(papers))
	copy(rows, papers)
	for i := range rows {
		rows[i].FetchedAt = now
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "paper_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "abstract", "year", "authors", "venue", "citation_count",
				"url", "doi", "fields_of_study", "fetched_at",
			}),
		}).
		Create(&rows).Error
}

func (r *paperRepo) GetByID(ctx context.Context, paperID string) (*models.ResearchPaper, error) {
	var p models.ResearchPaper
	err := r.db.WithContext(ctx).
		Where("paper_id = ?", paperID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
