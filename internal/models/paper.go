package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type Author struct {
	AuthorID *string `json:"authorId"`
	Name     string  `json:"name"`
}

// ResearchPaper is the canonical paper record. It doubles as the row of the local paper cache.
type ResearchPaper struct {
	PaperID        string                      `gorm:"column:paper_id;type:text;primaryKey" json:"paperId"`
	Title          string                      `gorm:"column:title;type:text" json:"title"`
	Abstract       *string                     `gorm:"column:abstract;type:text" json:"abstract"`
	Year           *int                        `gorm:"column:year;type:integer" json:"year"`
	Authors        datatypes.JSONSlice[Author] `gorm:"column:authors;type:jsonb" json:"authors"`
	Venue          *string                     `gorm:"column:venue;type:text" json:"venue"`
	CitationCount  int                         `gorm:"column:citation_count;type:integer" json:"citationCount"`
	URL            *string                     `gorm:"column:url;type:text" json:"url"`
	DOI            *string                     `gorm:"column:doi;type:text" json:"doi"`
	FieldsOfStudy  pq.StringArray              `gorm:"column:fields_of_study;type:text[]" json:"s2FieldsOfStudy"`
	RelevanceScore *float64                    `gorm:"-" json:"relevanceScore,omitempty"`
	FetchedAt      time.Time                   `gorm:"column:fetched_at;type:timestamptz" json:"-"`
}

func (ResearchPaper) TableName() string { return "research_papers" }
