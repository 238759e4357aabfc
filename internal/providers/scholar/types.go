package scholar

import (
	"time"

	"github.com/yoockh/scholarchat/internal/models"
)

type searchResponse struct {
	Total int        `json:"total"`
	Next  *int       `json:"next"`
	Data  []rawPaper `json:"data"`
}

type rawPaper struct {
	PaperID       string      `json:"paperId"`
	Title         string      `json:"title"`
	Abstract      *string     `json:"abstract"`
	Year          *int        `json:"year"`
	Authors       []rawAuthor `json:"authors"`
	Venue         *string     `json:"venue"`
	CitationCount *int        `json:"citationCount"`
	URL           *string     `json:"url"`
	ExternalIDs   *struct {
		DOI *string `json:"DOI"`
	} `json:"externalIds"`
	S2FieldsOfStudy []struct {
		Category string `json:"category"`
	} `json:"s2FieldsOfStudy"`
}

type rawAuthor struct {
	AuthorID *string `json:"authorId"`
	Name     string  `json:"name"`
}

func (r rawPaper) normalize() models.ResearchPaper {
	p := models.ResearchPaper{
		PaperID:   r.PaperID,
		Title:     r.Title,
		Abstract:  nonEmpty(r.Abstract),
		Year:      r.Year,
		Authors:   make([]models.Author, 0, len(r.Authors)),
		Venue:     nonEmpty(r.Venue),
		FetchedAt: time.Now().UTC(),
	}
	for _, a := range r.Authors {
		p.Authors = append(p.Authors, models.Author{AuthorID: a.AuthorID, Name: a.Name})
	}
	if r.CitationCount != nil && *r.CitationCount > 0 {
		p.CitationCount = *r.CitationCount
	}
	if u := nonEmpty(r.URL); u != nil {
		p.URL = u
	} else {
		canonical := CanonicalURL(r.PaperID)
		p.URL = &canonical
	}
	if r.ExternalIDs != nil {
		p.DOI = nonEmpty(r.ExternalIDs.DOI)
	}
	if r.S2FieldsOfStudy != nil {
		p.FieldsOfStudy = make([]string, 0, len(r.S2FieldsOfStudy))
		for _, f := range r.S2FieldsOfStudy {
			p.FieldsOfStudy = append(p.FieldsOfStudy, f.Category)
		}
	}
	return p
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
