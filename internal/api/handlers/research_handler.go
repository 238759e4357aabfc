package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/scholarchat/internal/services"
	"github.com/yoockh/scholarchat/internal/utils"
)

type ResearchHandler struct {
	research services.ResearchService
	papers   services.PaperService
}

func NewResearchHandler(research services.ResearchService, papers services.PaperService) *ResearchHandler {
	return &ResearchHandler{research: research, papers: papers}
}

type ResearchRequest struct {
	Query     string `json:"query" binding:"required"`
	NumPapers int    `json:"num_papers"`
}

func (h *ResearchHandler) Research(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	var req ResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ResearchHandler.Research", "query is required", err))
		return
	}

	ans, err := h.research.Answer(c.Request.Context(), req.Query, req.NumPapers)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ans)
}

func (h *ResearchHandler) Paper(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	p, err := h.papers.GetPaper(c.Request.Context(), c.Param("paper_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

type BatchPapersRequest struct {
	PaperIDs []string `json:"paper_ids" binding:"required"`
}

func (h *ResearchHandler) Papers(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	var req BatchPapersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ResearchHandler.Papers", "paper_ids are required", err))
		return
	}

	papers, err := h.papers.GetPapers(c.Request.Context(), req.PaperIDs)
	if err != nil {
		writeError(c, err)
		return
	}

	// entries stay aligned with paper_ids; unknown ids are null
	c.JSON(http.StatusOK, gin.H{"papers": papers})
}
