package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/scholarchat/internal/services"
	"github.com/yoockh/scholarchat/internal/utils"
)

type RunHandler struct {
	runs services.RunHistory // nil when the run log is disabled
}

func NewRunHandler(runs services.RunHistory) *RunHandler {
	return &RunHandler{runs: runs}
}

func (h *RunHandler) Mine(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	h.list(c, userID)
}

// ByUser is the admin view of another user's runs.
func (h *RunHandler) ByUser(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	h.list(c, c.Param("user_id"))
}

func (h *RunHandler) list(c *gin.Context, userID string) {
	const op = "RunHandler.List"

	if h.runs == nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "chat run log is disabled", nil))
		return
	}

	runs, err := h.runs.ListByUser(c.Request.Context(), userID, int64(queryLimit(c, 50, 500)))
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to list chat runs", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "runs": runs})
}
