package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scribedesk/internal/intake"
	"scribedesk/internal/render"
	"scribedesk/internal/workflow"
)

type summaryView struct {
	workflow.SummaryDraft
	SummaryHTML string `json:"summary_html"`
}

func viewOf(d workflow.SummaryDraft) summaryView {
	return summaryView{SummaryDraft: d, SummaryHTML: render.HTML(d.Summary)}
}

func (h *Handler) getSummary(c *gin.Context) {
	c.JSON(http.StatusOK, viewOf(currentWorkspace(c).Summarizer.Snapshot()))
}

type summaryInputRequest struct {
	Text  string  `json:"text"`
	Title *string `json:"title"`
}

func (h *Handler) setSummaryInput(c *gin.Context) {
	var req summaryInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	s := currentWorkspace(c).Summarizer
	s.SetText(req.Text)
	if req.Title != nil {
		s.SetTitle(*req.Title)
	}
	c.JSON(http.StatusOK, viewOf(s.Snapshot()))
}

// loadSummaryFile accepts one transcription file; extra files are ignored.
func (h *Handler) loadSummaryFile(c *gin.Context) {
	headers, err := formFiles(c, "file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	s := currentWorkspace(c).Summarizer
	if err := s.LoadFile(c.Request.Context(), intake.FromMultipart(headers[0])); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(s.Snapshot()))
}

func (h *Handler) generateSummary(c *gin.Context) {
	s := currentWorkspace(c).Summarizer
	if _, err := s.Summarize(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(s.Snapshot()))
}

func (h *Handler) beginEdit(c *gin.Context) {
	s := currentWorkspace(c).Summarizer
	if err := s.BeginEdit(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(s.Snapshot()))
}

type editRequest struct {
	Content string `json:"content"`
}

func (h *Handler) updateEdit(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	s := currentWorkspace(c).Summarizer
	if err := s.Edit(req.Content); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(s.Snapshot()))
}

func (h *Handler) cancelEdit(c *gin.Context) {
	s := currentWorkspace(c).Summarizer
	if err := s.CancelEdit(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(s.Snapshot()))
}

type saveRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// saveSummary optionally takes the final buffer and title in the same call.
func (h *Handler) saveSummary(c *gin.Context) {
	var req saveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	s := currentWorkspace(c).Summarizer
	if req.Title != nil {
		s.SetTitle(*req.Title)
	}
	if req.Content != nil {
		if err := s.Edit(*req.Content); err != nil {
			h.respondError(c, err)
			return
		}
	}
	res, err := s.Save(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      res.ID,
		"status":  res.Status,
		"summary": viewOf(s.Snapshot()),
	})
}
