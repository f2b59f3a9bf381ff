package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/to-wer/media-renamer/internal/identify"
	"github.com/to-wer/media-renamer/internal/library"
	"github.com/to-wer/media-renamer/internal/service"
)

// Request types

type RenameRequest struct {
	Name string `json:"name" binding:"required"`
}

type DeleteRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

type ParseRequest struct {
	Filename string `json:"filename" binding:"required"`
}

// Response types

type ParseResponse struct {
	Parsed      identify.ParsedTitle  `json:"parsed"`
	DisplayName string                `json:"display_name"`
	Episode     *identify.EpisodeInfo `json:"episode,omitempty"`
	Quality     identify.QualityInfo  `json:"quality"`
}

// Handlers

func (s *Server) listProposals(c *gin.Context) {
	sortBy := library.ParseSortKey(c.Query("sort_by"))
	desc, _ := strconv.ParseBool(c.DefaultQuery("descending", "false"))

	proposals, err := s.proposals.List(c.Request.Context(), sortBy, desc)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, proposals)
}

func (s *Server) listPending(c *gin.Context) {
	proposals, err := s.proposals.Pending(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, proposals)
}

func (s *Server) listHistory(c *gin.Context) {
	proposals, err := s.proposals.History(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, proposals)
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.proposals.Stats(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) getProposal(c *gin.Context) {
	p, err := s.proposals.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func (s *Server) approveProposal(c *gin.Context) {
	p, err := s.proposals.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		if p != nil {
			// Execution failed; the proposal carries the error state.
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "proposal": p})
			return
		}
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func (s *Server) rejectProposal(c *gin.Context) {
	p, err := s.proposals.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func (s *Server) renameProposal(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.proposals.Rename(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func (s *Server) deleteProposal(c *gin.Context) {
	if err := s.proposals.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Proposal deleted"})
}

func (s *Server) deleteProposals(c *gin.Context) {
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	n, err := s.proposals.DeleteMany(c.Request.Context(), req.IDs)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (s *Server) clearProposals(c *gin.Context) {
	n, err := s.proposals.Clear(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (s *Server) parseFilename(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	parsed := s.proposals.Pipeline().Parser().Parse(req.Filename)
	resp := ParseResponse{
		Parsed:      parsed,
		DisplayName: identify.NormalizeForDisplay(req.Filename),
		Quality:     identify.ExtractQuality(req.Filename),
	}
	if parsed.Type == library.MediaTypeEpisode {
		ep := identify.ExtractEpisode(req.Filename)
		resp.Episode = &ep
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) triggerScan(c *gin.Context) {
	if s.scanner == nil {
		errorResponse(c, http.StatusServiceUnavailable, "watcher is not running")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"queued": s.scanner.TriggerScan()})
}

func (s *Server) getStatus(c *gin.Context) {
	resp := gin.H{"status": "ok"}

	stats, err := s.proposals.Stats(c.Request.Context())
	if err != nil {
		resp["status"] = "degraded"
		resp["error"] = err.Error()
	} else {
		resp["proposals"] = stats
	}

	if s.scanner != nil {
		resp["watcher"] = s.scanner.GetStatus()
	}

	c.JSON(http.StatusOK, resp)
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, library.ErrProposalNotFound):
		errorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, library.ErrNotPending):
		errorResponse(c, http.StatusConflict, err.Error())
	case service.IsClientError(err):
		errorResponse(c, http.StatusBadRequest, err.Error())
	default:
		errorResponse(c, http.StatusInternalServerError, err.Error())
	}
}
