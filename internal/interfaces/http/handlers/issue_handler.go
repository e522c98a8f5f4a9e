package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Issue-Intelligence/internal/domain/issue"
)

// IssueService is the application surface the issue endpoints need.
type IssueService interface {
	List(ctx context.Context, opts ...issue.ListOption) ([]*issue.Issue, int64, error)
	Get(ctx context.Context, id string) (*issue.Issue, error)
	Transitions(ctx context.Context, id string) ([]*issue.StateTransition, error)
	Archive(ctx context.Context, id, reason string) (*issue.Issue, error)
	RebuildCentroid(ctx context.Context, id string) (*issue.Issue, error)
}

// IssueHandler serves /issues.
type IssueHandler struct {
	svc IssueService
}

// NewIssueHandler creates an IssueHandler.
func NewIssueHandler(svc IssueService) *IssueHandler {
	return &IssueHandler{svc: svc}
}

// ArchiveRequest is the body of POST /issues/:id/archive.
type ArchiveRequest struct {
	Reason string `json:"reason"`
}

// List handles GET /issues.
//
// Query: topic, state (repeatable or comma separated), min_priority,
// include_archived, page, page_size.
func (h *IssueHandler) List(c *gin.Context) {
	page, pageSize := parsePagination(c)
	opts := []issue.ListOption{
		issue.WithLimit(pageSize),
		issue.WithOffset((page - 1) * pageSize),
	}

	if topic := c.Query("topic"); topic != "" {
		opts = append(opts, issue.WithTopic(topic))
	}
	for _, raw := range c.QueryArray("state") {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			st, err := issue.ParseState(part)
			if err != nil {
				writeAppError(c, err)
				return
			}
			opts = append(opts, issue.WithStates(st))
		}
	}
	if v := c.Query("min_priority"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil || p < 0 || p > 100 {
			badRequest(c, "min_priority must be a number in [0, 100]")
			return
		}
		opts = append(opts, issue.WithMinPriority(p))
	}
	if include, _ := strconv.ParseBool(c.Query("include_archived")); include {
		opts = append(opts, issue.WithArchived())
	}

	items, total, err := h.svc.List(c.Request.Context(), opts...)
	if err != nil {
		writeAppError(c, err)
		return
	}
	if items == nil {
		items = []*issue.Issue{}
	}
	c.JSON(http.StatusOK, PageResponse{Items: items, Total: total, Page: page, PageSize: pageSize})
}

// Get handles GET /issues/:id.
func (h *IssueHandler) Get(c *gin.Context) {
	iss, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, iss)
}

// Transitions handles GET /issues/:id/transitions.
func (h *IssueHandler) Transitions(c *gin.Context) {
	trs, err := h.svc.Transitions(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	if trs == nil {
		trs = []*issue.StateTransition{}
	}
	c.JSON(http.StatusOK, gin.H{"items": trs})
}

// Archive handles POST /issues/:id/archive.
func (h *IssueHandler) Archive(c *gin.Context) {
	var req ArchiveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "archived via api"
	}

	iss, err := h.svc.Archive(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, iss)
}

// RebuildCentroid handles POST /issues/:id/centroid.
func (h *IssueHandler) RebuildCentroid(c *gin.Context) {
	iss, err := h.svc.RebuildCentroid(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": iss.ID, "centroid_dim": len(iss.Centroid), "updated_at": iss.UpdatedAt})
}
