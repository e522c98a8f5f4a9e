// Package handlers implements the read/admin HTTP API on gin.
package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// PageResponse wraps a paginated listing.
type PageResponse struct {
	Items    interface{} `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// parsePagination reads page and page_size, falling back to defaults on
// missing or out-of-range values.
func parsePagination(c *gin.Context) (page, pageSize int) {
	page, pageSize = 1, defaultPageSize
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}
	if ps, err := strconv.Atoi(c.Query("page_size")); err == nil && ps > 0 && ps <= maxPageSize {
		pageSize = ps
	}
	return page, pageSize
}

// writeAppError maps err to a status through its error code. Server-side
// failures are masked.
func writeAppError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	_ = c.Error(err)

	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusBadGateway {
		c.AbortWithStatusJSON(status, ErrorResponse{Code: string(errors.ErrCodeInternal), Message: "internal server error"})
		return
	}

	resp := ErrorResponse{Code: string(code), Message: err.Error()}
	var ae *errors.AppError
	if stderrors.As(err, &ae) {
		resp.Message = ae.Message
		resp.Detail = ae.Detail
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, msg string) {
	writeAppError(c, errors.InvalidParam(msg))
}
