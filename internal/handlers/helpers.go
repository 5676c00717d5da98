package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// requestTimeout bounds the upstream work done for a single request.
const requestTimeout = 30 * time.Second

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// parsePagination reads page and page_size query parameters, ignoring
// out-of-range values.
func parsePagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = defaultPageSize

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= maxPageSize {
			pageSize = v
		}
	}
	return page, pageSize
}
