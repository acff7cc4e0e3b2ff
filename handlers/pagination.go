package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type PaginationParams struct {
	Limit  int
	Before *time.Time
}

type CursorResponse struct {
	Data       interface{} `json:"data"`
	NextCursor string      `json:"next_cursor,omitempty"`
	HasMore    bool        `json:"has_more"`
}

func ParsePagination(c *gin.Context) PaginationParams {
	p := PaginationParams{Limit: DefaultLimit}

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			p.Limit = l
		}
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	if beforeStr := c.Query("before"); beforeStr != "" {
		if t, err := time.Parse(time.RFC3339Nano, beforeStr); err == nil {
			p.Before = &t
		}
	}

	return p
}

// cursorKey is the part of a cache key that identifies the requested page.
func (p PaginationParams) cursorKey() string {
	before := ""
	if p.Before != nil {
		before = p.Before.Format(time.RFC3339Nano)
	}
	return strconv.Itoa(p.Limit) + ":" + before
}

// page trims the extra row fetched to detect more results and builds the
// cursor from the last timestamp kept.
func page[T any](rows []T, limit int, ts func(T) time.Time) CursorResponse {
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	var nextCursor string
	if hasMore && len(rows) > 0 {
		nextCursor = ts(rows[len(rows)-1]).Format(time.RFC3339Nano)
	}
	return CursorResponse{Data: rows, NextCursor: nextCursor, HasMore: hasMore}
}
