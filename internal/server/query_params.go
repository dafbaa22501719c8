package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

// activeFilter reads the optional is_active list filter. Absent means both.
func activeFilter(raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	active, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, newValidationError("is_active", "invalid_is_active", "is_active must be true or false")
	}
	return &active, nil
}

// merchantIDParam parses the :merchantId path segment. Malformed ids read as
// unknown tenants so they share the not-found response.
func merchantIDParam(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(merchantParam(c))
	if err != nil || id == 0 {
		return 0, ErrNotFound
	}
	return id, nil
}
