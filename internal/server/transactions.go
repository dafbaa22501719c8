package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

type updateStatusRequest struct {
	Status string `json:"status"`
}

func bindStatus(c *gin.Context) (string, bool) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return "", false
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		AbortWithError(c, newValidationError("status", "required", "status is required"))
		return "", false
	}
	return status, true
}

func merchantParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("merchantId"))
}
