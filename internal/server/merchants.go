package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	merchantdomain "github.com/smallbiznis/marketplace/internal/merchant/domain"
)

func (s *Server) CreateMerchant(c *gin.Context) {
	var req merchantdomain.CreateMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.merchantSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetMerchant(c *gin.Context) {
	resp, err := s.merchantSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("merchantId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateMerchantCapabilities(c *gin.Context) {
	var req merchantdomain.UpdateCapabilitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.merchantSvc.UpdateCapabilities(c.Request.Context(), strings.TrimSpace(c.Param("merchantId")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
