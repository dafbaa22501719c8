package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/marketplace/internal/catalog/domain"
)

func (s *Server) CreateService(c *gin.Context) {
	var req catalogdomain.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.CreateService(c.Request.Context(), strings.TrimSpace(c.Param("merchantId")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListServices(c *gin.Context) {
	var query struct {
		ServiceType string `form:"service_type"`
		IsActive    string `form:"is_active"`
		SortBy      string `form:"sort_by"`
		OrderBy     string `form:"order_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	isActive, err := activeFilter(query.IsActive)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.catalogSvc.ListServices(c.Request.Context(), strings.TrimSpace(c.Param("merchantId")), catalogdomain.ListServiceRequest{
		ServiceType: strings.TrimSpace(query.ServiceType),
		IsActive:    isActive,
		SortBy:      strings.TrimSpace(query.SortBy),
		OrderBy:     strings.TrimSpace(query.OrderBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetService(c *gin.Context) {
	resp, err := s.catalogSvc.GetService(c.Request.Context(), strings.TrimSpace(c.Param("merchantId")), strings.TrimSpace(c.Param("serviceId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateService(c *gin.Context) {
	var req catalogdomain.UpdateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.UpdateService(c.Request.Context(), strings.TrimSpace(c.Param("merchantId")), strings.TrimSpace(c.Param("serviceId")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSchedules(c *gin.Context) {
	resp, err := s.catalogSvc.ListSchedules(c.Request.Context(), strings.TrimSpace(c.Param("merchantId")), strings.TrimSpace(c.Param("serviceId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// SetSchedules replaces the weekly schedule of a bookable service.
func (s *Server) SetSchedules(c *gin.Context) {
	var req catalogdomain.SetSchedulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.SetSchedules(c.Request.Context(), strings.TrimSpace(c.Param("merchantId")), strings.TrimSpace(c.Param("serviceId")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
