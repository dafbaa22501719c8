package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	serviceorderdomain "github.com/smallbiznis/marketplace/internal/serviceorder/domain"
)

func (s *Server) CreateServiceOrder(c *gin.Context) {
	var req serviceorderdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.Create(c.Request.Context(), merchantParam(c), requesterID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListServiceOrders(c *gin.Context) {
	var query serviceorderdomain.ListRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.List(c.Request.Context(), merchantParam(c), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.ServiceOrders, "page_info": resp.PageInfo})
}

func (s *Server) GetServiceOrder(c *gin.Context) {
	resp, err := s.orderSvc.Get(c.Request.Context(), merchantParam(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateServiceOrderStatus(c *gin.Context) {
	status, ok := bindStatus(c)
	if !ok {
		return
	}

	resp, err := s.orderSvc.UpdateStatus(c.Request.Context(), merchantParam(c), strings.TrimSpace(c.Param("id")), status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
