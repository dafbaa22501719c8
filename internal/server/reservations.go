package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	reservationdomain "github.com/smallbiznis/marketplace/internal/reservation/domain"
)

func (s *Server) CreateReservation(c *gin.Context) {
	var req reservationdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.reservationSvc.Create(c.Request.Context(), merchantParam(c), requesterID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListReservations(c *gin.Context) {
	var query reservationdomain.ListRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.reservationSvc.List(c.Request.Context(), merchantParam(c), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Reservations, "page_info": resp.PageInfo})
}

func (s *Server) GetReservation(c *gin.Context) {
	resp, err := s.reservationSvc.Get(c.Request.Context(), merchantParam(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateReservationStatus(c *gin.Context) {
	status, ok := bindStatus(c)
	if !ok {
		return
	}

	resp, err := s.reservationSvc.UpdateStatus(c.Request.Context(), merchantParam(c), strings.TrimSpace(c.Param("id")), status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
