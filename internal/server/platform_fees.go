package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	feedomain "github.com/smallbiznis/marketplace/internal/platformfee/domain"
)

func (s *Server) CreatePlatformFee(c *gin.Context) {
	var req feedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.feeSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListPlatformFees(c *gin.Context) {
	var query struct {
		TransactionType string `form:"transaction_type"`
		IsActive        string `form:"is_active"`
		SortBy          string `form:"sort_by"`
		OrderBy         string `form:"order_by"`
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

	resp, err := s.feeSvc.List(c.Request.Context(), feedomain.ListRequest{
		TransactionType: strings.TrimSpace(query.TransactionType),
		IsActive:        isActive,
		SortBy:          strings.TrimSpace(query.SortBy),
		OrderBy:         strings.TrimSpace(query.OrderBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPlatformFee(c *gin.Context) {
	resp, err := s.feeSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePlatformFee(c *gin.Context) {
	var req feedomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.feeSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivatePlatformFee(c *gin.Context) {
	resp, err := s.feeSvc.Deactivate(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// QuotePlatformFee previews the fee-adjusted total for a subtotal.
func (s *Server) QuotePlatformFee(c *gin.Context) {
	var query struct {
		TransactionType string `form:"transaction_type"`
		Subtotal        string `form:"subtotal"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	txType, err := feedomain.ParseTransactionType(query.TransactionType)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	subtotal, err := decimal.NewFromString(strings.TrimSpace(query.Subtotal))
	if err != nil {
		AbortWithError(c, feedomain.ErrInvalidSubtotal)
		return
	}

	quote, err := s.calculator.Calculate(c.Request.Context(), txType, subtotal)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": feedomain.NewQuoteResponse(quote)})
}
