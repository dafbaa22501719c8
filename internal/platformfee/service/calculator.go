package service

import (
	"context"

	"github.com/shopspring/decimal"
	obsmetrics "github.com/smallbiznis/marketplace/internal/observability/metrics"
	feedomain "github.com/smallbiznis/marketplace/internal/platformfee/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type CalculatorParams struct {
	fx.In

	DB         *gorm.DB
	Repository feedomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type calculator struct {
	db      *gorm.DB
	repo    feedomain.Repository
	metrics *obsmetrics.Metrics
}

func NewCalculator(p CalculatorParams) feedomain.Calculator {
	return &calculator{db: p.DB, repo: p.Repository, metrics: p.ObsMetrics}
}

func (c *calculator) Calculate(ctx context.Context, transactionType feedomain.TransactionType, subtotal decimal.Decimal) (feedomain.Quote, error) {
	return c.CalculateTx(ctx, c.db, transactionType, subtotal)
}

// CalculateTx applies the active fee for the type; with no active fee the
// rate is zero and the total equals the subtotal.
func (c *calculator) CalculateTx(ctx context.Context, tx *gorm.DB, transactionType feedomain.TransactionType, subtotal decimal.Decimal) (feedomain.Quote, error) {
	txType, err := feedomain.ParseTransactionType(string(transactionType))
	if err != nil {
		return feedomain.Quote{}, err
	}
	if subtotal.IsNegative() {
		return feedomain.Quote{}, feedomain.ErrInvalidSubtotal
	}

	fee, err := c.repo.FindActiveByType(ctx, tx, txType)
	if err != nil {
		return feedomain.Quote{}, err
	}

	rate := decimal.Zero
	if fee != nil {
		rate = fee.RatePercentage
	}

	c.metrics.RecordFeeQuote(ctx, string(txType))
	return feedomain.ComputeQuote(txType, subtotal, rate), nil
}
