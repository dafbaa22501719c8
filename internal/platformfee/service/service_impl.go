package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/marketplace/internal/audit/domain"
	"github.com/smallbiznis/marketplace/internal/clock"
	"github.com/smallbiznis/marketplace/internal/config"
	feedomain "github.com/smallbiznis/marketplace/internal/platformfee/domain"
	"github.com/smallbiznis/marketplace/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      feedomain.Repository
	AuditSvc  auditdomain.Service     `optional:"true"`
	FeeConfig *config.FeeConfigHolder `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      feedomain.Repository
	auditSvc  auditdomain.Service
	feeConfig *config.FeeConfigHolder
}

func NewService(p Params) feedomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("platformfee.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		auditSvc:  p.AuditSvc,
		feeConfig: p.FeeConfig,
	}
}

func (s *Service) List(ctx context.Context, req feedomain.ListRequest) ([]feedomain.Response, error) {
	filter := feedomain.ListRequest{
		IsActive: req.IsActive,
		SortBy:   strings.TrimSpace(req.SortBy),
		OrderBy:  strings.TrimSpace(req.OrderBy),
	}
	if raw := strings.TrimSpace(req.TransactionType); raw != "" {
		txType, err := feedomain.ParseTransactionType(raw)
		if err != nil {
			return nil, err
		}
		filter.TransactionType = string(txType)
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	resp := make([]feedomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*feedomain.Response, error) {
	feeID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, s.db, feeID, false)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, feedomain.ErrNotFound
	}

	resp := toResponse(item)
	return &resp, nil
}

func (s *Service) Create(ctx context.Context, req feedomain.CreateRequest) (*feedomain.Response, error) {
	txType, err := feedomain.ParseTransactionType(req.TransactionType)
	if err != nil {
		return nil, err
	}
	if req.RatePercentage == nil {
		return nil, feedomain.ErrInvalidRatePercentage
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	now := s.clock.Now()
	record := &feedomain.PlatformFee{
		ID:              s.genID.Generate(),
		TransactionType: txType,
		RatePercentage:  *req.RatePercentage,
		IsActive:        isActive,
		Description:     normalizeDescription(req.Description),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	err = db.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		if record.IsActive {
			if err := s.deactivateSiblings(ctx, tx, record); err != nil {
				return err
			}
		}
		if err := s.repo.Insert(ctx, tx, record); err != nil {
			return mapWriteError(err)
		}
		return s.audit(ctx, tx, "platform_fee.created", record, nil)
	})
	if err != nil {
		return nil, err
	}

	resp := toResponse(record)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req feedomain.UpdateRequest) (*feedomain.Response, error) {
	feeID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	var updated *feedomain.PlatformFee
	err = db.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, feeID, true)
		if err != nil {
			return err
		}
		if item == nil {
			return feedomain.ErrNotFound
		}

		previousRate := item.RatePercentage
		if req.RatePercentage != nil {
			item.RatePercentage = *req.RatePercentage
		}
		if req.Description != nil {
			item.Description = normalizeDescription(req.Description)
		}
		if req.IsActive != nil {
			item.IsActive = *req.IsActive
		}
		if err := item.Validate(); err != nil {
			return err
		}

		item.UpdatedAt = s.clock.Now()
		if item.IsActive {
			if err := s.deactivateSiblings(ctx, tx, item); err != nil {
				return err
			}
		}
		if err := s.repo.Update(ctx, tx, item); err != nil {
			return mapWriteError(err)
		}

		updated = item
		return s.audit(ctx, tx, "platform_fee.updated", item, map[string]any{
			"previous_rate_percentage": previousRate.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	resp := toResponse(updated)
	return &resp, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) (*feedomain.Response, error) {
	feeID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var updated *feedomain.PlatformFee
	err = db.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, feeID, true)
		if err != nil {
			return err
		}
		if item == nil {
			return feedomain.ErrNotFound
		}
		updated = item
		if !item.IsActive {
			return nil
		}

		item.IsActive = false
		item.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, item); err != nil {
			return err
		}
		return s.audit(ctx, tx, "platform_fee.deactivated", item, nil)
	})
	if err != nil {
		return nil, err
	}

	resp := toResponse(updated)
	return &resp, nil
}

func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	cfg := config.DefaultFeeConfig()
	if s.feeConfig != nil {
		cfg = s.feeConfig.Get()
	}

	seeded := 0
	for _, item := range cfg.Defaults {
		txType, err := feedomain.ParseTransactionType(item.TransactionType)
		if err != nil {
			return seeded, err
		}

		inserted := false
		err = db.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
			if _, err := s.repo.LockByType(ctx, tx, txType); err != nil {
				return err
			}
			count, err := s.repo.CountByType(ctx, tx, txType)
			if err != nil {
				return err
			}
			if count > 0 {
				return nil
			}

			now := s.clock.Now()
			description := strings.TrimSpace(item.Description)
			record := &feedomain.PlatformFee{
				ID:              s.genID.Generate(),
				TransactionType: txType,
				RatePercentage:  decimal.NewFromFloat(item.RatePercentage).Round(2),
				IsActive:        true,
				Description:     normalizeDescription(&description),
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := record.Validate(); err != nil {
				return err
			}
			if err := s.repo.Insert(ctx, tx, record); err != nil {
				return err
			}
			inserted = true
			return nil
		})
		if err != nil {
			return seeded, fmt.Errorf("seed platform fee %s: %w", txType, err)
		}
		if inserted {
			seeded++
			s.log.Info("seeded default platform fee",
				zap.String("transaction_type", string(txType)),
				zap.Float64("rate_percentage", item.RatePercentage),
			)
		}
	}
	return seeded, nil
}

// deactivateSiblings locks every fee row of the type before flipping the
// others inactive, so concurrent writers serialize on the same rows.
func (s *Service) deactivateSiblings(ctx context.Context, tx *gorm.DB, record *feedomain.PlatformFee) error {
	if _, err := s.repo.LockByType(ctx, tx, record.TransactionType); err != nil {
		return err
	}
	return s.repo.DeactivateOthers(ctx, tx, record.TransactionType, record.ID, record.UpdatedAt)
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, action string, record *feedomain.PlatformFee, extra map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	metadata := map[string]any{
		"transaction_type": string(record.TransactionType),
		"rate_percentage":  record.RatePercentage.StringFixed(2),
		"is_active":        record.IsActive,
	}
	for k, v := range extra {
		metadata[k] = v
	}
	targetID := record.ID.String()
	return s.auditSvc.AuditLogTx(ctx, tx, nil, "", nil, action, "platform_fee", &targetID, metadata)
}

func mapWriteError(err error) error {
	if db.IsDuplicateKeyErr(err) {
		return feedomain.ErrActiveFeeConflict
	}
	return err
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, feedomain.ErrInvalidID
	}
	return id, nil
}

func toResponse(fee *feedomain.PlatformFee) feedomain.Response {
	return feedomain.Response{
		ID:              fee.ID.String(),
		TransactionType: fee.TransactionType,
		RatePercentage:  fee.RatePercentage.StringFixed(2),
		IsActive:        fee.IsActive,
		Description:     fee.Description,
		CreatedAt:       fee.CreatedAt,
		UpdatedAt:       fee.UpdatedAt,
	}
}

func normalizeDescription(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
