package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/marketplace/internal/audit/domain"
	"github.com/smallbiznis/marketplace/internal/clock"
	"github.com/smallbiznis/marketplace/internal/merchant/domain"
	"github.com/smallbiznis/marketplace/internal/txerror"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("merchant.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateMerchantRequest) (domain.Merchant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Merchant{}, domain.ErrInvalidName
	}

	var parentID *snowflake.ID
	if raw := strings.TrimSpace(req.ParentID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return domain.Merchant{}, domain.ErrInvalidParent
		}
		parentID = &id
	}

	now := s.clock.Now()
	merchant := domain.Merchant{
		ID:              s.genID.Generate(),
		ParentID:        parentID,
		Name:            name,
		Status:          domain.StatusActive,
		CanTakeBookings: req.CanTakeBookings,
		CanRentUnits:    req.CanRentUnits,
		CanSellProducts: req.CanSellProducts,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if parentID != nil {
			parent, err := s.repo.FindByID(ctx, tx, *parentID)
			if err != nil {
				return err
			}
			// Branches hang off a top-level merchant only.
			if parent == nil || parent.IsBranch() {
				return domain.ErrInvalidParent
			}
		}

		merchantSlug, err := s.uniqueSlug(ctx, tx, name, merchant.ID)
		if err != nil {
			return err
		}
		merchant.Slug = merchantSlug

		if err := s.repo.Insert(ctx, tx, &merchant); err != nil {
			return err
		}
		return s.audit(ctx, tx, &merchant, "merchant.created", nil)
	})
	if err != nil {
		return domain.Merchant{}, err
	}
	return merchant, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Merchant, error) {
	merchantID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || merchantID == 0 {
		return domain.Merchant{}, domain.ErrInvalidID
	}

	merchant, err := s.repo.FindByID(ctx, s.db, merchantID)
	if err != nil {
		return domain.Merchant{}, err
	}
	if merchant == nil {
		return domain.Merchant{}, domain.ErrNotFound
	}
	return *merchant, nil
}

func (s *Service) UpdateCapabilities(ctx context.Context, id string, req domain.UpdateCapabilitiesRequest) (domain.Merchant, error) {
	merchantID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || merchantID == 0 {
		return domain.Merchant{}, domain.ErrInvalidID
	}

	var updated domain.Merchant
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		merchant, err := s.repo.FindByID(ctx, tx, merchantID)
		if err != nil {
			return err
		}
		if merchant == nil {
			return domain.ErrNotFound
		}

		if req.CanTakeBookings != nil {
			merchant.CanTakeBookings = *req.CanTakeBookings
		}
		if req.CanRentUnits != nil {
			merchant.CanRentUnits = *req.CanRentUnits
		}
		if req.CanSellProducts != nil {
			merchant.CanSellProducts = *req.CanSellProducts
		}
		if req.Status != nil {
			status := domain.Status(strings.ToLower(strings.TrimSpace(*req.Status)))
			if status != domain.StatusActive && status != domain.StatusSuspended {
				return domain.ErrInvalidStatus
			}
			merchant.Status = status
		}
		merchant.UpdatedAt = s.clock.Now()

		if err := s.repo.UpdateCapabilities(ctx, tx, merchant); err != nil {
			return err
		}
		updated = *merchant
		return s.audit(ctx, tx, merchant, "merchant.capabilities_updated", map[string]any{
			"can_take_bookings": merchant.CanTakeBookings,
			"can_rent_units":    merchant.CanRentUnits,
			"can_sell_products": merchant.CanSellProducts,
			"status":            string(merchant.Status),
		})
	})
	if err != nil {
		return domain.Merchant{}, err
	}
	return updated, nil
}

// Resolve treats absent and suspended merchants alike so callers cannot probe
// for merchants they may not transact with.
func (s *Service) Resolve(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Merchant, error) {
	if db == nil {
		db = s.db
	}
	if id == 0 {
		return nil, txerror.NotFound("merchant_id")
	}
	merchant, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if merchant == nil || merchant.Status != domain.StatusActive {
		return nil, txerror.NotFound("merchant_id")
	}
	return merchant, nil
}

func (s *Service) Lookup(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Merchant, error) {
	if db == nil {
		db = s.db
	}
	merchant, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, txerror.NotFound("merchant_id")
	}
	return merchant, nil
}

func (s *Service) uniqueSlug(ctx context.Context, db *gorm.DB, name string, id snowflake.ID) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "merchant"
	}
	exists, err := s.repo.SlugExists(ctx, db, base)
	if err != nil {
		return "", err
	}
	if !exists {
		return base, nil
	}
	return fmt.Sprintf("%s-%s", base, id.Base36()), nil
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, merchant *domain.Merchant, action string, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	targetID := merchant.ID.String()
	return s.auditSvc.AuditLogTx(ctx, tx, &merchant.ID, "", nil, action, "merchant", &targetID, metadata)
}
