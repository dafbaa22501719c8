package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/marketplace/internal/audit/domain"
	"github.com/smallbiznis/marketplace/internal/audit/repository"
	"github.com/smallbiznis/marketplace/internal/auditcontext"
	"github.com/smallbiznis/marketplace/internal/clock"
	"github.com/smallbiznis/marketplace/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (auditdomain.Service, *clock.FakeClock, *gorm.DB) {
	db := testutil.OpenSQLite(t, &auditdomain.AuditLog{})
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.Node(t),
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, clk, db
}

func TestAuditLogResolvesActorAndRequestFromContext(t *testing.T) {
	svc, _, db := newTestService(t)
	merchantID := snowflake.ID(42)
	targetID := "1001"

	ctx := auditcontext.WithRequestID(context.Background(), "req-1")
	ctx = auditcontext.WithActor(ctx, "requester", "cust-7")
	ctx = auditcontext.WithIPAddress(ctx, "10.0.0.1")

	err := svc.AuditLog(ctx, &merchantID, "", nil, "booking.created", "booking", &targetID, map[string]any{"status": "confirmed", "": "ignored"})
	require.NoError(t, err)

	var stored auditdomain.AuditLog
	require.NoError(t, db.First(&stored).Error)
	assert.Equal(t, "requester", stored.ActorType)
	require.NotNil(t, stored.ActorID)
	assert.Equal(t, "cust-7", *stored.ActorID)
	assert.Equal(t, "req-1", stored.Metadata["request_id"])
	assert.Equal(t, "confirmed", stored.Metadata["status"])
	assert.NotContains(t, stored.Metadata, "")
	require.NotNil(t, stored.IPAddress)
	assert.Equal(t, "10.0.0.1", *stored.IPAddress)
}

func TestAuditLogRejectsEmptyAction(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.AuditLog(context.Background(), nil, "", nil, "  ", "booking", nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestAuditLogTxRollsBackWithTransaction(t *testing.T) {
	svc, _, db := newTestService(t)
	merchantID := snowflake.ID(42)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.AuditLogTx(context.Background(), tx, &merchantID, "system", nil, "booking.created", "booking", nil, nil); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var count int64
	require.NoError(t, db.Model(&auditdomain.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListPaginatesPerMerchant(t *testing.T) {
	svc, clk, _ := newTestService(t)
	ctx := context.Background()
	merchantID := snowflake.ID(42)
	otherID := snowflake.ID(43)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(ctx, &merchantID, "system", nil, "booking.status_changed", "booking", nil, nil))
		clk.Advance(time.Minute)
	}
	require.NoError(t, svc.AuditLog(ctx, &otherID, "system", nil, "booking.created", "booking", nil, nil))

	req := auditdomain.ListAuditLogRequest{MerchantID: merchantID}
	req.PageSize = 2
	first, err := svc.List(ctx, req)
	require.NoError(t, err)
	assert.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	req.PageToken = first.NextPageToken
	second, err := svc.List(ctx, req)
	require.NoError(t, err)
	assert.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)
	assert.True(t, second.AuditLogs[0].CreatedAt.Before(first.AuditLogs[1].CreatedAt))
}

func TestListValidatesInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, auditdomain.ListAuditLogRequest{})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidMerchant)

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{MerchantID: 1, StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)

	req := auditdomain.ListAuditLogRequest{MerchantID: 1}
	req.PageToken = "not-a-token"
	_, err = svc.List(ctx, req)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
