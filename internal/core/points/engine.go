// Package points owns the point ledger: balance mutations, their
// audit trail, and the level promotion that follows a grant.
package points

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/halolabs/memberd/internal/apiserver/database"
	"github.com/halolabs/memberd/internal/common/errorx"
	"github.com/halolabs/memberd/internal/core/level"
	"github.com/halolabs/memberd/pkg/metrics"
)

// Record types written to the audit trail when the caller does not
// supply one.
const (
	TypeEarn   = "earn"
	TypeDeduct = "deduct"
)

// Engine applies point deltas atomically. Every mutation locks the
// user row, so concurrent deductions cannot drive a balance negative.
type Engine struct {
	db      database.Database
	levels  *level.Resolver
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewEngine creates a points engine. metrics may be nil.
func NewEngine(db database.Database, levels *level.Resolver, logger *zap.Logger, m *metrics.Metrics) *Engine {
	return &Engine{db: db, levels: levels, logger: logger.Named("points"), metrics: m}
}

// ApplyResult reports the user's state after a mutation committed.
type ApplyResult struct {
	Points  int64
	LevelID uint
}

// Apply adds delta to the user's balance and writes the signed audit
// record. Deductions that would leave the balance negative are
// rejected before any write. A positive delta re-resolves the user's
// level; deductions never demote. recordType defaults from the sign
// of delta when empty.
func (e *Engine) Apply(ctx context.Context, userID uint, delta int64, recordType, description string, relatedID *uint) (*ApplyResult, error) {
	if recordType == "" {
		if delta < 0 {
			recordType = TypeDeduct
		} else {
			recordType = TypeEarn
		}
	}

	var result ApplyResult
	err := database.TransactionWithRetry(ctx, e.db, func(ctx context.Context) error {
		user, err := e.db.GetUserByIDForUpdate(ctx, userID)
		if errors.Is(err, database.ErrNotFound) {
			return errorx.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: load user: %v", errorx.ErrStoreUnavailable, err)
		}

		if delta < 0 && user.Points+delta < 0 {
			return errorx.ErrInsufficientPoints.WithDetail("points", user.Points)
		}
		user.Points += delta

		if delta > 0 {
			lvl, err := e.levels.Resolve(ctx, user.Points)
			if err != nil {
				return err
			}
			if lvl != nil && lvl.ID != user.LevelID {
				e.logger.Info("level changed",
					zap.Uint("user_id", user.ID),
					zap.Uint("from", user.LevelID),
					zap.Uint("to", lvl.ID))
				user.LevelID = lvl.ID
			}
		}

		if err := e.db.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("%w: update user: %v", errorx.ErrStoreUnavailable, err)
		}
		record := &database.PointRecord{
			UserID:      user.ID,
			AppID:       user.AppID,
			Points:      delta,
			Type:        recordType,
			Description: description,
			RelatedID:   relatedID,
		}
		if err := e.db.CreatePointRecord(ctx, record); err != nil {
			return fmt.Errorf("%w: create point record: %v", errorx.ErrStoreUnavailable, err)
		}
		result = ApplyResult{Points: user.Points, LevelID: user.LevelID}
		return nil
	})
	e.metrics.ObservePointsOp(recordType, err)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRecords returns the user's audit trail, newest first.
func (e *Engine) ListRecords(ctx context.Context, userID uint, page, limit int) ([]*database.PointRecord, int64, error) {
	records, total, err := e.db.ListPointRecords(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list point records: %v", errorx.ErrStoreUnavailable, err)
	}
	return records, total, nil
}
