// Package recharge redeems membership cards and opens online recharge
// orders, keeping the recharge audit trail alongside.
package recharge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/halolabs/memberd/internal/apiserver/database"
	"github.com/halolabs/memberd/internal/common/errorx"
	"github.com/halolabs/memberd/pkg/metrics"
	"github.com/halolabs/memberd/pkg/utils"
)

// errHardExpired aborts the redemption transaction when a card sits
// past its hard expiry while still marked unused. The status flip to
// expired happens after rollback so it survives the abort.
var errHardExpired = errors.New("recharge card past hard expiry")

// Engine redeems cards and creates online orders. Card redemption
// locks both the user and the card row, so a card can only ever be
// consumed once.
type Engine struct {
	db      database.Database
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewEngine creates a recharge engine. metrics may be nil.
func NewEngine(db database.Database, logger *zap.Logger, m *metrics.Metrics) *Engine {
	return &Engine{db: db, logger: logger.Named("recharge"), metrics: m, now: time.Now}
}

// RedeemResult reports what a successful redemption granted.
type RedeemResult struct {
	ExpiresDays     int
	Points          int64
	MemberExpiresAt time.Time
	TotalPoints     int64
}

// RedeemCard consumes an unused card for the user: marks the card
// used, extends the membership expiry by the card's day count and
// grants its bonus points, all in one transaction. The extension
// stacks on a still-running membership and restarts from now on a
// lapsed or absent one.
//
// The card secret is checked before any state inspection, so a caller
// without it cannot probe whether a card was already consumed.
func (e *Engine) RedeemCard(ctx context.Context, userID uint, cardNo, cardPassword string) (*RedeemResult, error) {
	var (
		result        RedeemResult
		expiredCardID uint
	)
	err := database.TransactionWithRetry(ctx, e.db, func(ctx context.Context) error {
		user, err := e.db.GetUserByIDForUpdate(ctx, userID)
		if errors.Is(err, database.ErrNotFound) {
			return errorx.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: load user: %v", errorx.ErrStoreUnavailable, err)
		}

		card, err := e.db.GetCardByNoForUpdate(ctx, cardNo)
		if errors.Is(err, database.ErrNotFound) {
			return errorx.ErrCardNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: load card: %v", errorx.ErrStoreUnavailable, err)
		}

		if bcrypt.CompareHashAndPassword([]byte(card.CardPassword), []byte(cardPassword)) != nil {
			return errorx.ErrInvalidCardPassword
		}

		switch card.Status {
		case database.CardStatusUsed:
			return errorx.ErrCardAlreadyUsed
		case database.CardStatusExpired:
			return errorx.ErrCardExpired
		}

		now := e.now()
		if card.ExpiredAt != nil && card.ExpiredAt.Before(now) {
			expiredCardID = card.ID
			return errHardExpired
		}

		card.Status = database.CardStatusUsed
		card.UsedBy = &user.ID
		card.UsedAt = &now
		if err := e.db.UpdateCard(ctx, card); err != nil {
			return fmt.Errorf("%w: update card: %v", errorx.ErrStoreUnavailable, err)
		}

		base := now
		if user.MemberExpiresAt != nil && user.MemberExpiresAt.After(now) {
			base = *user.MemberExpiresAt
		}
		newExpiry := base.AddDate(0, 0, card.ExpiresDays)
		user.MemberExpiresAt = &newExpiry
		// Bonus points do not re-resolve the level; levels track
		// earned points, not purchased ones.
		user.Points += card.Points
		if err := e.db.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("%w: update user: %v", errorx.ErrStoreUnavailable, err)
		}

		record := &database.RechargeRecord{
			UserID:      user.ID,
			AppID:       user.AppID,
			ExpiresDays: card.ExpiresDays,
			Points:      card.Points,
			Type:        database.RechargeTypeCard,
			CardID:      &card.ID,
			Status:      database.RechargeStatusSuccess,
			PaidAt:      &now,
		}
		if err := e.db.CreateRechargeRecord(ctx, record); err != nil {
			return fmt.Errorf("%w: create recharge record: %v", errorx.ErrStoreUnavailable, err)
		}

		result = RedeemResult{
			ExpiresDays:     card.ExpiresDays,
			Points:          card.Points,
			MemberExpiresAt: newExpiry,
			TotalPoints:     user.Points,
		}
		return nil
	})
	if errors.Is(err, errHardExpired) {
		if markErr := e.db.MarkCardExpired(ctx, expiredCardID); markErr != nil {
			e.logger.Warn("failed to mark card expired",
				zap.Uint("card_id", expiredCardID),
				zap.Error(markErr))
		}
		err = errorx.ErrCardExpired
	}
	e.metrics.ObserveRedemption(err)
	if err != nil {
		return nil, err
	}
	e.logger.Info("card redeemed",
		zap.Uint("user_id", userID),
		zap.String("card_no", cardNo),
		zap.Int("expires_days", result.ExpiresDays),
		zap.Int64("points", result.Points))
	return &result, nil
}

// OrderResult identifies a freshly opened online order.
type OrderResult struct {
	OrderID int64
	OrderNo string
	Status  string
}

// CreateOnlineOrder opens a pending online recharge order for the
// user. It mutates no user state; settlement is handled out of band
// by the payment provider callback.
func (e *Engine) CreateOnlineOrder(ctx context.Context, userID uint, expiresDays int, points int64, paymentMethod string) (*OrderResult, error) {
	user, err := e.db.GetUserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, errorx.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load user: %v", errorx.ErrStoreUnavailable, err)
	}

	orderNo := utils.OrderNo()
	record := &database.RechargeRecord{
		UserID:        user.ID,
		AppID:         user.AppID,
		ExpiresDays:   expiresDays,
		Points:        points,
		Type:          database.RechargeTypeOnline,
		OrderNo:       &orderNo,
		PaymentMethod: paymentMethod,
		Status:        database.RechargeStatusPending,
	}
	if err := e.db.CreateRechargeRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: create recharge record: %v", errorx.ErrStoreUnavailable, err)
	}
	e.metrics.ObserveOrder()
	return &OrderResult{
		OrderID: int64(record.ID),
		OrderNo: orderNo,
		Status:  record.Status,
	}, nil
}

// ListRecords returns the user's recharge history, newest first.
func (e *Engine) ListRecords(ctx context.Context, userID uint, page, limit int) ([]*database.RechargeRecord, int64, error) {
	records, total, err := e.db.ListRechargeRecords(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list recharge records: %v", errorx.ErrStoreUnavailable, err)
	}
	return records, total, nil
}
