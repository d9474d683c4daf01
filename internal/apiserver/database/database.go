package database

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a row does not exist. Callers map it to
// their own not-found kinds.
var ErrNotFound = errors.New("record not found")

// UserFilter narrows admin member listings.
type UserFilter struct {
	AppID   string // exact app match when non-empty
	Keyword string // substring match on username/email/phone when non-empty
}

// Database defines the ledger store operations. All mutating calls
// respect a transaction carried in the context (see Transaction).
type Database interface {
	// Close closes the database connection.
	Close() error

	// Migrate creates or updates the schema.
	Migrate(ctx context.Context) error

	// Transaction runs fn inside a single transaction. The context passed
	// to fn carries the transaction; store calls made with it join it.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Apps
	CreateApp(ctx context.Context, app *App) error
	GetAppByAppID(ctx context.Context, appID string) (*App, error)
	GetAppByID(ctx context.Context, id uint) (*App, error)
	ListApps(ctx context.Context) ([]*App, error)
	UpdateApp(ctx context.Context, app *App) error

	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uint) (*User, error)
	// GetUserByIDForUpdate locks the user row for the duration of the
	// surrounding transaction.
	GetUserByIDForUpdate(ctx context.Context, id uint) (*User, error)
	GetUserByUsername(ctx context.Context, appID, username string) (*User, error)
	GetUserByMachineCode(ctx context.Context, appID, machineCode string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	ListUsers(ctx context.Context, filter UserFilter, page, limit int) ([]*User, int64, error)

	// Member levels
	CreateLevel(ctx context.Context, level *MemberLevel) error
	GetLevelByID(ctx context.Context, id uint) (*MemberLevel, error)
	ListLevels(ctx context.Context) ([]*MemberLevel, error)
	UpdateLevel(ctx context.Context, level *MemberLevel) error
	// HighestLevelForPoints returns the active level with the largest
	// level_value among those whose min_points does not exceed points,
	// or ErrNotFound when no level qualifies.
	HighestLevelForPoints(ctx context.Context, points int64) (*MemberLevel, error)

	// Point records
	CreatePointRecord(ctx context.Context, record *PointRecord) error
	ListPointRecords(ctx context.Context, userID uint, page, limit int) ([]*PointRecord, int64, error)

	// Recharge cards
	CreateCard(ctx context.Context, card *RechargeCard) error
	GetCardByNo(ctx context.Context, cardNo string) (*RechargeCard, error)
	// GetCardByNoForUpdate locks the card row for the duration of the
	// surrounding transaction.
	GetCardByNoForUpdate(ctx context.Context, cardNo string) (*RechargeCard, error)
	UpdateCard(ctx context.Context, card *RechargeCard) error
	// MarkCardExpired flips an unused card to expired. It is a no-op for
	// cards already used or expired.
	MarkCardExpired(ctx context.Context, id uint) error
	ListCards(ctx context.Context, status string, page, limit int) ([]*RechargeCard, int64, error)

	// Recharge records
	CreateRechargeRecord(ctx context.Context, record *RechargeRecord) error
	ListRechargeRecords(ctx context.Context, userID uint, page, limit int) ([]*RechargeRecord, int64, error)

	// System configs
	ListSystemConfigs(ctx context.Context, keys ...string) ([]*SystemConfig, error)
	UpsertSystemConfig(ctx context.Context, cfg *SystemConfig) error

	// Admins
	CreateAdmin(ctx context.Context, admin *Admin) error
	GetAdminByUsername(ctx context.Context, username string) (*Admin, error)
	UpdateAdmin(ctx context.Context, admin *Admin) error
}
