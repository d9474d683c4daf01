package database

import (
	"time"

	"github.com/shopspring/decimal"
)

// Login modes supported by an app
const (
	LoginModePassword = "password"
	LoginModeMachine  = "machine"
)

// Charge modes gating membership enforcement
const (
	ChargeModeFree = "free"
	ChargeModePaid = "paid"
)

// Row statuses shared by apps, users, levels and admins
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Recharge card statuses
const (
	CardStatusUnused  = "unused"
	CardStatusUsed    = "used"
	CardStatusExpired = "expired"
)

// Recharge record types and statuses
const (
	RechargeTypeCard   = "card"
	RechargeTypeOnline = "online"

	RechargeStatusPending = "pending"
	RechargeStatusSuccess = "success"
)

// App is a tenant. Users, cards and records are segregated per app.
type App struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	AppID      string    `json:"app_id" gorm:"type:varchar(100);uniqueIndex;not null"`
	AppName    string    `json:"app_name" gorm:"type:varchar(200);not null"`
	AppSecret  string    `json:"-" gorm:"type:varchar(255);not null"`
	LoginMode  string    `json:"login_mode" gorm:"type:varchar(20);not null;default:'password'"`
	ChargeMode string    `json:"charge_mode" gorm:"type:varchar(20);not null;default:'free'"`
	Status     string    `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (App) TableName() string { return "apps" }

// User belongs to exactly one app. Username or machine code identify it
// depending on the app's login mode; both are unique per app when set.
type User struct {
	ID              uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	AppID           string          `json:"app_id" gorm:"type:varchar(100);not null;uniqueIndex:idx_users_app_username;uniqueIndex:idx_users_app_machine"`
	Username        *string         `json:"username" gorm:"type:varchar(100);uniqueIndex:idx_users_app_username"`
	Password        string          `json:"-" gorm:"type:varchar(255)"`
	MachineCode     *string         `json:"machine_code" gorm:"type:varchar(255);uniqueIndex:idx_users_app_machine"`
	Email           string          `json:"email" gorm:"type:varchar(200)"`
	Phone           string          `json:"phone" gorm:"type:varchar(20)"`
	AvatarURL       string          `json:"avatar_url" gorm:"type:varchar(500)"`
	Points          int64           `json:"points" gorm:"not null;default:0"`
	Balance         decimal.Decimal `json:"balance" gorm:"type:decimal(10,2);not null;default:0"`
	LevelID         uint            `json:"level_id" gorm:"not null;default:1"`
	MemberExpiresAt *time.Time      `json:"member_expires_at"` // nil means never subscribed
	Status          string          `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	LastLoginAt     *time.Time      `json:"last_login_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// MemberLevel is an ordered tier derived from a point threshold.
// LevelValue is the rank; higher rank wins when several levels qualify.
type MemberLevel struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	LevelName  string    `json:"level_name" gorm:"type:varchar(100);not null"`
	LevelValue int       `json:"level_value" gorm:"not null"`
	MinPoints  int64     `json:"min_points" gorm:"not null;default:0"`
	Discount   float64   `json:"discount" gorm:"type:decimal(3,2);not null;default:1"`
	Benefits   string    `json:"benefits" gorm:"type:text"` // JSON stored as text
	Status     string    `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (MemberLevel) TableName() string { return "member_levels" }

// PointRecord is an append-only audit entry of a points mutation.
// Points carries the signed delta actually applied.
type PointRecord struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID      uint      `json:"user_id" gorm:"not null;index"`
	AppID       string    `json:"app_id" gorm:"type:varchar(100);not null;index"`
	Points      int64     `json:"points" gorm:"not null"`
	Type        string    `json:"type" gorm:"type:varchar(50);not null"`
	Description string    `json:"description" gorm:"type:varchar(500)"`
	RelatedID   *uint     `json:"related_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (PointRecord) TableName() string { return "point_records" }

// RechargeCard is a single-use voucher. Redeeming it extends membership
// by ExpiresDays and grants Points bonus points.
type RechargeCard struct {
	ID           uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	CardNo       string     `json:"card_no" gorm:"type:varchar(100);uniqueIndex;not null"`
	CardPassword string     `json:"-" gorm:"type:varchar(255);not null"`
	ExpiresDays  int        `json:"expires_days" gorm:"not null"`
	Points       int64      `json:"points" gorm:"not null;default:0"`
	Status       string     `json:"status" gorm:"type:varchar(20);not null;default:'unused';index"`
	UsedBy       *uint      `json:"used_by"`
	UsedAt       *time.Time `json:"used_at"`
	ExpiredAt    *time.Time `json:"expired_at"` // hard expiry, card unusable past this instant
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (RechargeCard) TableName() string { return "recharge_cards" }

// RechargeRecord is an append-only audit entry of a card redemption or
// an online order. Online orders stay pending until settlement, which
// happens outside this system.
type RechargeRecord struct {
	ID            uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID        uint       `json:"user_id" gorm:"not null;index"`
	AppID         string     `json:"app_id" gorm:"type:varchar(100);not null;index"`
	ExpiresDays   int        `json:"expires_days"`
	Points        int64      `json:"points" gorm:"not null;default:0"`
	Type          string     `json:"type" gorm:"type:varchar(50);not null"`
	CardID        *uint      `json:"card_id"`
	OrderNo       *string    `json:"order_no" gorm:"type:varchar(100);uniqueIndex"`
	PaymentMethod string     `json:"payment_method" gorm:"type:varchar(50)"`
	Status        string     `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	PaidAt        *time.Time `json:"paid_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (RechargeRecord) TableName() string { return "recharge_records" }

// SystemConfig is a key/value row backing runtime configuration
// (storage, SMS, email providers).
type SystemConfig struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ConfigKey   string    `json:"config_key" gorm:"type:varchar(100);uniqueIndex;not null"`
	ConfigValue string    `json:"config_value" gorm:"type:text"`
	ConfigType  string    `json:"config_type" gorm:"type:varchar(50);not null;default:'string'"`
	Description string    `json:"description" gorm:"type:varchar(500)"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (SystemConfig) TableName() string { return "system_configs" }

// Admin is an operator of the administrative surface.
type Admin struct {
	ID          uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Username    string     `json:"username" gorm:"type:varchar(100);uniqueIndex;not null"`
	Password    string     `json:"-" gorm:"type:varchar(255);not null"`
	Role        string     `json:"role" gorm:"type:varchar(50);not null;default:'admin'"`
	Status      string     `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Admin) TableName() string { return "admins" }
