// Package dto defines the request and response shapes of the HTTP
// surface. Binding tags drive gin validation.
package dto

import "time"

// Pagination query parameters, shared by every listing endpoint.
type Pagination struct {
	Page  int `form:"page,default=1" binding:"omitempty,min=1"`
	Limit int `form:"limit,default=20" binding:"omitempty,min=1,max=100"`
}

// PagedResponse wraps a listing with its totals.
type PagedResponse struct {
	Items any   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// RegisterRequest creates a user. Username/password or machine code is
// required depending on the app's login mode; the handler enforces
// the branch.
type RegisterRequest struct {
	Username    string `json:"username" binding:"omitempty,min=3,max=64"`
	Password    string `json:"password" binding:"omitempty,min=6,max=128"`
	MachineCode string `json:"machine_code" binding:"omitempty,max=255"`
	Email       string `json:"email" binding:"omitempty,email"`
	Phone       string `json:"phone" binding:"omitempty,max=20"`
}

// LoginRequest authenticates a user under the app's login mode.
type LoginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	MachineCode string `json:"machine_code"`
}

// LoginResponse carries the issued token and the user snapshot.
type LoginResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

// UpdateProfileRequest mutates the caller's own profile fields.
type UpdateProfileRequest struct {
	Email *string `json:"email" binding:"omitempty,email"`
	Phone *string `json:"phone" binding:"omitempty,max=20"`
}

// MemberStatusResponse reports the caller's entitlement.
type MemberStatusResponse struct {
	IsMember        bool       `json:"is_member"`
	ChargeMode      string     `json:"charge_mode"`
	MemberExpiresAt *time.Time `json:"member_expires_at"`
	LevelID         uint       `json:"level_id"`
	Points          int64      `json:"points"`
}

// AddPointsRequest grants points to the caller.
type AddPointsRequest struct {
	Points      int64  `json:"points" binding:"required,gt=0"`
	Type        string `json:"type" binding:"omitempty,max=50"`
	Description string `json:"description" binding:"omitempty,max=500"`
	RelatedID   *uint  `json:"related_id"`
}

// DeductPointsRequest spends points from the caller's balance.
type DeductPointsRequest struct {
	Points      int64  `json:"points" binding:"required,gt=0"`
	Type        string `json:"type" binding:"omitempty,max=50"`
	Description string `json:"description" binding:"omitempty,max=500"`
	RelatedID   *uint  `json:"related_id"`
}

// PointsResponse reports the balance after a mutation.
type PointsResponse struct {
	Points  int64 `json:"points"`
	LevelID uint  `json:"level_id"`
}

// RedeemCardRequest redeems a recharge card.
type RedeemCardRequest struct {
	CardNo       string `json:"card_no" binding:"required,max=100"`
	CardPassword string `json:"card_password" binding:"required,max=128"`
}

// RedeemCardResponse reports what the redemption granted.
type RedeemCardResponse struct {
	ExpiresDays     int       `json:"expires_days"`
	Points          int64     `json:"points"`
	MemberExpiresAt time.Time `json:"member_expires_at"`
	TotalPoints     int64     `json:"total_points"`
}

// CreateOrderRequest opens an online recharge order.
type CreateOrderRequest struct {
	ExpiresDays   int    `json:"expires_days" binding:"required,gt=0"`
	Points        int64  `json:"points" binding:"omitempty,gte=0"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=alipay wechat"`
}

// CreateOrderResponse identifies the pending order.
type CreateOrderResponse struct {
	OrderID int64  `json:"order_id"`
	OrderNo string `json:"order_no"`
	Status  string `json:"status"`
}

// AdminLoginRequest authenticates an operator.
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// CreateAppRequest registers a tenant app. The secret is generated
// server-side and returned once.
type CreateAppRequest struct {
	AppName    string `json:"app_name" binding:"required,max=200"`
	LoginMode  string `json:"login_mode" binding:"required,oneof=password machine"`
	ChargeMode string `json:"charge_mode" binding:"required,oneof=free paid"`
}

// UpdateAppRequest mutates tenant app settings. Nil fields are left
// untouched.
type UpdateAppRequest struct {
	AppName    *string `json:"app_name" binding:"omitempty,max=200"`
	LoginMode  *string `json:"login_mode" binding:"omitempty,oneof=password machine"`
	ChargeMode *string `json:"charge_mode" binding:"omitempty,oneof=free paid"`
	Status     *string `json:"status" binding:"omitempty,oneof=active inactive"`
}

// CreateLevelRequest defines a member tier.
type CreateLevelRequest struct {
	LevelName  string  `json:"level_name" binding:"required,max=100"`
	LevelValue int     `json:"level_value" binding:"required,gt=0"`
	MinPoints  int64   `json:"min_points" binding:"omitempty,gte=0"`
	Discount   float64 `json:"discount" binding:"omitempty,gt=0,lte=1"`
	Benefits   string  `json:"benefits"`
}

// UpdateLevelRequest mutates a member tier. Nil fields are left
// untouched.
type UpdateLevelRequest struct {
	LevelName  *string  `json:"level_name" binding:"omitempty,max=100"`
	LevelValue *int     `json:"level_value" binding:"omitempty,gt=0"`
	MinPoints  *int64   `json:"min_points" binding:"omitempty,gte=0"`
	Discount   *float64 `json:"discount" binding:"omitempty,gt=0,lte=1"`
	Benefits   *string  `json:"benefits"`
	Status     *string  `json:"status" binding:"omitempty,oneof=active inactive"`
}

// BatchCreateCardsRequest mints a batch of recharge cards.
type BatchCreateCardsRequest struct {
	Count       int        `json:"count" binding:"required,gt=0,lte=1000"`
	ExpiresDays int        `json:"expires_days" binding:"required,gt=0"`
	Points      int64      `json:"points" binding:"omitempty,gte=0"`
	ExpiredAt   *time.Time `json:"expired_at"`
}

// CardCredential is returned once at card creation; the plaintext
// password is never recoverable afterwards.
type CardCredential struct {
	CardNo       string     `json:"card_no"`
	CardPassword string     `json:"card_password"`
	ExpiresDays  int        `json:"expires_days"`
	Points       int64      `json:"points"`
	ExpiredAt    *time.Time `json:"expired_at"`
}

// ListCardsQuery filters the admin card listing.
type ListCardsQuery struct {
	Pagination
	Status string `form:"status" binding:"omitempty,oneof=unused used expired"`
}

// ListMembersQuery filters the admin member listing.
type ListMembersQuery struct {
	Pagination
	AppID   string `form:"app_id"`
	Keyword string `form:"keyword" binding:"omitempty,max=100"`
}

// UpdateMemberRequest mutates a member from the admin surface.
type UpdateMemberRequest struct {
	Status          *string    `json:"status" binding:"omitempty,oneof=active inactive"`
	LevelID         *uint      `json:"level_id"`
	MemberExpiresAt *time.Time `json:"member_expires_at"`
}

// UpdateConfigsRequest upserts system config rows and triggers a
// runtime reload.
type UpdateConfigsRequest struct {
	Configs map[string]string `json:"configs" binding:"required,min=1"`
}
