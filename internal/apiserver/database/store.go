package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements the Database interface on top of gorm. The dialect
// constructors (NewMySQL, NewPostgres, NewSQLite) all return a Store.
type Store struct {
	db *gorm.DB
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates or updates the schema
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&App{},
		&User{},
		&MemberLevel{},
		&PointRecord{},
		&RechargeCard{},
		&RechargeRecord{},
		&SystemConfig{},
		&Admin{},
	)
}

// Transaction runs fn inside a single transaction carried via context
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ContextWithTransaction(ctx, tx))
	})
}

// forUpdate adds a row lock where the dialect supports one. SQLite has
// no FOR UPDATE; its single writer serializes these paths anyway.
func (s *Store) forUpdate(tx *gorm.DB) *gorm.DB {
	if s.db.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

// Apps

func (s *Store) CreateApp(ctx context.Context, app *App) error {
	return getDBFromContext(ctx, s.db).Create(app).Error
}

func (s *Store) GetAppByAppID(ctx context.Context, appID string) (*App, error) {
	var app App
	err := getDBFromContext(ctx, s.db).Where("app_id = ?", appID).First(&app).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &app, nil
}

func (s *Store) GetAppByID(ctx context.Context, id uint) (*App, error) {
	var app App
	err := getDBFromContext(ctx, s.db).First(&app, id).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &app, nil
}

func (s *Store) ListApps(ctx context.Context) ([]*App, error) {
	var apps []*App
	err := getDBFromContext(ctx, s.db).Order("created_at desc").Find(&apps).Error
	return apps, err
}

func (s *Store) UpdateApp(ctx context.Context, app *App) error {
	return getDBFromContext(ctx, s.db).Save(app).Error
}

// Users

func (s *Store) CreateUser(ctx context.Context, user *User) error {
	return getDBFromContext(ctx, s.db).Create(user).Error
}

func (s *Store) GetUserByID(ctx context.Context, id uint) (*User, error) {
	var user User
	err := getDBFromContext(ctx, s.db).First(&user, id).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &user, nil
}

func (s *Store) GetUserByIDForUpdate(ctx context.Context, id uint) (*User, error) {
	var user User
	err := s.forUpdate(getDBFromContext(ctx, s.db)).First(&user, id).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, appID, username string) (*User, error) {
	var user User
	err := getDBFromContext(ctx, s.db).
		Where("app_id = ? AND username = ?", appID, username).
		First(&user).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &user, nil
}

func (s *Store) GetUserByMachineCode(ctx context.Context, appID, machineCode string) (*User, error) {
	var user User
	err := getDBFromContext(ctx, s.db).
		Where("app_id = ? AND machine_code = ?", appID, machineCode).
		First(&user).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &user, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *User) error {
	return getDBFromContext(ctx, s.db).Save(user).Error
}

func (s *Store) ListUsers(ctx context.Context, filter UserFilter, page, limit int) ([]*User, int64, error) {
	page, limit = normalizePage(page, limit)
	q := getDBFromContext(ctx, s.db).Model(&User{})
	if filter.AppID != "" {
		q = q.Where("app_id = ?", filter.AppID)
	}
	if filter.Keyword != "" {
		kw := "%" + filter.Keyword + "%"
		q = q.Where("username LIKE ? OR email LIKE ? OR phone LIKE ?", kw, kw, kw)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []*User
	err := q.Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&users).Error
	return users, total, err
}

// Member levels

func (s *Store) CreateLevel(ctx context.Context, level *MemberLevel) error {
	return getDBFromContext(ctx, s.db).Create(level).Error
}

func (s *Store) GetLevelByID(ctx context.Context, id uint) (*MemberLevel, error) {
	var level MemberLevel
	err := getDBFromContext(ctx, s.db).First(&level, id).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &level, nil
}

func (s *Store) ListLevels(ctx context.Context) ([]*MemberLevel, error) {
	var levels []*MemberLevel
	err := getDBFromContext(ctx, s.db).Order("level_value asc").Find(&levels).Error
	return levels, err
}

func (s *Store) UpdateLevel(ctx context.Context, level *MemberLevel) error {
	return getDBFromContext(ctx, s.db).Save(level).Error
}

func (s *Store) HighestLevelForPoints(ctx context.Context, points int64) (*MemberLevel, error) {
	var level MemberLevel
	err := getDBFromContext(ctx, s.db).
		Where("min_points <= ? AND status = ?", points, StatusActive).
		Order("level_value desc").
		Order("id desc").
		First(&level).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &level, nil
}

// Point records

func (s *Store) CreatePointRecord(ctx context.Context, record *PointRecord) error {
	return getDBFromContext(ctx, s.db).Create(record).Error
}

func (s *Store) ListPointRecords(ctx context.Context, userID uint, page, limit int) ([]*PointRecord, int64, error) {
	page, limit = normalizePage(page, limit)
	q := getDBFromContext(ctx, s.db).Model(&PointRecord{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*PointRecord
	err := q.Order("created_at desc").
		Order("id desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&records).Error
	return records, total, err
}

// Recharge cards

func (s *Store) CreateCard(ctx context.Context, card *RechargeCard) error {
	return getDBFromContext(ctx, s.db).Create(card).Error
}

func (s *Store) GetCardByNo(ctx context.Context, cardNo string) (*RechargeCard, error) {
	var card RechargeCard
	err := getDBFromContext(ctx, s.db).Where("card_no = ?", cardNo).First(&card).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &card, nil
}

func (s *Store) GetCardByNoForUpdate(ctx context.Context, cardNo string) (*RechargeCard, error) {
	var card RechargeCard
	err := s.forUpdate(getDBFromContext(ctx, s.db)).
		Where("card_no = ?", cardNo).
		First(&card).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &card, nil
}

func (s *Store) UpdateCard(ctx context.Context, card *RechargeCard) error {
	return getDBFromContext(ctx, s.db).Save(card).Error
}

func (s *Store) MarkCardExpired(ctx context.Context, id uint) error {
	return getDBFromContext(ctx, s.db).
		Model(&RechargeCard{}).
		Where("id = ? AND status = ?", id, CardStatusUnused).
		Updates(map[string]any{"status": CardStatusExpired, "updated_at": time.Now()}).Error
}

func (s *Store) ListCards(ctx context.Context, status string, page, limit int) ([]*RechargeCard, int64, error) {
	page, limit = normalizePage(page, limit)
	q := getDBFromContext(ctx, s.db).Model(&RechargeCard{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var cards []*RechargeCard
	err := q.Order("created_at desc").
		Order("id desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&cards).Error
	return cards, total, err
}

// Recharge records

func (s *Store) CreateRechargeRecord(ctx context.Context, record *RechargeRecord) error {
	return getDBFromContext(ctx, s.db).Create(record).Error
}

func (s *Store) ListRechargeRecords(ctx context.Context, userID uint, page, limit int) ([]*RechargeRecord, int64, error) {
	page, limit = normalizePage(page, limit)
	q := getDBFromContext(ctx, s.db).Model(&RechargeRecord{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*RechargeRecord
	err := q.Order("created_at desc").
		Order("id desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&records).Error
	return records, total, err
}

// System configs

func (s *Store) ListSystemConfigs(ctx context.Context, keys ...string) ([]*SystemConfig, error) {
	q := getDBFromContext(ctx, s.db).Model(&SystemConfig{})
	if len(keys) > 0 {
		q = q.Where("config_key IN ?", keys)
	}
	var configs []*SystemConfig
	err := q.Order("config_key asc").Find(&configs).Error
	return configs, err
}

func (s *Store) UpsertSystemConfig(ctx context.Context, cfg *SystemConfig) error {
	return getDBFromContext(ctx, s.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "config_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"config_value", "config_type", "description", "updated_at"}),
		}).
		Create(cfg).Error
}

// Admins

func (s *Store) CreateAdmin(ctx context.Context, admin *Admin) error {
	return getDBFromContext(ctx, s.db).Create(admin).Error
}

func (s *Store) GetAdminByUsername(ctx context.Context, username string) (*Admin, error) {
	var admin Admin
	err := getDBFromContext(ctx, s.db).Where("username = ?", username).First(&admin).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &admin, nil
}

func (s *Store) UpdateAdmin(ctx context.Context, admin *Admin) error {
	return getDBFromContext(ctx, s.db).Save(admin).Error
}
