package services

import (
	"context"
	"errors"
	"time"

	"discussable/internal/models"
	"discussable/internal/utils"

	"gorm.io/gorm"
)

const userCountKey = "total_users"

// UserDirectory 身份服务的只读适配器：显示名、用户总数、存在性检查
type UserDirectory struct {
	db    *gorm.DB
	ttl   time.Duration
	count *utils.TTLCache[string, int64]
}

func NewUserDirectory(db *gorm.DB, countTTL time.Duration) *UserDirectory {
	// size 1 never fails
	cache, _ := utils.NewTTLCache[string, int64](1)
	return &UserDirectory{db: db, ttl: countTTL, count: cache}
}

// TotalUserCount 返回注册用户总数。结果会缓存 ttl 时长，参与率允许轻微过期
func (d *UserDirectory) TotalUserCount(ctx context.Context) (int64, error) {
	if d.ttl <= 0 {
		return d.countUsers(ctx)
	}
	return d.count.GetOrLoad(userCountKey, d.ttl, func() (int64, error) {
		return d.countUsers(ctx)
	})
}

func (d *UserDirectory) countUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := d.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, utils.NewDatabaseError("failed to count users", err)
	}
	return n, nil
}

// InvalidateCount drops the cached user count, e.g. after a user is registered.
func (d *UserDirectory) InvalidateCount() {
	d.count.Delete(userCountKey)
}

func (d *UserDirectory) DisplayName(ctx context.Context, userID uint) (string, error) {
	user, err := d.find(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Name(), nil
}

func (d *UserDirectory) Exists(ctx context.Context, userID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	var n int64
	if err := d.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return false, utils.NewDatabaseError("failed to look up user", err)
	}
	return n > 0, nil
}

func (d *UserDirectory) find(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("user")
		}
		return nil, utils.NewDatabaseError("failed to load user", err)
	}
	return &user, nil
}
