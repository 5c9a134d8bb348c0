package testutil

import (
	"fmt"
	"testing"

	"discussable/internal/db"
	"discussable/internal/logger"
	"discussable/internal/models"
	"discussable/internal/services"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB 每个测试一个独立的内存 SQLite 库，迁移与生产一致
func NewDB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	conn, err := db.Open(sqlite.Open(dsn), logger.Nop(), false)
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		tb.Fatalf("failed to get sql db: %v", err)
	}
	// 单连接：SQLite 不支持并发写，并发测试在连接池上排队
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(conn); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	return conn
}

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.Nop()
}

// NewServices wires all services over a fresh database. The user count is
// not cached so tests always see the current number of users.
func NewServices(tb testing.TB) (*gorm.DB, *services.Services) {
	tb.Helper()
	conn := NewDB(tb)
	return conn, services.New(conn, Logger(tb), services.Options{PageSize: 30})
}

func SeedUser(tb testing.TB, conn *gorm.DB, username string) *models.User {
	tb.Helper()
	u := &models.User{Username: username, DisplayName: username}
	if err := conn.Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedUsers(tb testing.TB, conn *gorm.DB, n int) []*models.User {
	tb.Helper()
	users := make([]*models.User, n)
	for i := range users {
		users[i] = SeedUser(tb, conn, fmt.Sprintf("user%02d", i+1))
	}
	return users
}

func SeedDiscussion(tb testing.TB, conn *gorm.DB, creator *models.User, subject string) *models.Discussion {
	tb.Helper()
	d := &models.Discussion{
		CreatorID:          creator.ID,
		CreatorDisplayName: creator.Name(),
		Subject:            subject,
	}
	if err := conn.Create(d).Error; err != nil {
		tb.Fatalf("seed discussion: %v", err)
	}
	return d
}

func SeedComment(tb testing.TB, conn *gorm.DB, creator *models.User, discussionID uint, parentID *uint, content string) *models.Comment {
	tb.Helper()
	c := &models.Comment{
		DiscussionID:       discussionID,
		ParentID:           parentID,
		CreatorID:          creator.ID,
		CreatorDisplayName: creator.Name(),
		Content:            content,
	}
	if err := conn.Create(c).Error; err != nil {
		tb.Fatalf("seed comment: %v", err)
	}
	return c
}
