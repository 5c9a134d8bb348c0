package db

import (
	"fmt"
	"strings"
	"testing"

	"discussable/internal/logger"
	"discussable/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
)

func TestOpenLogsSQLThroughZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := Open(sqlite.Open(dsn), log, true)
	require.NoError(t, err)
	require.NoError(t, Migrate(conn))

	var n int64
	require.NoError(t, conn.Model(&models.User{}).Count(&n).Error)

	found := false
	for _, entry := range logs.All() {
		if strings.Contains(entry.Message, "SELECT count(*)") && strings.Contains(entry.Message, "users") {
			found = true
			assert.Equal(t, "gorm", entry.ContextMap()["component"])
		}
	}
	assert.True(t, found, "expected the count query in the zap log")
}

func TestOpenQuietUnlessDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := Open(sqlite.Open(dsn), log, false)
	require.NoError(t, err)
	require.NoError(t, Migrate(conn))

	var u models.User
	// 找不到记录不算警告
	err = conn.Take(&u).Error
	require.Error(t, err)
	for _, entry := range logs.All() {
		assert.NotContains(t, entry.Message, "record not found")
		assert.NotContains(t, entry.Message, "SELECT")
	}
}
