// Package storetest opens a migrated in-memory database for tests.
package storetest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Fi44er/tron_bot/db"
	"github.com/Fi44er/tron_bot/internal/models"
	"github.com/Fi44er/tron_bot/utils"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open returns a fresh database private to the test. The pool holds a single
// connection, so concurrent transactions are serialized the way row locks
// serialize them on postgres.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", name, seq.Add(1))

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb, true, utils.NewNopLogger()))
	return gdb
}

// SeedUser inserts an active user holding balance.
func SeedUser(t *testing.T, gdb *gorm.DB, telegramID int64, balance string) *models.User {
	t.Helper()
	user := &models.User{
		TelegramID:     telegramID,
		Username:       fmt.Sprintf("user%d", telegramID),
		ReferralCode:   fmt.Sprintf("REF%d", telegramID),
		AccountBalance: decimal.RequireFromString(balance),
		IsActive:       true,
	}
	require.NoError(t, gdb.Create(user).Error)
	return user
}

// SeedWallet inserts an active deposit wallet for the user.
func SeedWallet(t *testing.T, gdb *gorm.DB, userID int64, address, sealedKey string) *models.Wallet {
	t.Helper()
	wallet := &models.Wallet{
		UserID:              userID,
		Address:             address,
		PrivateKeyEncrypted: sealedKey,
		IsActive:            true,
	}
	require.NoError(t, gdb.Create(wallet).Error)
	return wallet
}

// ReloadUser reads the user's current row.
func ReloadUser(t *testing.T, gdb *gorm.DB, id int64) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, gdb.First(&user, "id = ?", id).Error)
	return &user
}

// RequireAmount compares decimals by value.
func RequireAmount(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	want := decimal.RequireFromString(expected)
	require.Truef(t, want.Equal(actual), "expected %s, got %s %v", want, actual, msgAndArgs)
}
