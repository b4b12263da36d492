package seed

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"freshstock-system/internal/database"
	"freshstock-system/internal/database/models"
	"freshstock-system/internal/ledger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func quietLogger() *logrus.Logger {
	logg := logrus.New()
	logg.SetOutput(io.Discard)
	return logg
}

func testClock(t *testing.T) *ledger.Clock {
	t.Helper()

	clock, err := ledger.NewClock("Asia/Bangkok")
	require.NoError(t, err)
	return clock
}

func TestEnsureAdminUser(t *testing.T) {
	db := newTestDB(t)
	logg := quietLogger()

	require.NoError(t, EnsureAdminUser(db, "1234", logg))

	var admin models.User
	require.NoError(t, db.Where("username = ?", "admin").First(&admin).Error)
	assert.Equal(t, models.RoleManager, admin.Role)
	assert.NotEqual(t, "1234", admin.Password)

	// Second run leaves the existing account alone.
	require.NoError(t, EnsureAdminUser(db, "other", logg))
	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestParseProducts(t *testing.T) {
	csvData := strings.Join([]string{
		"product_name,price,image_url,category_name,receive_date,expiry_date",
		"Milk,25.50,/img/milk.png,dairy,2024-01-01,2024-01-04",
		"Milk,99.00,,dairy,2024-01-01,2024-01-04",
		"Bread,not-a-price,,,2024-01-01,2024-01-01",
		",10.00,,,,",
	}, "\n")

	products, err := parseProducts(strings.NewReader(csvData), 7)
	require.NoError(t, err)
	require.Len(t, products, 2)

	milk := products[0]
	assert.Equal(t, "Milk", milk.name)
	assert.Equal(t, "25.50", milk.price.StringFixed(2))
	assert.Equal(t, "dairy", milk.categoryName)
	assert.Equal(t, 3, milk.shelfLifeDays) // derived from receive/expiry distance

	bread := products[1]
	assert.Equal(t, "Bread", bread.name)
	assert.True(t, bread.price.IsZero())
	assert.Equal(t, "general", bread.categoryName)
	assert.Equal(t, 7, bread.shelfLifeDays) // zero-day distance falls back to default
}

func TestParseProducts_EmptyFile(t *testing.T) {
	products, err := parseProducts(strings.NewReader(""), 7)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestProductsFromCSV_SeedsCatalogAndStock(t *testing.T) {
	db := newTestDB(t)

	path := filepath.Join(t.TempDir(), "products.csv")
	csvData := strings.Join([]string{
		"product_name,price,image_url,category_name,receive_date,expiry_date",
		"Milk,25.50,,dairy,2024-01-01,2024-01-04",
		"Bread,12.00,,bakery,2024-01-01,2024-01-06",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(csvData), 0o644))

	require.NoError(t, ProductsFromCSV(db, testClock(t), path, 7, quietLogger()))

	var products []models.Product
	require.NoError(t, db.Order("product_name ASC").Find(&products).Error)
	require.Len(t, products, 2)
	assert.Equal(t, "Bread", products[0].ProductName)
	assert.Equal(t, 5, products[0].ShelfLifeDays)
	assert.Equal(t, "Milk", products[1].ProductName)
	assert.Equal(t, 3, products[1].ShelfLifeDays)

	var batches []models.StockBatch
	require.NoError(t, db.Find(&batches).Error)
	require.Len(t, batches, 2)
	for _, b := range batches {
		assert.GreaterOrEqual(t, b.Quantity, 10)
		assert.LessOrEqual(t, b.Quantity, 100)
		require.NotNil(t, b.ExpiryDate)
	}

	var logs []models.TransactionLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 2)
	for _, entry := range logs {
		assert.Equal(t, string(ledger.ActionAdd), entry.ActionType)
		assert.Equal(t, ActorSetup, entry.ActorName)
	}
}

func TestProductsFromCSV_SkipsWhenCatalogExists(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.Product{ProductName: "Existing"}).Error)

	require.NoError(t, ProductsFromCSV(db, testClock(t), "does-not-matter.csv", 7, quietLogger()))

	var count int64
	require.NoError(t, db.Model(&models.Product{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestProductsFromCSV_MissingFileIsNotFatal(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, ProductsFromCSV(db, testClock(t), filepath.Join(t.TempDir(), "nope.csv"), 7, quietLogger()))
}

func TestReseedStock(t *testing.T) {
	db := newTestDB(t)
	clock := testClock(t)

	require.NoError(t, db.Create(&models.Product{ProductName: "Milk", ShelfLifeDays: 3}).Error)
	require.NoError(t, db.Create(&models.Product{ProductName: "Bread", ShelfLifeDays: 5}).Error)
	// Pre-existing stock and history that the reseed must wipe.
	require.NoError(t, db.Create(&models.StockBatch{ProductID: 1, ReceiveDate: clock.Today(), Quantity: 99}).Error)
	require.NoError(t, db.Create(&models.TransactionLog{ActionType: string(ledger.ActionWithdraw), ActorName: "bob", ActionDate: clock.Now()}).Error)

	n, err := ReseedStock(db, clock)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var batches []models.StockBatch
	require.NoError(t, db.Find(&batches).Error)
	require.Len(t, batches, 2)
	for _, b := range batches {
		assert.GreaterOrEqual(t, b.Quantity, 10)
		assert.LessOrEqual(t, b.Quantity, 150)
	}

	var logs []models.TransactionLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 2)
	for _, entry := range logs {
		assert.Equal(t, string(ledger.ActionAdd), entry.ActionType)
		assert.Equal(t, ActorReseed, entry.ActorName)
	}
}

func TestReseedStock_NoProducts(t *testing.T) {
	db := newTestDB(t)

	_, err := ReseedStock(db, testClock(t))
	assert.Error(t, err)
}
