package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"freshstock-system/internal/database"
	"freshstock-system/internal/database/models"
	"freshstock-system/internal/gateway/middleware"
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

// newStockRouter wires the stock handler the way the real router does,
// with a stub auth middleware that injects a fixed actor. Redis is nil
// so every request hits the database.
func newStockRouter(t *testing.T) (*gin.Engine, *ledger.Service, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newTestDB(t)
	clock, err := ledger.NewClock("Asia/Bangkok")
	require.NoError(t, err)
	svc := ledger.NewService(db, clock, ledger.Classifier{WindowDays: 3})

	h := NewStockHandler(svc, nil, quietLogger())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUsername, "tester")
		c.Next()
	})
	r.GET("/inventory", h.GetInventory)
	r.GET("/history", h.GetHistory)
	r.POST("/stock/receive", h.ReceiveStock)
	r.POST("/stock/withdraw", h.WithdrawStock)
	r.POST("/stock/purge-expired", h.PurgeExpired)
	return r, svc, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func seedProduct(t *testing.T, db *gorm.DB, name string, shelfLifeDays int) int64 {
	t.Helper()

	p := models.Product{ProductName: name, ShelfLifeDays: shelfLifeDays}
	require.NoError(t, db.Create(&p).Error)
	return p.ID
}

func TestReceiveStock(t *testing.T) {
	r, _, db := newStockRouter(t)
	productID := seedProduct(t, db, "Milk", 3)

	w, resp := doJSON(t, r, http.MethodPost, "/stock/receive", gin.H{
		"product_id":   productID,
		"receive_date": "2024-01-01",
		"quantity":     10,
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)

	var batches []models.StockBatch
	require.NoError(t, db.Find(&batches).Error)
	require.Len(t, batches, 1)
	assert.Equal(t, 10, batches[0].Quantity)

	var entry models.TransactionLog
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, "tester", entry.ActorName)
}

func TestReceiveStock_BadDate(t *testing.T) {
	r, _, db := newStockRouter(t)
	productID := seedProduct(t, db, "Milk", 3)

	w, resp := doJSON(t, r, http.MethodPost, "/stock/receive", gin.H{
		"product_id":   productID,
		"receive_date": "01/01/2024",
		"quantity":     10,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
}

func TestReceiveStock_UnknownProduct(t *testing.T) {
	r, _, _ := newStockRouter(t)

	w, resp := doJSON(t, r, http.MethodPost, "/stock/receive", gin.H{
		"product_id":   9999,
		"receive_date": "2024-01-01",
		"quantity":     10,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, resp.Success)
}

func TestWithdrawStock(t *testing.T) {
	r, svc, db := newStockRouter(t)
	productID := seedProduct(t, db, "Milk", 3)

	_, err := svc.Receive(context.Background(), productID,
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), 10, "setup")
	require.NoError(t, err)

	w, resp := doJSON(t, r, http.MethodPost, "/stock/withdraw", gin.H{
		"product_id": productID,
		"quantity":   4,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	var batch models.StockBatch
	require.NoError(t, db.First(&batch).Error)
	assert.Equal(t, 6, batch.Quantity)
}

func TestWithdrawStock_InsufficientIsConflict(t *testing.T) {
	r, svc, db := newStockRouter(t)
	productID := seedProduct(t, db, "Milk", 3)

	_, err := svc.Receive(context.Background(), productID,
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), 5, "setup")
	require.NoError(t, err)

	w, resp := doJSON(t, r, http.MethodPost, "/stock/withdraw", gin.H{
		"product_id": productID,
		"quantity":   6,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, resp.Success)

	// Stock untouched after the rejected request.
	var batch models.StockBatch
	require.NoError(t, db.First(&batch).Error)
	assert.Equal(t, 5, batch.Quantity)
}

func TestPurgeExpired_EmptySelection(t *testing.T) {
	r, _, _ := newStockRouter(t)

	w, resp := doJSON(t, r, http.MethodPost, "/stock/purge-expired", gin.H{
		"expired_batches": []gin.H{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
}

func TestPurgeExpired(t *testing.T) {
	r, svc, db := newStockRouter(t)
	productID := seedProduct(t, db, "Milk", 3)

	batchID, err := svc.Receive(context.Background(), productID,
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), 10, "setup")
	require.NoError(t, err)

	w, resp := doJSON(t, r, http.MethodPost, "/stock/purge-expired", gin.H{
		"expired_batches": []gin.H{{
			"batch_id":     batchID,
			"product_id":   productID,
			"product_name": "Milk",
			"quantity":     10,
			"expiry_date":  "2024-01-04",
		}},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	var count int64
	require.NoError(t, db.Model(&models.StockBatch{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestGetInventoryAndHistory(t *testing.T) {
	r, svc, db := newStockRouter(t)
	productID := seedProduct(t, db, "Milk", 3)

	_, err := svc.Receive(context.Background(), productID,
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), 10, "setup")
	require.NoError(t, err)

	w, resp := doJSON(t, r, http.MethodGet, "/inventory", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)

	w, resp = doJSON(t, r, http.MethodGet, "/history", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}
