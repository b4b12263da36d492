package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"freshstock-system/internal/database/models"
	"freshstock-system/internal/ledger"
	"freshstock-system/internal/seed"
)

const lowStockThreshold = 50

type DashboardHandler struct {
	db     *gorm.DB
	ledger *ledger.Service
	redis  *redis.Client
	logg   *logrus.Logger
}

func NewDashboardHandler(db *gorm.DB, ledgerSvc *ledger.Service, redisClient *redis.Client, logg *logrus.Logger) *DashboardHandler {
	return &DashboardHandler{
		db:     db,
		ledger: ledgerSvc,
		redis:  redisClient,
		logg:   logg,
	}
}

type ProductTotal struct {
	ID          int64  `json:"id"`
	ProductName string `json:"product_name"`
	TotalQty    int    `json:"total_qty"`
}

type ProductFrequency struct {
	ID          int64  `json:"id"`
	ProductName string `json:"product_name"`
	Freq        int    `json:"freq"`
	TotalQty    int    `json:"total_qty"`
}

type DashboardStats struct {
	TotalProducts    int64              `json:"total_products"`
	TotalStock       int                `json:"total_stock"`
	TotalValue       decimal.Decimal    `json:"total_value"`
	TotalReceiveTx   int64              `json:"total_receive_tx"`
	TotalWithdrawTx  int64              `json:"total_withdraw_tx"`
	LowStockList     []ProductTotal     `json:"low_stock_list"`
	FrequentReceive  []ProductFrequency `json:"frequent_receive_list"`
	FrequentWithdraw []ProductFrequency `json:"frequent_withdraw_list"`
}

// GetStats aggregates the dashboard KPIs. Expired batches are excluded
// from stock totals and valuation, matching the snapshot's active bucket.
func (h *DashboardHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	if h.redis != nil {
		if cached, err := h.redis.Get(ctx, DASHBOARD_CACHE_KEY).Result(); err == nil {
			var stats DashboardStats
			if json.Unmarshal([]byte(cached), &stats) == nil {
				c.JSON(http.StatusOK, successResponse("Dashboard stats (cached)", stats))
				return
			}
		}
	}

	today := h.ledger.Clock().Today()
	db := h.db.WithContext(ctx)
	stats := DashboardStats{
		LowStockList:     []ProductTotal{},
		FrequentReceive:  []ProductFrequency{},
		FrequentWithdraw: []ProductFrequency{},
		TotalValue:       decimal.Zero,
	}

	if err := db.Model(&models.Product{}).Count(&stats.TotalProducts).Error; err != nil {
		h.statsError(c, err)
		return
	}

	// Active stock units and valuation, priced per batch.
	var activeRows []struct {
		Quantity int
		Price    decimal.Decimal
	}
	err := db.Table("stock_batches AS s").
		Select("s.quantity, p.price").
		Joins("JOIN products p ON p.id = s.product_id").
		Where("s.quantity > 0 AND (s.expiry_date IS NULL OR s.expiry_date >= ?)", today).
		Scan(&activeRows).Error
	if err != nil {
		h.statsError(c, err)
		return
	}
	for _, row := range activeRows {
		stats.TotalStock += row.Quantity
		stats.TotalValue = stats.TotalValue.Add(row.Price.Mul(decimal.NewFromInt(int64(row.Quantity))))
	}

	if err := db.Model(&models.TransactionLog{}).
		Where("action_type = ?", string(ledger.ActionAdd)).
		Count(&stats.TotalReceiveTx).Error; err != nil {
		h.statsError(c, err)
		return
	}
	if err := db.Model(&models.TransactionLog{}).
		Where("action_type = ?", string(ledger.ActionWithdraw)).
		Count(&stats.TotalWithdrawTx).Error; err != nil {
		h.statsError(c, err)
		return
	}

	err = db.Table("stock_batches AS s").
		Select("p.id, p.product_name, SUM(s.quantity) AS total_qty").
		Joins("JOIN products p ON p.id = s.product_id").
		Where("s.quantity > 0 AND (s.expiry_date IS NULL OR s.expiry_date >= ?)", today).
		Group("p.id, p.product_name").
		Having("SUM(s.quantity) < ?", lowStockThreshold).
		Order("total_qty ASC").
		Limit(10).
		Scan(&stats.LowStockList).Error
	if err != nil {
		h.statsError(c, err)
		return
	}

	if stats.FrequentReceive, err = h.frequentByAction(c, ledger.ActionAdd); err != nil {
		h.statsError(c, err)
		return
	}
	if stats.FrequentWithdraw, err = h.frequentByAction(c, ledger.ActionWithdraw); err != nil {
		h.statsError(c, err)
		return
	}

	if h.redis != nil {
		if payload, err := json.Marshal(stats); err == nil {
			_ = h.redis.Set(ctx, DASHBOARD_CACHE_KEY, payload, CACHE_TTL_SHORT)
		}
	}

	c.JSON(http.StatusOK, successResponse("Dashboard stats", stats))
}

func (h *DashboardHandler) frequentByAction(c *gin.Context, action ledger.ActionType) ([]ProductFrequency, error) {
	rows := []ProductFrequency{}
	err := h.db.WithContext(c.Request.Context()).
		Table("transactions_log AS t").
		Select("p.id, p.product_name, COUNT(t.id) AS freq, SUM(t.quantity) AS total_qty").
		Joins("JOIN products p ON p.id = t.product_id").
		Where("t.action_type = ?", string(action)).
		Group("p.id, p.product_name").
		Order("freq DESC, total_qty DESC").
		Limit(10).
		Scan(&rows).Error
	return rows, err
}

func (h *DashboardHandler) statsError(c *gin.Context, err error) {
	h.logg.WithFields(logrus.Fields{"op": "dashboard-stats"}).Error(err.Error())
	c.JSON(http.StatusInternalServerError, errorResponse("Failed to load dashboard data"))
}

// ReseedStock wipes all batches and log history and reseeds randomized
// stock for every product. Dev/demo convenience, manager only.
func (h *DashboardHandler) ReseedStock(c *gin.Context) {
	count, err := seed.ReseedStock(h.db.WithContext(c.Request.Context()), h.ledger.Clock())
	if err != nil {
		h.logg.WithFields(logrus.Fields{"op": "reseed-stock"}).Error(err.Error())
		c.JSON(http.StatusInternalServerError, errorResponse("Reseed failed"))
		return
	}

	if h.redis != nil {
		_ = h.redis.Del(c.Request.Context(), INVENTORY_CACHE_KEY, DASHBOARD_CACHE_KEY)
	}

	c.JSON(http.StatusOK, successResponse("Stock reseeded", gin.H{"products": count}))
}
