package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"freshstock-system/internal/gateway/middleware"
	"freshstock-system/internal/ledger"
)

const (
	INVENTORY_CACHE_KEY = "freshstock:inventory"
	DASHBOARD_CACHE_KEY = "freshstock:dashboard"
	CACHE_TTL_SHORT     = 1 * time.Minute
)

type StockHandler struct {
	ledger *ledger.Service
	redis  *redis.Client
	logg   *logrus.Logger
}

func NewStockHandler(ledgerSvc *ledger.Service, redisClient *redis.Client, logg *logrus.Logger) *StockHandler {
	return &StockHandler{
		ledger: ledgerSvc,
		redis:  redisClient,
		logg:   logg,
	}
}

type ReceiveStockRequest struct {
	ProductID   int64  `json:"product_id" binding:"required"`
	ReceiveDate string `json:"receive_date" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required"`
}

type WithdrawStockRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
}

type PurgeExpiredRequest struct {
	ExpiredBatches []ExpiredBatchRequest `json:"expired_batches" binding:"required"`
}

type ExpiredBatchRequest struct {
	BatchID     int64  `json:"batch_id" binding:"required"`
	ProductID   int64  `json:"product_id" binding:"required"`
	ProductName string `json:"product_name" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required"`
	ExpiryDate  string `json:"expiry_date" binding:"required"`
}

func (h *StockHandler) invalidateStockCaches(ctx context.Context) {
	if h.redis == nil {
		return
	}
	_ = h.redis.Del(ctx, INVENTORY_CACHE_KEY, DASHBOARD_CACHE_KEY)
}

// ledgerError maps the ledger taxonomy onto HTTP statuses. Storage
// failures stay opaque: the transaction rolled back and the caller only
// needs to know the system, not their input, is at fault.
func (h *StockHandler) ledgerError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, ledger.ErrProductNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, ledger.ErrInsufficientStock):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	default:
		h.logg.WithFields(logrus.Fields{"op": op}).Error(err.Error())
		c.JSON(http.StatusInternalServerError, errorResponse("Internal error, no changes were applied"))
	}
}

// GetInventory returns the grouped snapshot: per product, active and
// expired totals plus the FIFO-ordered batch list with each batch's
// classification. Served from redis when fresh.
func (h *StockHandler) GetInventory(c *gin.Context) {
	ctx := c.Request.Context()

	if h.redis != nil {
		if cached, err := h.redis.Get(ctx, INVENTORY_CACHE_KEY).Result(); err == nil {
			var view []ledger.ProductInventory
			if json.Unmarshal([]byte(cached), &view) == nil {
				c.JSON(http.StatusOK, successResponse("Inventory snapshot (cached)", view))
				return
			}
		}
	}

	view, err := h.ledger.Snapshot(ctx, h.ledger.Clock().Today())
	if err != nil {
		h.ledgerError(c, "snapshot", err)
		return
	}

	if h.redis != nil {
		if payload, err := json.Marshal(view); err == nil {
			_ = h.redis.Set(ctx, INVENTORY_CACHE_KEY, payload, CACHE_TTL_SHORT)
		}
	}

	c.JSON(http.StatusOK, successResponse("Inventory snapshot", view))
}

func (h *StockHandler) ReceiveStock(c *gin.Context) {
	var req ReceiveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	receiveDate, err := time.Parse("2006-01-02", req.ReceiveDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("receive_date must be YYYY-MM-DD"))
		return
	}

	actor := c.GetString(middleware.ContextUsername)
	batchID, err := h.ledger.Receive(c.Request.Context(), req.ProductID, receiveDate, req.Quantity, actor)
	if err != nil {
		h.ledgerError(c, "receive", err)
		return
	}

	h.invalidateStockCaches(c.Request.Context())
	c.JSON(http.StatusCreated, successResponse("Stock received", gin.H{"batch_id": batchID}))
}

func (h *StockHandler) WithdrawStock(c *gin.Context) {
	var req WithdrawStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	actor := c.GetString(middleware.ContextUsername)
	affected, err := h.ledger.Withdraw(c.Request.Context(), req.ProductID, req.Quantity, actor)
	if err != nil {
		h.ledgerError(c, "withdraw", err)
		return
	}

	batches := make([]gin.H, len(affected))
	for i, b := range affected {
		batches[i] = gin.H{"batch_id": b.BatchID, "taken": b.Taken, "deleted": b.Deleted}
	}

	h.invalidateStockCaches(c.Request.Context())
	c.JSON(http.StatusOK, successResponse("Stock withdrawn", gin.H{"batches_affected": batches}))
}

func (h *StockHandler) PurgeExpired(c *gin.Context) {
	var req PurgeExpiredRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.ExpiredBatches) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse("No expired batches selected"))
		return
	}

	descriptors := make([]ledger.ExpiredBatch, 0, len(req.ExpiredBatches))
	for _, b := range req.ExpiredBatches {
		expiry, err := time.Parse("2006-01-02", b.ExpiryDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("expiry_date must be YYYY-MM-DD"))
			return
		}
		descriptors = append(descriptors, ledger.ExpiredBatch{
			BatchID:     b.BatchID,
			ProductID:   b.ProductID,
			ProductName: b.ProductName,
			Quantity:    b.Quantity,
			ExpiryDate:  expiry,
		})
	}

	actor := c.GetString(middleware.ContextUsername)
	count, err := h.ledger.PurgeExpired(c.Request.Context(), descriptors, actor)
	if err != nil {
		h.ledgerError(c, "purge-expired", err)
		return
	}

	h.invalidateStockCaches(c.Request.Context())
	c.JSON(http.StatusOK, successResponse("Expired batches purged", gin.H{"purged": count}))
}

func (h *StockHandler) GetHistory(c *gin.Context) {
	entries, err := h.ledger.History(c.Request.Context())
	if err != nil {
		h.ledgerError(c, "history", err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Transaction history", entries))
}
