package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"freshstock-system/internal/database/models"
	"freshstock-system/internal/gateway/middleware"
	"freshstock-system/internal/ledger"
)

const (
	PRODUCTS_CACHE_KEY = "freshstock:products"
	CACHE_TTL_MEDIUM   = 30 * time.Minute
)

// CatalogHandler owns product CRUD. It never touches batch quantities
// directly; the only ledger interaction is writing CREATE_PRODUCT and
// DELETE_PRODUCT audit entries, and cascading stock removal on delete.
type CatalogHandler struct {
	db     *gorm.DB
	ledger *ledger.Service
	redis  *redis.Client
	logg   *logrus.Logger

	defaultShelfLifeDays int
}

func NewCatalogHandler(db *gorm.DB, ledgerSvc *ledger.Service, redisClient *redis.Client, logg *logrus.Logger, defaultShelfLifeDays int) *CatalogHandler {
	return &CatalogHandler{
		db:                   db,
		ledger:               ledgerSvc,
		redis:                redisClient,
		logg:                 logg,
		defaultShelfLifeDays: defaultShelfLifeDays,
	}
}

type ProductRequest struct {
	ProductName   string  `json:"product_name" binding:"required"`
	Price         *string `json:"price,omitempty"`
	ImageURL      *string `json:"image_url,omitempty"`
	CategoryName  *string `json:"category_name,omitempty"`
	ShelfLifeDays *int    `json:"shelf_life_days,omitempty"`
}

type ProductResponse struct {
	ID            int64  `json:"id"`
	ProductName   string `json:"product_name"`
	Price         string `json:"price"`
	ImageURL      string `json:"image_url"`
	CategoryName  string `json:"category_name"`
	ShelfLifeDays int    `json:"shelf_life_days"`
}

func productToResponse(p models.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		ProductName:   p.ProductName,
		Price:         p.Price.StringFixed(2),
		ImageURL:      p.ImageURL,
		CategoryName:  p.CategoryName,
		ShelfLifeDays: p.ShelfLifeDays,
	}
}

func (h *CatalogHandler) invalidateCatalogCaches(ctx context.Context) {
	if h.redis == nil {
		return
	}
	_ = h.redis.Del(ctx, PRODUCTS_CACHE_KEY, INVENTORY_CACHE_KEY, DASHBOARD_CACHE_KEY)
}

// ListProducts is the lightweight catalog read used by the receive form:
// id, name and shelf life, name-ordered.
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	var products []models.Product
	if err := h.db.WithContext(c.Request.Context()).Order("product_name ASC").Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	out := make([]gin.H, len(products))
	for i, p := range products {
		out[i] = gin.H{"id": p.ID, "product_name": p.ProductName, "shelf_life_days": p.ShelfLifeDays}
	}
	c.JSON(http.StatusOK, successResponse("Products", out))
}

// ListAvailableProducts returns only products that currently have
// positive-quantity stock, for the withdraw form.
func (h *CatalogHandler) ListAvailableProducts(c *gin.Context) {
	var products []models.Product
	err := h.db.WithContext(c.Request.Context()).
		Distinct("products.id", "products.product_name").
		Joins("JOIN stock_batches s ON s.product_id = products.id AND s.quantity > 0").
		Order("products.product_name ASC").
		Find(&products).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	out := make([]gin.H, len(products))
	for i, p := range products {
		out[i] = gin.H{"id": p.ID, "product_name": p.ProductName}
	}
	c.JSON(http.StatusOK, successResponse("Available products", out))
}

// ListProductsAdmin is the full-detail catalog view for managers.
func (h *CatalogHandler) ListProductsAdmin(c *gin.Context) {
	var products []models.Product
	if err := h.db.WithContext(c.Request.Context()).
		Order("category_name ASC, product_name ASC").
		Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = productToResponse(p)
	}
	c.JSON(http.StatusOK, successResponse("Products", out))
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("product_name is required"))
		return
	}

	product := models.Product{
		ProductName:   req.ProductName,
		CategoryName:  "general",
		ShelfLifeDays: h.defaultShelfLifeDays,
	}
	if req.Price != nil {
		if price, err := decimal.NewFromString(*req.Price); err == nil {
			product.Price = price
		}
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}
	if req.CategoryName != nil && *req.CategoryName != "" {
		product.CategoryName = *req.CategoryName
	}
	if req.ShelfLifeDays != nil && *req.ShelfLifeDays >= 0 {
		product.ShelfLifeDays = *req.ShelfLifeDays
	}

	actor := c.GetString(middleware.ContextUsername)
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&product).Error; err != nil {
			return err
		}
		return h.ledger.RecordTx(tx, ledger.ActionCreateProduct, &product.ID, nil, actor, product.ProductName)
	})
	if err != nil {
		c.JSON(http.StatusConflict, errorResponse("Product name already exists or could not be created"))
		return
	}

	h.invalidateCatalogCaches(c.Request.Context())
	c.JSON(http.StatusCreated, successResponse("Product created", productToResponse(product)))
}

func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid product id"))
		return
	}

	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("product_name is required"))
		return
	}

	var product models.Product
	if err := h.db.WithContext(c.Request.Context()).First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("Product not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	product.ProductName = req.ProductName
	if req.Price != nil {
		if price, perr := decimal.NewFromString(*req.Price); perr == nil {
			product.Price = price
		}
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}
	if req.CategoryName != nil && *req.CategoryName != "" {
		product.CategoryName = *req.CategoryName
	}
	if req.ShelfLifeDays != nil && *req.ShelfLifeDays >= 0 {
		product.ShelfLifeDays = *req.ShelfLifeDays
	}

	if err := h.db.WithContext(c.Request.Context()).Save(&product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to update product"))
		return
	}

	h.invalidateCatalogCaches(c.Request.Context())
	c.JSON(http.StatusOK, successResponse("Product updated", productToResponse(product)))
}

// DeleteProduct removes the product and its stock, but keeps log history:
// existing log rows lose their product link (the join falls back to a
// placeholder name) and a DELETE_PRODUCT entry carrying the deleted name
// is written, all in one transaction.
func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid product id"))
		return
	}

	var product models.Product
	if err := h.db.WithContext(c.Request.Context()).First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("Product not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	actor := c.GetString(middleware.ContextUsername)
	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", productID).Delete(&models.StockBatch{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.TransactionLog{}).
			Where("product_id = ?", productID).
			Update("product_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Product{}, productID).Error; err != nil {
			return err
		}
		return h.ledger.RecordTx(tx, ledger.ActionDeleteProduct, nil, nil, actor, product.ProductName)
	})
	if err != nil {
		h.logg.WithFields(logrus.Fields{"op": "delete-product", "product_id": productID}).Error(err.Error())
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to delete product"))
		return
	}

	h.invalidateCatalogCaches(c.Request.Context())
	c.JSON(http.StatusOK, successResponse("Product deleted", nil))
}
