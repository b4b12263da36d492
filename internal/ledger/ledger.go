package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"freshstock-system/internal/database/models"
)

// Service owns all writes to stock batches and the transaction log. Every
// mutating operation runs as one database transaction: the availability
// check, every batch mutation and the audit row either all commit or none
// do. Reads (Snapshot, History) never mutate anything.
type Service struct {
	db         *gorm.DB
	clock      *Clock
	classifier Classifier
}

func NewService(db *gorm.DB, clock *Clock, classifier Classifier) *Service {
	return &Service{
		db:         db,
		clock:      clock,
		classifier: classifier,
	}
}

func (s *Service) Clock() *Clock {
	return s.clock
}

func (s *Service) Classifier() Classifier {
	return s.classifier
}

// AffectedBatch describes how one batch absorbed part of a withdrawal.
type AffectedBatch struct {
	BatchID int64
	Taken   int
	Deleted bool
}

// ExpiredBatch is a caller-supplied purge descriptor. The product name and
// expiry date are carried by the caller on purpose: the purge logs what was
// known to be expired at selection time, even if the batch or product has
// been deleted by someone else in the meantime.
type ExpiredBatch struct {
	BatchID     int64
	ProductID   int64
	ProductName string
	Quantity    int
	ExpiryDate  time.Time
}

// BatchView is one batch as seen by the inventory snapshot.
type BatchView struct {
	BatchID     int64      `json:"batch_id"`
	ReceiveDate time.Time  `json:"receive_date"`
	ExpiryDate  *time.Time `json:"expiry_date"`
	Quantity    int        `json:"quantity"`
	Status      Status     `json:"status"`
}

// ProductInventory groups a product's batches with active/expired totals.
// Products without stock still appear with zero totals so they read as
// "out of stock" rather than vanishing.
type ProductInventory struct {
	ProductID       int64       `json:"product_id"`
	ProductName     string      `json:"product_name"`
	ImageURL        string      `json:"image_url"`
	CategoryName    string      `json:"category_name"`
	ActiveQuantity  int         `json:"active_quantity"`
	ExpiredQuantity int         `json:"expired_quantity"`
	Batches         []BatchView `json:"batches"`
}

// HistoryEntry is one audit-log row joined with the current product name.
// Rows whose product has since been deleted keep a display fallback.
type HistoryEntry struct {
	ID          int64     `json:"id"`
	ActionType  string    `json:"action_type"`
	ProductID   *int64    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    *int      `json:"quantity"`
	ActorName   string    `json:"actor_name"`
	ActionDate  time.Time `json:"action_date"`
	ExtraInfo   *string   `json:"extra_info,omitempty"`
}

// DeletedProductLabel is what history shows for log rows whose product row
// no longer exists.
const DeletedProductLabel = "[deleted product]"

func (s *Service) appendLog(tx *gorm.DB, action ActionType, productID *int64, quantity *int, actor string, extraInfo *string) error {
	entry := models.TransactionLog{
		ActionType: string(action),
		ProductID:  productID,
		Quantity:   quantity,
		ActorName:  actor,
		ActionDate: s.clock.Now(),
		ExtraInfo:  extraInfo,
	}
	return tx.Create(&entry).Error
}

// Receive inserts a new batch for the product, deriving the expiry date
// from the product's shelf life, and logs the receipt. Returns the new
// batch id.
func (s *Service) Receive(ctx context.Context, productID int64, receiveDate time.Time, quantity int, actor string) (int64, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidArgument, quantity)
	}

	receiveDate = DateOnly(receiveDate)

	var batchID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
			}
			return err
		}

		expiry := receiveDate.AddDate(0, 0, product.ShelfLifeDays)
		batch := models.StockBatch{
			ProductID:   product.ID,
			ReceiveDate: receiveDate,
			ExpiryDate:  &expiry,
			Quantity:    quantity,
		}
		if err := tx.Create(&batch).Error; err != nil {
			return err
		}
		batchID = batch.ID

		return s.appendLog(tx, ActionAdd, &product.ID, &quantity, actor, nil)
	})
	if err != nil {
		return 0, err
	}
	return batchID, nil
}

// Withdraw takes the requested quantity out of the product's batches,
// oldest first. Batches are ordered by receive date then id, so two
// batches received the same day drain in a stable order. Fully drained
// batches are deleted; the last one touched is decremented. The whole
// allocation fails with ErrInsufficientStock when the request exceeds the
// total available, leaving everything untouched.
func (s *Service) Withdraw(ctx context.Context, productID int64, quantity int, actor string) ([]AffectedBatch, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidArgument, quantity)
	}

	var affected []AffectedBatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var batches []models.StockBatch
		if err := tx.
			Where("product_id = ? AND quantity > 0", productID).
			Order("receive_date ASC, id ASC").
			Find(&batches).Error; err != nil {
			return err
		}

		available := 0
		for _, b := range batches {
			available += b.Quantity
		}
		if quantity > available {
			return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, quantity, available)
		}

		remaining := quantity
		for _, b := range batches {
			if remaining == 0 {
				break
			}
			if b.Quantity <= remaining {
				if err := tx.Delete(&models.StockBatch{}, b.ID).Error; err != nil {
					return err
				}
				affected = append(affected, AffectedBatch{BatchID: b.ID, Taken: b.Quantity, Deleted: true})
				remaining -= b.Quantity
			} else {
				if err := tx.Model(&models.StockBatch{}).
					Where("id = ?", b.ID).
					Update("quantity", gorm.Expr("quantity - ?", remaining)).Error; err != nil {
					return err
				}
				affected = append(affected, AffectedBatch{BatchID: b.ID, Taken: remaining})
				remaining = 0
			}
		}

		// The log carries the requested total, not per-batch amounts.
		return s.appendLog(tx, ActionWithdraw, &productID, &quantity, actor, nil)
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}

// PurgeExpired deletes the described batches and logs one EXPIRED entry
// per descriptor, all in one transaction. Deleting a batch that is already
// gone is not an error; the entry is still logged, because the descriptor
// records what was expired at selection time. The extra-info text embeds
// the product name and expiry date so history stays readable after the
// product itself is deleted.
func (s *Service) PurgeExpired(ctx context.Context, batches []ExpiredBatch, actor string) (int, error) {
	if len(batches) == 0 {
		return 0, fmt.Errorf("%w: no batches selected", ErrInvalidArgument)
	}

	count := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, b := range batches {
			if err := tx.Delete(&models.StockBatch{}, b.BatchID).Error; err != nil {
				return err
			}

			productID := b.ProductID
			qty := b.Quantity
			extra := fmt.Sprintf("%s | expired: %s", b.ProductName, b.ExpiryDate.Format("2006-01-02"))
			if err := s.appendLog(tx, ActionExpired, &productID, &qty, actor, &extra); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Snapshot reads every product with its non-exhausted batches and splits
// quantities into active and expired buckets using the classifier against
// the given reference date. Both reads happen inside one transaction so
// the view is self-consistent; it takes no further locks.
func (s *Service) Snapshot(ctx context.Context, today time.Time) ([]ProductInventory, error) {
	today = DateOnly(today)

	var products []models.Product
	var batches []models.StockBatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("product_name ASC").Find(&products).Error; err != nil {
			return err
		}
		return tx.
			Where("quantity > 0").
			Order("receive_date ASC, id ASC").
			Find(&batches).Error
	})
	if err != nil {
		return nil, err
	}

	byProduct := make(map[int64][]models.StockBatch, len(products))
	for _, b := range batches {
		byProduct[b.ProductID] = append(byProduct[b.ProductID], b)
	}

	view := make([]ProductInventory, 0, len(products))
	for _, p := range products {
		inv := ProductInventory{
			ProductID:    p.ID,
			ProductName:  p.ProductName,
			ImageURL:     p.ImageURL,
			CategoryName: p.CategoryName,
			Batches:      []BatchView{},
		}
		for _, b := range byProduct[p.ID] {
			status := s.classifier.Classify(b.ExpiryDate, today)
			if status == StatusExpired {
				inv.ExpiredQuantity += b.Quantity
			} else {
				inv.ActiveQuantity += b.Quantity
			}
			inv.Batches = append(inv.Batches, BatchView{
				BatchID:     b.ID,
				ReceiveDate: b.ReceiveDate,
				ExpiryDate:  b.ExpiryDate,
				Quantity:    b.Quantity,
				Status:      status,
			})
		}
		view = append(view, inv)
	}
	return view, nil
}

// History returns the full audit trail, newest first. Product names are
// joined live; rows that outlived their product fall back to a placeholder
// while their extra-info keeps the recorded context.
func (s *Service) History(ctx context.Context) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := s.db.WithContext(ctx).
		Table("transactions_log AS t").
		Select("t.id, t.action_type, t.product_id, COALESCE(p.product_name, ?) AS product_name, t.quantity, t.actor_name, t.action_date, t.extra_info", DeletedProductLabel).
		Joins("LEFT JOIN products p ON p.id = t.product_id").
		Order("t.action_date DESC, t.id DESC").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Record writes a collaborator-originated log entry (user or catalog
// management kinds) in its own transaction. The ledger stores these
// uniformly but does not interpret them.
func (s *Service) Record(ctx context.Context, action ActionType, productID *int64, quantity *int, actor, extraInfo string) error {
	var extra *string
	if extraInfo != "" {
		extra = &extraInfo
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.appendLog(tx, action, productID, quantity, actor, extra)
	})
}

// RecordTx is Record for callers that already hold a transaction, so the
// log row commits or rolls back together with the caller's own writes.
func (s *Service) RecordTx(tx *gorm.DB, action ActionType, productID *int64, quantity *int, actor, extraInfo string) error {
	var extra *string
	if extraInfo != "" {
		extra = &extraInfo
	}
	return s.appendLog(tx, action, productID, quantity, actor, extra)
}

// DB exposes the underlying handle for collaborators that need to compose
// their own writes with a log entry in one transaction.
func (s *Service) DB() *gorm.DB {
	return s.db
}
