package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleManager = "manager"
	RoleStaff   = "staff"
)

type User struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Username  string `gorm:"size:100;uniqueIndex;not null"`
	Password  string `gorm:"not null"`
	FullName  string `gorm:"size:255"`
	Role      string `gorm:"size:20;not null;default:staff"`
	CreatedAt time.Time
}

type Product struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	ProductName   string          `gorm:"size:255;uniqueIndex;not null"`
	Price         decimal.Decimal `gorm:"type:decimal(12,2);default:0"`
	ImageURL      string          `gorm:"size:500"`
	CategoryName  string          `gorm:"size:100"`
	ShelfLifeDays int             `gorm:"not null;default:7"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Batches []StockBatch `gorm:"foreignKey:ProductID"`
}

// StockBatch is one discrete receipt of a product. A row with quantity 0
// is exhausted and gets deleted rather than kept around; FIFO reads only
// ever see quantity > 0.
type StockBatch struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	ProductID   int64      `gorm:"index;not null"`
	ReceiveDate time.Time  `gorm:"type:date;index;not null"`
	ExpiryDate  *time.Time `gorm:"type:date"`
	Quantity    int        `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Product *Product `gorm:"foreignKey:ProductID"`
}

// TransactionLog rows are append-only: written once in the same transaction
// as the mutation they describe, never updated afterwards. ProductID and
// Quantity are nullable because some action kinds (user management, product
// deletion) have no product or no quantity; ExtraInfo carries display text
// that must survive the referenced rows being deleted.
type TransactionLog struct {
	ID         int64   `gorm:"primaryKey;autoIncrement"`
	ActionType string  `gorm:"size:20;index;not null"`
	ProductID  *int64  `gorm:"index"`
	Quantity   *int
	ActorName  string    `gorm:"size:255;not null"`
	ActionDate time.Time `gorm:"index;not null"`
	ExtraInfo  *string   `gorm:"type:text"`
}

func (TransactionLog) TableName() string {
	return "transactions_log"
}
