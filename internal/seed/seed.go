// Package seed bootstraps a fresh database: the default manager account,
// the product catalog from a CSV file, and randomized demo stock. Every
// seeded batch is paired with an ADD audit entry attributed to a system
// actor, inside the same transaction as the batch rows.
package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"freshstock-system/internal/database/models"
	"freshstock-system/internal/ledger"
)

const (
	ActorSetup  = "System/Setup"
	ActorReseed = "System/Reseed"
)

// EnsureAdminUser creates the default manager account when no user named
// admin exists yet.
func EnsureAdminUser(db *gorm.DB, password string, logg *logrus.Logger) error {
	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", "admin").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.User{
		Username: "admin",
		Password: string(hash),
		FullName: "Administrator",
		Role:     models.RoleManager,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	logg.Info("Seeded default admin user")
	return nil
}

type csvProduct struct {
	name          string
	price         decimal.Decimal
	imageURL      string
	categoryName  string
	shelfLifeDays int
}

// ProductsFromCSV seeds the catalog and randomized initial stock when the
// products table is empty. Shelf life is derived per product from the CSV's
// receive/expiry date distance when both parse; otherwise the default
// applies. Missing CSV file is not an error, the catalog just starts empty.
func ProductsFromCSV(db *gorm.DB, clock *ledger.Clock, path string, defaultShelfLifeDays int, logg *logrus.Logger) error {
	var count int64
	if err := db.Model(&models.Product{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logg.WithFields(logrus.Fields{"path": path}).Warn("Products CSV not found, skipping seed")
			return nil
		}
		return err
	}
	defer file.Close()

	products, err := parseProducts(file, defaultShelfLifeDays)
	if err != nil {
		return fmt.Errorf("parse products csv: %w", err)
	}
	if len(products) == 0 {
		return nil
	}

	today := clock.Today()
	timestamp := clock.Now()

	err = db.Transaction(func(tx *gorm.DB) error {
		for _, cp := range products {
			product := models.Product{
				ProductName:   cp.name,
				Price:         cp.price,
				ImageURL:      cp.imageURL,
				CategoryName:  cp.categoryName,
				ShelfLifeDays: cp.shelfLifeDays,
			}
			if err := tx.Create(&product).Error; err != nil {
				return err
			}

			// Randomized opening stock: quantity 10..100, received up to
			// 3 days ago so some batches start closer to expiry.
			qty := rand.Intn(91) + 10
			receiveDate := today.AddDate(0, 0, -rand.Intn(4))
			expiry := receiveDate.AddDate(0, 0, product.ShelfLifeDays)

			batch := models.StockBatch{
				ProductID:   product.ID,
				ReceiveDate: receiveDate,
				ExpiryDate:  &expiry,
				Quantity:    qty,
			}
			if err := tx.Create(&batch).Error; err != nil {
				return err
			}

			entry := models.TransactionLog{
				ActionType: string(ledger.ActionAdd),
				ProductID:  &product.ID,
				Quantity:   &qty,
				ActorName:  ActorSetup,
				ActionDate: timestamp,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logg.WithFields(logrus.Fields{"products": len(products)}).Info("Seeded catalog from CSV")
	return nil
}

func parseProducts(r io.Reader, defaultShelfLifeDays int) ([]csvProduct, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")] = i
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	seen := map[string]bool{}
	var products []csvProduct
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		name := field(record, "product_name")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		price, err := decimal.NewFromString(field(record, "price"))
		if err != nil {
			price = decimal.Zero
		}

		category := field(record, "category_name")
		if category == "" {
			category = "general"
		}

		shelfLife := defaultShelfLifeDays
		if receive, rerr := time.Parse("2006-01-02", field(record, "receive_date")); rerr == nil {
			if expiry, eerr := time.Parse("2006-01-02", field(record, "expiry_date")); eerr == nil {
				if days := ledger.DaysRemaining(expiry, receive); days > 0 {
					shelfLife = days
				}
			}
		}

		products = append(products, csvProduct{
			name:          name,
			price:         price,
			imageURL:      field(record, "image_url"),
			categoryName:  category,
			shelfLifeDays: shelfLife,
		})
	}
	return products, nil
}

// ReseedStock wipes all batches and the whole audit trail, then creates
// one randomized batch per product. Returns the number of products that
// received stock.
func ReseedStock(db *gorm.DB, clock *ledger.Clock) (int, error) {
	today := clock.Today()
	timestamp := clock.Now()

	count := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.StockBatch{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.TransactionLog{}).Error; err != nil {
			return err
		}

		var products []models.Product
		if err := tx.Find(&products).Error; err != nil {
			return err
		}
		if len(products) == 0 {
			return errors.New("no products to reseed")
		}

		for _, p := range products {
			qty := rand.Intn(141) + 10
			receiveDate := today.AddDate(0, 0, -rand.Intn(5))
			expiry := receiveDate.AddDate(0, 0, p.ShelfLifeDays)

			batch := models.StockBatch{
				ProductID:   p.ID,
				ReceiveDate: receiveDate,
				ExpiryDate:  &expiry,
				Quantity:    qty,
			}
			if err := tx.Create(&batch).Error; err != nil {
				return err
			}

			entry := models.TransactionLog{
				ActionType: string(ledger.ActionAdd),
				ProductID:  &p.ID,
				Quantity:   &qty,
				ActorName:  ActorReseed,
				ActionDate: timestamp,
			}
			if err := tx.Create(&entry).Error; err != nil {
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
