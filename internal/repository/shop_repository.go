package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aimd54/task-coach/internal/models"
)

// ShopRepository handles the item catalog and inventories.
type ShopRepository struct {
	db *DB
}

// NewShopRepository creates a new shop repository.
func NewShopRepository(db *DB) *ShopRepository {
	return &ShopRepository{db: db}
}

// UpsertItem inserts a catalog item or refreshes an existing one with the same code.
func (r *ShopRepository) UpsertItem(ctx context.Context, item *models.ShopItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "item_code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"item_name", "description", "price", "required_level",
				"usage_limit_type", "usage_limit_count", "updated_at",
			}),
		}).
		Create(item).Error
}

// ListItems returns the catalog ordered by required level then price.
func (r *ShopRepository) ListItems(ctx context.Context) ([]models.ShopItem, error) {
	var items []models.ShopItem
	err := r.db.WithContext(ctx).Order("required_level ASC, price ASC, item_code ASC").Find(&items).Error
	return items, err
}

// GetInventory returns the owner's row for itemCode, or gorm.ErrRecordNotFound.
func (r *ShopRepository) GetInventory(ctx context.Context, owner, itemCode string) (*models.UserInventory, error) {
	var inv models.UserInventory
	err := r.db.WithContext(ctx).Where("owner = ? AND item_code = ?", owner, itemCode).First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInventory returns every item the owner holds.
func (r *ShopRepository) ListInventory(ctx context.Context, owner string) ([]models.UserInventory, error) {
	var inv []models.UserInventory
	err := r.db.WithContext(ctx).Where("owner = ?", owner).Order("item_code ASC").Find(&inv).Error
	return inv, err
}

// IncrementInventory adds one to the owner's quantity and every usage counter of itemCode,
// creating the row on first purchase.
func (r *ShopRepository) IncrementInventory(ctx context.Context, owner, itemCode string) error {
	row := &models.UserInventory{
		Owner:             owner,
		ItemCode:          itemCode,
		Quantity:          1,
		UsageCountDaily:   1,
		UsageCountWeekly:  1,
		UsageCountMonthly: 1,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner"}, {Name: "item_code"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":            gorm.Expr("user_inventory.quantity + 1"),
				"usage_count_daily":   gorm.Expr("user_inventory.usage_count_daily + 1"),
				"usage_count_weekly":  gorm.Expr("user_inventory.usage_count_weekly + 1"),
				"usage_count_monthly": gorm.Expr("user_inventory.usage_count_monthly + 1"),
			}),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to increment inventory: %w", err)
	}
	return nil
}

// ResetUsage zeroes the counter for the given window across all owners.
func (r *ShopRepository) ResetUsage(ctx context.Context, window models.UsageLimitType) (int64, error) {
	var column string
	switch window {
	case models.UsageDaily:
		column = "usage_count_daily"
	case models.UsageWeekly:
		column = "usage_count_weekly"
	case models.UsageMonthly:
		column = "usage_count_monthly"
	default:
		return 0, fmt.Errorf("no usage counter for window %q", window)
	}

	result := r.db.WithContext(ctx).
		Model(&models.UserInventory{}).
		Where(column+" > 0").
		Update(column, 0)
	return result.RowsAffected, result.Error
}
