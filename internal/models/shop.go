package models

import (
	"time"
)

// UsageLimitType is the window a usage limit applies to.
type UsageLimitType string

// Usage windows.
const (
	UsageUnlimited UsageLimitType = "unlimited"
	UsageDaily     UsageLimitType = "daily"
	UsageWeekly    UsageLimitType = "weekly"
	UsageMonthly   UsageLimitType = "monthly"
)

// ShopItem is a catalog entry.
type ShopItem struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ItemCode        string         `gorm:"uniqueIndex;not null;size:100" json:"item_code"`
	ItemName        string         `gorm:"not null;size:255" json:"item_name"`
	Description     string         `gorm:"type:text" json:"description"`
	Price           int            `gorm:"not null" json:"price"`
	RequiredLevel   int            `gorm:"not null;default:1" json:"required_level"`
	UsageLimitType  UsageLimitType `gorm:"size:16;not null;default:unlimited" json:"usage_limit_type"`
	UsageLimitCount int            `gorm:"not null;default:0" json:"usage_limit_count"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TableName specifies the table name for ShopItem model.
func (ShopItem) TableName() string {
	return "shop_items"
}

// UserInventory is one owner's holding of one item plus rolling usage counters.
type UserInventory struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Owner             string    `gorm:"not null;size:255;uniqueIndex:idx_inventory_owner_item,priority:1" json:"owner"`
	ItemCode          string    `gorm:"not null;size:100;uniqueIndex:idx_inventory_owner_item,priority:2" json:"item_code"`
	Quantity          int       `gorm:"not null;default:0" json:"quantity"`
	UsageCountDaily   int       `gorm:"not null;default:0" json:"usage_count_daily"`
	UsageCountWeekly  int       `gorm:"not null;default:0" json:"usage_count_weekly"`
	UsageCountMonthly int       `gorm:"not null;default:0" json:"usage_count_monthly"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName specifies the table name for UserInventory model.
func (UserInventory) TableName() string {
	return "user_inventory"
}

// UsageCount returns the counter matching the given window. Unlimited always reports zero.
func (u *UserInventory) UsageCount(window UsageLimitType) int {
	if u == nil {
		return 0
	}
	switch window {
	case UsageDaily:
		return u.UsageCountDaily
	case UsageWeekly:
		return u.UsageCountWeekly
	case UsageMonthly:
		return u.UsageCountMonthly
	default:
		return 0
	}
}
