// Package shop sells catalog items for coins, enforcing level gates and usage limits.
package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	prommetrics "github.com/aimd54/task-coach/internal/metrics"
	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/repository"
	"github.com/aimd54/task-coach/internal/service/ledger"
	"github.com/aimd54/task-coach/internal/service/unlock"
	"github.com/aimd54/task-coach/pkg/logger"
)

// ErrItemNotFound is returned when no catalog item matches a lookup.
var ErrItemNotFound = errors.New("shop item not found")

// UsageLimitExceededError indicates the item's period cap is already used up.
type UsageLimitExceededError struct {
	ItemCode string
	Window   models.UsageLimitType
	Limit    int
	Used     int
}

func (e *UsageLimitExceededError) Error() string {
	return fmt.Sprintf("'%s' %s limit reached (%d/%d)", e.ItemCode, e.Window, e.Used, e.Limit)
}

// Receipt describes a completed purchase.
type Receipt struct {
	Item           models.ShopItem `json:"item"`
	CoinsRemaining int             `json:"coins_remaining"`
	Quantity       int             `json:"quantity"`
}

// Service is the shop economy.
type Service struct {
	db      *repository.DB
	ledger  *ledger.Service
	timeout time.Duration
	log     *logger.Logger
}

// NewService creates a new shop service.
func NewService(db *repository.DB, l *ledger.Service, timeout time.Duration, log *logger.Logger) *Service {
	if timeout <= 0 {
		timeout = ledger.DefaultStoreTimeout
	}
	return &Service{db: db, ledger: l, timeout: timeout, log: log}
}

// Catalog returns every item for sale.
func (s *Service) Catalog(ctx context.Context) ([]models.ShopItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items, err := repository.NewShopRepository(s.db).ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list shop items: %w", err)
	}
	return items, nil
}

// Inventory returns what owner holds.
func (s *Service) Inventory(ctx context.Context, owner string) ([]models.UserInventory, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	inv, err := repository.NewShopRepository(s.db).ListInventory(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return inv, nil
}

// FindItem looks query up by name or code, then by fuzzy name.
func (s *Service) FindItem(ctx context.Context, query string) (*models.ShopItem, error) {
	items, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	item, ok := match(items, query)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrItemNotFound, query)
	}
	return item, nil
}

// Seed upserts items into the catalog.
func (s *Service) Seed(ctx context.Context, items []models.ShopItem) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.db.InTx(ctx, func(tx *repository.DB) error {
		repo := repository.NewShopRepository(tx)
		for i := range items {
			if err := repo.UpsertItem(ctx, &items[i]); err != nil {
				return fmt.Errorf("failed to upsert %s: %w", items[i].ItemCode, err)
			}
		}
		return nil
	})
}

// CheckEligibility reports a level shortfall before a coin shortfall. The shop
// itself is gated behind the shop-access unlock.
func CheckEligibility(p *models.UserGamification, item *models.ShopItem) error {
	feature := item.ItemName
	required := item.RequiredLevel
	if shopLevel := unlock.FeatureLevel(unlock.FeatureShop); shopLevel > required {
		feature, required = unlock.FeatureShop, shopLevel
	}
	if p.Level < required {
		return &ledger.LevelInsufficientError{Feature: feature, RequiredLevel: required, CurrentLevel: p.Level}
	}
	if p.Coins < item.Price {
		return &ledger.CoinsInsufficientError{Required: item.Price, Available: p.Coins}
	}
	return nil
}

// CheckUsageLimit compares inv's counter for the item's window against the cap.
// A nil inv means nothing has been bought yet.
func CheckUsageLimit(item *models.ShopItem, inv *models.UserInventory) error {
	if item.UsageLimitType == models.UsageUnlimited || item.UsageLimitType == "" {
		return nil
	}
	used := inv.UsageCount(item.UsageLimitType)
	if used >= item.UsageLimitCount {
		return &UsageLimitExceededError{
			ItemCode: item.ItemCode,
			Window:   item.UsageLimitType,
			Limit:    item.UsageLimitCount,
			Used:     used,
		}
	}
	return nil
}

// Purchase debits the price and adds the item to the inventory in one transaction.
// Eligibility and limits are checked against the state read inside that transaction.
func (s *Service) Purchase(ctx context.Context, owner, query string) (*Receipt, error) {
	item, err := s.FindItem(ctx, query)
	if err != nil {
		prommetrics.RecordPurchase("unknown", "not_found")
		return nil, err
	}

	var quantity int
	result, err := s.ledger.Apply(ctx, owner, ledger.Delta{
		Coins:  -item.Price,
		Reason: "purchase: " + item.ItemCode,
		Within: func(ctx context.Context, tx *repository.DB, p *models.UserGamification) error {
			if err := CheckEligibility(p, item); err != nil {
				return err
			}

			repo := repository.NewShopRepository(tx)
			inv, err := repo.GetInventory(ctx, owner, item.ItemCode)
			if err != nil && !repository.IsNotFound(err) {
				return fmt.Errorf("failed to read inventory: %w", err)
			}
			if err := CheckUsageLimit(item, inv); err != nil {
				return err
			}
			if err := repo.IncrementInventory(ctx, owner, item.ItemCode); err != nil {
				return err
			}

			quantity = 1
			if inv != nil {
				quantity = inv.Quantity + 1
			}
			return nil
		},
	})
	if err != nil {
		prommetrics.RecordPurchase(item.ItemCode, purchaseOutcome(err))
		s.log.Info().
			Err(err).
			Str("owner", owner).
			Str("item", item.ItemCode).
			Msg("Purchase refused")
		return nil, err
	}

	prommetrics.RecordPurchase(item.ItemCode, "success")
	s.log.Info().
		Str("owner", owner).
		Str("item", item.ItemCode).
		Int("price", item.Price).
		Int("coins_remaining", result.Coins).
		Msg("Item purchased")

	return &Receipt{Item: *item, CoinsRemaining: result.Coins, Quantity: quantity}, nil
}

// ResetUsageCounters zeroes the window's counter for every owner.
func (s *Service) ResetUsageCounters(ctx context.Context, window models.UsageLimitType) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := repository.NewShopRepository(s.db).ResetUsage(ctx, window)
	if err != nil {
		return 0, fmt.Errorf("failed to reset %s usage: %w", window, err)
	}
	s.log.Info().Str("window", string(window)).Int64("rows", n).Msg("Reset usage counters")
	return n, nil
}

func purchaseOutcome(err error) string {
	var levelErr *ledger.LevelInsufficientError
	var coinsErr *ledger.CoinsInsufficientError
	var limitErr *UsageLimitExceededError
	switch {
	case errors.As(err, &levelErr):
		return "level_insufficient"
	case errors.As(err, &coinsErr):
		return "coins_insufficient"
	case errors.As(err, &limitErr):
		return "limit_exceeded"
	default:
		return "error"
	}
}
