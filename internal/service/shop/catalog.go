package shop

import (
	"fmt"
	"os"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"

	"github.com/aimd54/task-coach/internal/models"
)

// CatalogFile is the YAML layout of the seed catalog.
type CatalogFile struct {
	Items []CatalogItem `yaml:"items"`
}

// CatalogItem is one catalog entry as written in YAML.
type CatalogItem struct {
	Code          string `yaml:"code"`
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	Price         int    `yaml:"price"`
	RequiredLevel int    `yaml:"required_level"`
	Limit         struct {
		Type  models.UsageLimitType `yaml:"type"`
		Count int                   `yaml:"count"`
	} `yaml:"limit"`
}

// LoadCatalog reads and validates a catalog file.
func LoadCatalog(path string) ([]models.ShopItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes catalog YAML. Missing codes are slugged from the name.
func ParseCatalog(data []byte) ([]models.ShopItem, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	items := make([]models.ShopItem, 0, len(file.Items))
	seen := make(map[string]bool, len(file.Items))
	for i, entry := range file.Items {
		if entry.Name == "" {
			return nil, fmt.Errorf("catalog item %d: name is required", i)
		}
		code := entry.Code
		if code == "" {
			code = slug.Make(entry.Name)
		}
		if seen[code] {
			return nil, fmt.Errorf("catalog item %d: duplicate code %q", i, code)
		}
		seen[code] = true

		if entry.Price < 0 {
			return nil, fmt.Errorf("catalog item %q: price must not be negative", code)
		}
		limitType := entry.Limit.Type
		switch limitType {
		case "":
			limitType = models.UsageUnlimited
		case models.UsageUnlimited, models.UsageDaily, models.UsageWeekly, models.UsageMonthly:
		default:
			return nil, fmt.Errorf("catalog item %q: unknown limit type %q", code, limitType)
		}
		if limitType != models.UsageUnlimited && entry.Limit.Count < 1 {
			return nil, fmt.Errorf("catalog item %q: %s limit needs a count of at least 1", code, limitType)
		}

		items = append(items, models.ShopItem{
			ItemCode:        code,
			ItemName:        entry.Name,
			Description:     entry.Description,
			Price:           entry.Price,
			RequiredLevel:   max(entry.RequiredLevel, 1),
			UsageLimitType:  limitType,
			UsageLimitCount: entry.Limit.Count,
		})
	}
	return items, nil
}
