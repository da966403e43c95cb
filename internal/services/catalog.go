package services

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
)

// LoadCatalog reads the acquisition catalog from a JSON file and validates
// every target. A catalog with any invalid entry is rejected whole; a
// partially-loaded catalog would silently shrink the round.
func LoadCatalog(path string) ([]domain.Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var targets []domain.Target
	if err := json.Unmarshal(data, &targets); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("catalog is empty: %w", domain.ErrInvalidTarget)
	}

	seen := make(map[string]bool, len(targets))
	for i := range targets {
		t := &targets[i]
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("catalog entry %d (%s/%s): %w", i, t.ItemID, t.VendorID, err)
		}
		if seen[t.Key()] {
			return nil, fmt.Errorf("catalog entry %d: duplicate target %s: %w", i, t.Key(), domain.ErrInvalidTarget)
		}
		seen[t.Key()] = true
	}

	return targets, nil
}
