package store

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/buildcart/buildcart/internal/core/domain"
)

//go:embed seed/seed.yaml
var seedFS embed.FS

// seedFile is the on-disk shape of the demo store fixture.
type seedFile struct {
	Stores []domain.StoreSnapshot `yaml:"stores"`
}

// LoadSeedStores parses the embedded demo store fixture.
func LoadSeedStores() ([]domain.StoreSnapshot, error) {
	data, err := seedFS.ReadFile("seed/seed.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read seed fixture: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed fixture: %w", err)
	}

	return f.Stores, nil
}

// Seed inserts the demo stores into an empty database. A database that
// already contains stores is left untouched.
func Seed(ctx context.Context, s Store, logger *slog.Logger) error {
	count, err := s.CountStores(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		logger.Debug("skipping seed, stores already present", "count", count)
		return nil
	}

	snaps, err := LoadSeedStores()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for i := range snaps {
		snap := snaps[i]
		if snap.Slug == "" {
			snap.Slug = domain.Slugify(snap.Name)
		}
		if snap.CreatedAt.IsZero() {
			snap.CreatedAt = now
		}
		if err := s.CreateStore(ctx, &snap); err != nil {
			return fmt.Errorf("failed to seed store %s: %w", snap.ID, err)
		}
		logger.Info("seeded demo store", "store_id", snap.ID, "slug", snap.Slug)
	}

	return nil
}
