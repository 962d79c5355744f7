package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/weblate/wlweb-payments/internal/config"
	"github.com/weblate/wlweb-payments/internal/domain/model"
	"github.com/weblate/wlweb-payments/internal/infrastructure/database"
)

type packagesFile struct {
	Packages []packageEntry `yaml:"packages"`
}

type packageEntry struct {
	Name    string `yaml:"name"`
	Verbose string `yaml:"verbose"`
	Price   string `yaml:"price"`
}

func loadPackagesFromYAML(path string) ([]*model.Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read packages file: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var file packagesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal packages yaml: %w", err)
	}

	packages := make([]*model.Package, 0, len(file.Packages))
	for i, entry := range file.Packages {
		if entry.Name == "" {
			return nil, fmt.Errorf("packages[%d]: name is required", i)
		}
		if entry.Verbose == "" {
			return nil, fmt.Errorf("packages[%d]: verbose is required", i)
		}

		price, err := decimal.NewFromString(entry.Price)
		if err != nil {
			return nil, fmt.Errorf("packages[%d]: invalid price %q: %w", i, entry.Price, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("packages[%d]: price must not be negative", i)
		}

		packages = append(packages, &model.Package{
			Name:    entry.Name,
			Verbose: entry.Verbose,
			Price:   price,
		})
	}

	return packages, nil
}

// Loads package reference data from a YAML file into the database.
// Usage: sync-packages <packages.yaml>
func main() {
	if len(os.Args) != 2 {
		log.Fatalf("Usage: %s <packages.yaml>", os.Args[0])
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, logger); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run migrations
	if err := database.Migrate(db, logger); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := database.NewRepositories(db, logger)

	packages, err := loadPackagesFromYAML(os.Args[1])
	if err != nil {
		logger.Fatal("Failed to load packages from YAML", zap.Error(err))
	}

	ctx := context.Background()
	synced := 0

	for _, pkg := range packages {
		if err := repos.Package.Upsert(ctx, pkg); err != nil {
			logger.Error("Failed to upsert package",
				zap.String("name", pkg.Name),
				zap.Error(err))
			continue
		}
		synced++
	}

	logger.Info("Package sync completed",
		zap.Int("packages_synced", synced),
		zap.Int("packages_total", len(packages)))
}
