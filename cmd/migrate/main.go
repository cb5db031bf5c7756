package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"kpiscout/adapters/postgres"
	"kpiscout/domain/core"
	domainInsight "kpiscout/domain/insight"
	"kpiscout/internal/config"
	"kpiscout/internal/logging"
	"kpiscout/internal/migration"
	"kpiscout/ports"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := logging.New(cfg.Logging.Level, "console")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.Database.Driver(), cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	runner := migration.NewRunner(logger.Named("migration"))
	if err := runner.Run(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Schema at version %s (%s)", runner.Version(), cfg.Database.Driver())

	if len(os.Args) < 2 {
		return
	}
	if len(os.Args) != 3 || os.Args[1] != "import" {
		log.Fatal("Usage: migrate [import <results_dir>]")
	}

	repo := postgres.NewResultsRepository(db)
	files, err := findResultFiles(os.Args[2])
	if err != nil {
		log.Fatalf("Failed to find results files: %v", err)
	}
	log.Printf("Found %d results files to import", len(files))

	imported, skipped := 0, 0
	for _, file := range files {
		if err := importFile(ctx, repo, file); err != nil {
			log.Printf("Skipped %s: %v", filepath.Base(file), err)
			skipped++
			continue
		}
		imported++
	}
	log.Printf("Import complete: %d imported, %d skipped", imported, skipped)
}

// importFile stores one results document, as printed by `kpiscout analyze`.
// Documents without a run ID get a deterministic one derived from the path,
// so re-importing a directory updates rather than duplicates.
func importFile(ctx context.Context, repo ports.ResultsRepository, file string) error {
	results, err := loadResultsFromFile(file)
	if err != nil {
		return err
	}
	if results.DatasetName == "" {
		return fmt.Errorf("not a results document")
	}
	if results.RunID.String() == "" {
		abs, _ := filepath.Abs(file)
		results.RunID = core.RunID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(abs)).String())
	}
	if results.CreatedAt.IsZero() {
		if info, err := os.Stat(file); err == nil {
			results.CreatedAt = core.NewTimestamp(info.ModTime())
		} else {
			results.CreatedAt = core.Now()
		}
	}
	if err := repo.Save(ctx, results); err != nil {
		return err
	}
	log.Printf("Imported run %s from %s", results.RunID, filepath.Base(file))
	return nil
}

func findResultFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func loadResultsFromFile(filePath string) (*domainInsight.Results, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var results domainInsight.Results
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, err
	}
	return &results, nil
}
