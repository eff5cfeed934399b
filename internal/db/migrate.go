package db

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"family-tree-go/pkg/logger"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

// ErrMigrationChanged means an applied migration file was edited afterwards.
var ErrMigrationChanged = errors.New("applied migration was modified")

type migration struct {
	name     string
	sql      string
	checksum string
}

type appliedMigration struct {
	Filename string
	Checksum string
}

// Migrate applies every embedded SQL file that is not yet recorded in
// schema_migrations, in filename order, each in its own transaction.
func Migrate(db *gorm.DB, log logger.Logger) error {
	return migrate(db, migrationFiles, log)
}

// Pending lists the embedded migrations that have not been applied yet.
func Pending(db *gorm.DB) ([]string, error) {
	pending, err := pendingMigrations(db, migrationFiles)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(pending))
	for _, m := range pending {
		names = append(names, m.name)
	}
	return names, nil
}

func migrate(db *gorm.DB, files fs.FS, log logger.Logger) error {
	pending, err := pendingMigrations(db, files)
	if err != nil {
		return err
	}

	for _, m := range pending {
		started := time.Now()
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.sql).Error; err != nil {
				return fmt.Errorf("apply migration %s: %w", m.name, err)
			}
			return tx.Exec(
				"INSERT INTO schema_migrations (filename, checksum, applied_at) VALUES (?, ?, ?)",
				m.name, m.checksum, time.Now().UTC(),
			).Error
		})
		if err != nil {
			return err
		}
		log.Info("db: applied migration", "file", m.name, "elapsed_ms", time.Since(started).Milliseconds())
	}

	log.Info("db: migrations up to date", "applied", len(pending))
	return nil
}

func pendingMigrations(db *gorm.DB, files fs.FS) ([]migration, error) {
	if err := ensureSchemaMigrations(db); err != nil {
		return nil, err
	}
	all, err := loadMigrations(files)
	if err != nil {
		return nil, err
	}

	var rows []appliedMigration
	if err := db.Raw("SELECT filename, checksum FROM schema_migrations").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	applied := make(map[string]string, len(rows))
	for _, row := range rows {
		applied[row.Filename] = row.Checksum
	}

	var pending []migration
	for _, m := range all {
		checksum, done := applied[m.name]
		if !done {
			pending = append(pending, m)
			continue
		}
		// rows recorded before checksums were tracked have an empty checksum
		if checksum != "" && checksum != m.checksum {
			return nil, fmt.Errorf("%w: %s", ErrMigrationChanged, m.name)
		}
	}
	return pending, nil
}

func loadMigrations(files fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(files, migrationsDir)
	if err != nil {
		return nil, err
	}

	var migrations []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		contents, err := fs.ReadFile(files, path.Join(migrationsDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		sql := strings.TrimSpace(string(contents))
		if sql == "" {
			continue
		}
		sum := sha256.Sum256([]byte(sql))
		migrations = append(migrations, migration{
			name:     entry.Name(),
			sql:      sql,
			checksum: hex.EncodeToString(sum[:]),
		})
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].name < migrations[j].name })
	return migrations, nil
}

func ensureSchemaMigrations(db *gorm.DB) error {
	return db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		ALTER TABLE schema_migrations ADD COLUMN IF NOT EXISTS checksum TEXT NOT NULL DEFAULT '';
	`).Error
}
