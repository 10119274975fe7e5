package database

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

//go:embed migrations/*/up.sql migrations/*/down.sql
var migrationsFS embed.FS

const MIGRATIONS_DIR = "migrations"

var migrationVersionRegex = regexp.MustCompile(`^(\d+)_`)

type SchemaVersion uint64

type SchemaMigration struct {
	Version SchemaVersion `gorm:"primaryKey"`
}

func CurrentSchemaVersion(db *gorm.DB) SchemaVersion {
	var schemaMigration SchemaMigration

	db.
		Model(&SchemaMigration{}).
		Select("version").
		Order("version desc").
		Limit(1).
		Scan(&schemaMigration)

	return schemaMigration.Version
}

// Migration is one migrations/<version>_<name> directory.
type Migration struct {
	Version SchemaVersion
	Name    string
}

func (migration Migration) Up(db *gorm.DB) error {
	return migration.run(db, "up.sql")
}

func (migration Migration) Down(db *gorm.DB) error {
	return migration.run(db, "down.sql")
}

func (migration Migration) run(db *gorm.DB, file string) error {
	sql, err := fs.ReadFile(migrationsFS, path.Join(MIGRATIONS_DIR, migration.Name, file))
	if err != nil {
		return errors.Wrapf(err, "failed to read %s for migration %s", file, migration.Name)
	}

	return db.Exec(string(sql)).Error
}

// Migrate applies every pending migration in its own transaction, recording
// the version alongside the schema change.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return errors.Wrap(err, "failed to create schema_migrations")
	}

	migrations, err := MigrationsNewerThan(CurrentSchemaVersion(db))
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}

			return tx.Create(&SchemaMigration{Version: migration.Version}).Error
		})
		if err != nil {
			return errors.Wrapf(err, "failed to apply migration %d", migration.Version)
		}
	}

	return nil
}

// Rollback reverts the newest applied migration.
func Rollback(db *gorm.DB) error {
	current := CurrentSchemaVersion(db)
	if current == 0 {
		return nil
	}

	migrations, err := MigrationsNewerThan(current - 1)
	if err != nil {
		return err
	}
	if len(migrations) == 0 || migrations[0].Version != current {
		return fmt.Errorf("no migration found for schema version %d", current)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := migrations[0].Down(tx); err != nil {
			return errors.Wrapf(err, "failed to revert migration %d", current)
		}

		return tx.Delete(&SchemaMigration{Version: current}).Error
	})
}

func MigrationsNewerThan(minVersion SchemaVersion) ([]Migration, error) {
	entries, err := fs.ReadDir(migrationsFS, MIGRATIONS_DIR)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list migrations")
	}

	var migrations []Migration
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		match := migrationVersionRegex.FindStringSubmatch(entry.Name())
		if len(match) != 2 {
			return nil, fmt.Errorf("invalid migration directory name: %s", entry.Name())
		}

		versionInt, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid migration version %s", match[1])
		}

		version := SchemaVersion(versionInt)
		if version <= minVersion {
			continue
		}

		migrations = append(migrations, Migration{Version: version, Name: entry.Name()})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}
