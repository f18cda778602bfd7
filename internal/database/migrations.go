package database

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed migrations
var migrationFiles embed.FS

// RunMigrations executes the embedded SQL migrations for the active dialect
func (db *DB) RunMigrations() error {
	// Create migrations table if it doesn't exist
	if _, err := db.DB.Exec(db.Dialect.CreateMigrationsTableQuery()); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	dir := path.Join("migrations", db.Dialect.MigrationsSubdir())
	files, err := fs.Glob(migrationFiles, path.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	// Sort files to ensure they run in order
	sort.Strings(files)

	for _, file := range files {
		filename := path.Base(file)

		hasRun, err := db.hasMigrationRun(filename)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if hasRun {
			continue
		}

		content, err := migrationFiles.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		if err := db.executeMigration(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}

		if err := db.recordMigration(filename); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", filename, err)
		}
	}

	return nil
}

// PendingMigrations lists embedded migrations that have not been applied yet
func (db *DB) PendingMigrations() ([]string, error) {
	if _, err := db.DB.Exec(db.Dialect.CreateMigrationsTableQuery()); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	files, err := fs.Glob(migrationFiles, path.Join("migrations", db.Dialect.MigrationsSubdir(), "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var pending []string
	for _, file := range files {
		hasRun, err := db.hasMigrationRun(path.Base(file))
		if err != nil {
			return nil, err
		}
		if !hasRun {
			pending = append(pending, path.Base(file))
		}
	}
	return pending, nil
}

// hasMigrationRun checks if a migration has already been executed
func (db *DB) hasMigrationRun(filename string) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM migrations WHERE filename = ?"
	err := db.DB.QueryRow(db.Dialect.RewriteQuery(query), filename).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// executeMigration runs the statements of a migration one by one.
// MySQL rejects multi-statement Exec unless the DSN opts in, so split on ';'.
func (db *DB) executeMigration(content string) error {
	for _, stmt := range strings.Split(content, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// recordMigration marks a migration as completed
func (db *DB) recordMigration(filename string) error {
	query := "INSERT INTO migrations (filename) VALUES (?)"
	_, err := db.DB.Exec(db.Dialect.RewriteQuery(query), filename)
	return err
}
